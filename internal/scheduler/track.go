package scheduler

import "telehealth-platform/internal/pending"

func trackOf(s string) pending.Track {
	switch pending.Track(s) {
	case pending.TrackAnalysis:
		return pending.TrackAnalysis
	default:
		return pending.TrackCompletion
	}
}
