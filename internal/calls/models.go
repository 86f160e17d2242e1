package calls

import "strings"

// Status is the lifecycle state reported by the voice vendor for a call.
//
// Vendor webhooks are snapshots: the same call can be reported several times,
// out of order, and in overlapping states. Classification below is the only
// place that decides which states are still moving and which are final.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusEnded      Status = "ended"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusNoAnswer   Status = "no-answer"
	StatusBusy       Status = "busy"
	StatusCanceled   Status = "canceled"
)

// Normalize lower-cases the status and maps the underscore spelling some
// vendor payloads use ("in_progress") onto the canonical one.
func Normalize(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	return Status(s)
}

// IsActive reports whether the call has not finished yet.
func (s Status) IsActive() bool {
	switch s {
	case StatusQueued, StatusRinging, StatusInProgress:
		return true
	default:
		return false
	}
}

// IsEnded reports whether the call finished normally and may carry an analysis.
func (s Status) IsEnded() bool {
	return s == StatusEnded || s == StatusCompleted
}

// IsTerminalFailure reports whether the call finished in a state that will
// never produce an analysis. Unknown statuses are treated as terminal.
func (s Status) IsTerminalFailure() bool {
	return !s.IsActive() && !s.IsEnded()
}

// Class groups statuses by what the reconciler has to do with them.
type Class string

const (
	ClassActive            Class = "active"
	ClassEndedWithAnalysis Class = "ended_with_analysis"
	ClassEndedNoAnalysis   Class = "ended_without_analysis"
	ClassTerminalFailure   Class = "terminal_failure"
)

// Classify combines the status with analysis availability.
func Classify(s Status, hasAnalysis bool) Class {
	switch {
	case s.IsActive():
		return ClassActive
	case s.IsEnded() && hasAnalysis:
		return ClassEndedWithAnalysis
	case s.IsEnded():
		return ClassEndedNoAnalysis
	default:
		return ClassTerminalFailure
	}
}
