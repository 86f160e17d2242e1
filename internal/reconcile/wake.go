package reconcile

import (
	"context"
	"log/slog"
	"time"

	"telehealth-platform/internal/calls"
	"telehealth-platform/internal/pending"
	"telehealth-platform/internal/scheduler"
	"telehealth-platform/internal/vapi"
)

// Wake results, used as metric labels.
const (
	wakeAbsent      = "absent"
	wakeStale       = "stale"
	wakeResolved    = "resolved"
	wakeRescheduled = "rescheduled"
	wakeSwitched    = "switched"
	wakeGaveUp      = "gave_up"
	wakeError       = "error"
)

// HandleWake runs one retry-loop iteration. Errors never escape; they are
// folded into reschedule or give-up.
func (s *Service) HandleWake(ctx context.Context, t scheduler.Task) {
	log := s.logger.With(slog.String("call_id", t.CallID), slog.String("track", string(t.Track)))

	rec, ok, err := s.registry.Get(ctx, t.CallID)
	if err != nil {
		log.Error("load pending call failed", slog.String("error", err.Error()))
		s.metrics.ObserveWake(string(t.Track), wakeError)
		return
	}
	if !ok {
		log.Debug("pending call already resolved")
		s.metrics.ObserveWake(string(t.Track), wakeAbsent)
		return
	}
	if rec.Track != t.Track {
		log.Debug("stale wake", slog.String("record_track", string(rec.Track)))
		s.metrics.ObserveWake(string(t.Track), wakeStale)
		return
	}

	count, ok, err := s.registry.IncrementRetry(ctx, t.CallID)
	if err != nil {
		log.Error("increment retry failed", slog.String("error", err.Error()))
		s.metrics.ObserveWake(string(t.Track), wakeError)
		return
	}
	if !ok {
		s.metrics.ObserveWake(string(t.Track), wakeAbsent)
		return
	}
	log = log.With(slog.Int("retry_count", count))

	call, fetchErr := s.vendor.GetCall(ctx, t.CallID)
	if fetchErr == nil {
		if call.ID == "" {
			call.ID = t.CallID
		}
		rec.CallInfo = mergeCall(rec.CallInfo, call)
	}

	var result string
	switch t.Track {
	case pending.TrackCompletion:
		result = s.completionWake(ctx, log, t, rec, count, fetchErr)
	case pending.TrackAnalysis:
		result = s.analysisWake(ctx, log, t, rec, count, fetchErr)
	default:
		log.Error("unknown track")
		result = wakeError
	}
	s.metrics.ObserveWake(string(t.Track), result)
}

func (s *Service) completionWake(ctx context.Context, log *slog.Logger, t scheduler.Task, rec pending.Record, count int, fetchErr error) string {
	if fetchErr != nil {
		log.Warn("vendor call fetch failed", slog.String("error", fetchErr.Error()))
		if count < s.policy.MaxRetries {
			return s.reschedule(ctx, log, rec, t.Track, count, s.policy.NextCompletionDelay(t.Delay, true))
		}
		s.giveUp(ctx, rec, t.Track, count, "vendor call fetch failed: "+fetchErr.Error())
		return wakeGaveUp
	}

	call := rec.CallInfo
	switch call.Class() {
	case calls.ClassActive:
		s.refresh(ctx, log, call, t.Track)
		if count < s.policy.MaxRetries {
			return s.reschedule(ctx, log, rec, t.Track, count, s.policy.NextCompletionDelay(t.Delay, false))
		}
		s.giveUp(ctx, rec, t.Track, count, "call did not complete, last status "+string(call.Status))
		return wakeGaveUp

	case calls.ClassEndedWithAnalysis:
		if _, err := s.finalize(ctx, call, string(t.Track), count); err != nil {
			log.Error("remove pending call failed", slog.String("error", err.Error()))
		}
		log.Info("call resolved")
		return wakeResolved

	case calls.ClassEndedNoAnalysis:
		// Always hand off: the analysis wake checks for analysis before it
		// looks at the retry ceiling.
		ok, err := s.registry.Update(ctx, call.ID, call, pending.TrackAnalysis)
		if err != nil {
			// The record still names the completion track; poll again.
			log.Warn("switch track failed", slog.String("error", err.Error()))
			return s.reschedule(ctx, log, rec, t.Track, count, s.policy.NextCompletionDelay(t.Delay, true))
		}
		if !ok {
			return wakeAbsent
		}
		rec.Track = pending.TrackAnalysis
		if s.auditor != nil {
			if err := s.auditor.LogTrackSwitched(ctx, call.ID, string(pending.TrackCompletion), string(pending.TrackAnalysis), count); err != nil {
				log.Warn("audit append failed", slog.String("error", err.Error()))
			}
		}
		log.Info("call ended without analysis, switching track")
		if r := s.reschedule(ctx, log, rec, pending.TrackAnalysis, count, s.policy.AnalysisInitialDelay); r != wakeRescheduled {
			return r
		}
		return wakeSwitched

	default:
		s.giveUp(ctx, rec, t.Track, count, "call ended with status "+string(call.Status))
		return wakeGaveUp
	}
}

func (s *Service) analysisWake(ctx context.Context, log *slog.Logger, t scheduler.Task, rec pending.Record, count int, fetchErr error) string {
	call := rec.CallInfo
	if fetchErr != nil {
		// Counted like a missing analysis.
		log.Warn("vendor call fetch failed", slog.String("error", fetchErr.Error()))
	} else if call.HasAnalysis() {
		if _, err := s.finalize(ctx, call, string(t.Track), count); err != nil {
			log.Error("remove pending call failed", slog.String("error", err.Error()))
		}
		log.Info("call resolved")
		return wakeResolved
	} else {
		s.refresh(ctx, log, call, t.Track)
	}

	if count < s.policy.MaxRetries {
		return s.reschedule(ctx, log, rec, t.Track, count, s.policy.AnalysisDelay(count))
	}
	s.giveUp(ctx, rec, t.Track, count, "analysis not available after retries")
	return wakeGaveUp
}

// refresh stores the latest snapshot. The snapshot is diagnostic only, so
// failures are logged and ignored.
func (s *Service) refresh(ctx context.Context, log *slog.Logger, call vapi.Call, track pending.Track) {
	if _, err := s.registry.Update(ctx, call.ID, call, track); err != nil {
		log.Warn("update pending call failed", slog.String("error", err.Error()))
	}
}

func (s *Service) reschedule(ctx context.Context, log *slog.Logger, rec pending.Record, track pending.Track, count int, delay time.Duration) string {
	err := s.scheduler.Schedule(ctx, scheduler.Task{Track: track, CallID: rec.CallID, Delay: delay})
	if err != nil {
		log.Error("reschedule failed", slog.String("error", err.Error()))
		s.giveUp(ctx, rec, track, count, "reschedule failed: "+err.Error())
		return wakeGaveUp
	}
	log.Info("wake rescheduled", slog.Duration("delay", delay))
	return wakeRescheduled
}

// mergeCall overlays a fresh vendor snapshot on the last known one. Fields
// the vendor omits keep their previous value.
func mergeCall(prev, next vapi.Call) vapi.Call {
	out := next
	if out.Status == "" {
		out.Status = prev.Status
	}
	if out.Metadata == nil {
		out.Metadata = prev.Metadata
	}
	if out.Transcript == "" {
		out.Transcript = prev.Transcript
	}
	if out.StartedAt == nil {
		out.StartedAt = prev.StartedAt
	}
	if out.EndedAt == nil {
		out.EndedAt = prev.EndedAt
	}
	return out
}
