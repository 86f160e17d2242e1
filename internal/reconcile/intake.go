package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"telehealth-platform/internal/analysis"
	"telehealth-platform/internal/calls"
	"telehealth-platform/internal/pending"
	"telehealth-platform/internal/scheduler"
	"telehealth-platform/internal/vapi"
)

// Action names the branch the intake took for a delivery.
type Action string

const (
	ActionProcessed      Action = "processed"
	ActionScheduled      Action = "scheduled"
	ActionRetryScheduled Action = "retry_scheduled"
	ActionTracking       Action = "already_tracking"
	ActionDiscarded      Action = "discarded"
)

// Response is returned to the webhook sender.
type Response struct {
	Received       bool                    `json:"received"`
	CallID         string                  `json:"callId"`
	Status         calls.Status            `json:"status"`
	Action         Action                  `json:"action"`
	Scheduled      bool                    `json:"scheduled"`
	RetryScheduled bool                    `json:"retryScheduled"`
	Tracking       bool                    `json:"tracking,omitempty"`
	Result         *analysis.ProcessResult `json:"result,omitempty"`
}

// HandleEvent classifies one webhook delivery. It never waits on a retry
// loop. An error means the registry or scheduler failed and the delivery
// should be answered with a 500 so the vendor redelivers.
func (s *Service) HandleEvent(ctx context.Context, call vapi.Call) (Response, error) {
	if call.ID == "" {
		return Response{}, ErrMissingCallID
	}
	resp := Response{Received: true, CallID: call.ID, Status: call.Status}
	log := s.logger.With(slog.String("call_id", call.ID), slog.String("status", string(call.Status)))

	switch call.Class() {
	case calls.ClassEndedWithAnalysis:
		res, err := s.finalize(ctx, call, "webhook", 0)
		if err != nil {
			return Response{}, fmt.Errorf("reconcile: clear pending call: %w", err)
		}
		resp.Action = ActionProcessed
		resp.Result = &res
		log.Info("call processed", slog.Bool("call_successful", res.CallSuccessful))

	case calls.ClassActive:
		created, err := s.track(ctx, call, pending.TrackCompletion, s.policy.CompletionInitialDelay)
		if err != nil {
			return Response{}, err
		}
		resp.Scheduled = created
		resp.Tracking = !created
		resp.Action = ActionScheduled
		if !created {
			resp.Action = ActionTracking
		}
		log.Info("call awaiting completion", slog.Bool("scheduled", created))

	case calls.ClassEndedNoAnalysis:
		created, err := s.track(ctx, call, pending.TrackAnalysis, s.policy.AnalysisInitialDelay)
		if err != nil {
			return Response{}, err
		}
		resp.RetryScheduled = created
		resp.Tracking = !created
		resp.Action = ActionRetryScheduled
		if !created {
			resp.Action = ActionTracking
		}
		log.Info("call awaiting analysis", slog.Bool("scheduled", created))

	default:
		if err := s.registry.Remove(ctx, call.ID); err != nil {
			return Response{}, fmt.Errorf("reconcile: discard pending call: %w", err)
		}
		resp.Action = ActionDiscarded
		if s.auditor != nil {
			if err := s.auditor.LogDiscarded(ctx, call.ID, string(call.Status)); err != nil {
				log.Warn("audit append failed", slog.String("error", err.Error()))
			}
		}
		log.Info("call discarded")
	}
	return resp, nil
}

// track creates a pending record and schedules its first wake. It reports
// false without scheduling when the call is already tracked.
func (s *Service) track(ctx context.Context, call vapi.Call, track pending.Track, delay time.Duration) (bool, error) {
	created, err := s.registry.UpsertIfAbsent(ctx, call.ID, call, call.Status, track)
	if err != nil {
		return false, fmt.Errorf("reconcile: track call: %w", err)
	}
	if !created {
		return false, nil
	}
	if err := s.scheduler.Schedule(ctx, scheduler.Task{Track: track, CallID: call.ID, Delay: delay}); err != nil {
		// Drop the record so a redelivery can start over.
		if rmErr := s.registry.Remove(ctx, call.ID); rmErr != nil {
			s.logger.Error("remove pending call failed", slog.String("call_id", call.ID), slog.String("error", rmErr.Error()))
		}
		return false, fmt.Errorf("reconcile: schedule wake: %w", err)
	}
	return true, nil
}
