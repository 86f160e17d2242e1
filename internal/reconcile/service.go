package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"telehealth-platform/internal/analysis"
	"telehealth-platform/internal/observability/metrics"
	"telehealth-platform/internal/pending"
	"telehealth-platform/internal/scheduler"
	"telehealth-platform/internal/vapi"
)

// Vendor fetches the current state of a call.
type Vendor interface {
	GetCall(ctx context.Context, callID string) (vapi.Call, error)
}

// Processor finalizes calls. *analysis.Processor implements it.
type Processor interface {
	Process(ctx context.Context, call vapi.Call) analysis.ProcessResult
	MarkPermanentlyFailed(ctx context.Context, call vapi.Call, reason string) analysis.ProcessResult
}

// Auditor records reconciliation decisions. *audit.Service implements it.
type Auditor interface {
	LogProcessed(ctx context.Context, callID, track string, retryCount int, message string) error
	LogDiscarded(ctx context.Context, callID, status string) error
	LogTrackSwitched(ctx context.Context, callID, from, to string, retryCount int) error
	LogPermanentlyFailed(ctx context.Context, callID, track string, retryCount int, reason string) error
}

var ErrMissingCallID = errors.New("reconcile: call id missing")

// Deps wires a Service. Registry, Scheduler, Vendor and Processor are
// required; the rest are optional.
type Deps struct {
	Registry  pending.Registry
	Scheduler scheduler.Scheduler
	Vendor    Vendor
	Processor Processor
	Auditor   Auditor
	Metrics   *metrics.ReconcileMetrics
	Logger    *slog.Logger
	Policy    Policy
}

// Service classifies webhook deliveries and runs both retry loops. It is
// the scheduler.Handler for every wake it schedules.
type Service struct {
	registry  pending.Registry
	scheduler scheduler.Scheduler
	vendor    Vendor
	processor Processor
	auditor   Auditor
	metrics   *metrics.ReconcileMetrics
	logger    *slog.Logger
	policy    Policy
}

func NewService(d Deps) *Service {
	if d.Registry == nil || d.Scheduler == nil || d.Vendor == nil || d.Processor == nil {
		panic("reconcile: registry, scheduler, vendor and processor are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		registry:  d.Registry,
		scheduler: d.Scheduler,
		vendor:    d.Vendor,
		processor: d.Processor,
		auditor:   d.Auditor,
		metrics:   d.Metrics,
		logger:    d.Logger,
		policy:    d.Policy.withDefaults(),
	}
}

// Policy returns the effective retry policy.
func (s *Service) Policy() Policy { return s.policy }

// Pending exposes the registry snapshot for diagnostics.
func (s *Service) Pending(ctx context.Context) ([]pending.Entry, error) {
	return s.registry.Snapshot(ctx)
}

// finalize hands a call with analysis to the processor and drops its record.
func (s *Service) finalize(ctx context.Context, call vapi.Call, track string, retryCount int) (analysis.ProcessResult, error) {
	res := s.processor.Process(ctx, call)
	s.metrics.ObserveOutcome(res.CallSuccessful)
	if s.auditor != nil {
		msg := "analysis processed"
		if res.AlreadyProcessed {
			msg = "analysis already stored"
		} else if !res.Success {
			msg = "analysis not stored: " + res.Error
		}
		if err := s.auditor.LogProcessed(ctx, call.ID, track, retryCount, msg); err != nil {
			s.logger.Warn("audit append failed", slog.String("call_id", call.ID), slog.String("error", err.Error()))
		}
	}
	if err := s.registry.Remove(ctx, call.ID); err != nil {
		return res, err
	}
	return res, nil
}

// giveUp removes the record and runs the failure hook once.
func (s *Service) giveUp(ctx context.Context, rec pending.Record, track pending.Track, retryCount int, reason string) {
	log := s.logger.With(
		slog.String("call_id", rec.CallID),
		slog.String("track", string(track)),
		slog.Int("retry_count", retryCount),
	)

	// Another path may have resolved the call while this wake was fetching.
	if _, ok, err := s.registry.Get(ctx, rec.CallID); err == nil && !ok {
		log.Info("call resolved before give-up")
		return
	}
	if err := s.registry.Remove(ctx, rec.CallID); err != nil {
		log.Error("remove pending call failed", slog.String("error", err.Error()))
	}

	log.Warn("call permanently failed", slog.String("reason", reason))
	s.metrics.ObservePermanentFailure(string(track))
	res := s.processor.MarkPermanentlyFailed(ctx, rec.CallInfo, reason)
	s.metrics.ObserveOutcome(res.CallSuccessful)
	if s.auditor != nil {
		if err := s.auditor.LogPermanentlyFailed(ctx, rec.CallID, string(track), retryCount, reason); err != nil {
			log.Warn("audit append failed", slog.String("error", err.Error()))
		}
	}
}
