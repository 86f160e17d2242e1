package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"telehealth-platform/internal/vapi"
)

// ReasonIncomplete is reported when the analysis lacks a field persistence
// needs.
const ReasonIncomplete = "Incomplete analysis data - missing required fields"

// ProcessResult is the folded outcome of processing one call. The processor
// never returns errors; everything ends up here.
type ProcessResult struct {
	Success          bool     `json:"success"`
	CallID           string   `json:"callId"`
	CallSuccessful   bool     `json:"callSuccessful"`
	AlreadyProcessed bool     `json:"alreadyProcessed,omitempty"`
	RecordID         string   `json:"recordId,omitempty"`
	Error            string   `json:"error,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	Analysis         Result   `json:"analysis"`
	Outcome          *Outcome `json:"outcome,omitempty"`
}

// Processor turns a vendor call with analysis into a persisted record and a
// single business-logic notification.
type Processor struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	clock    func() time.Time
}

func NewProcessor(store Store, notifier Notifier, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: store, notifier: notifier, logger: logger, clock: time.Now}
}

// WithClock overrides the time source used for analyzedAt and outcomes.
func (p *Processor) WithClock(clock func() time.Time) *Processor {
	p.clock = clock
	return p
}

// Process handles a finalized call that carries analysis.
func (p *Processor) Process(ctx context.Context, call vapi.Call) (res ProcessResult) {
	res = ProcessResult{CallID: call.ID}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("analysis processing panicked", slog.String("call_id", call.ID), slog.Any("panic", r))
			res = ProcessResult{CallID: call.ID, Error: fmt.Sprintf("unexpected failure: %v", r)}
		}
	}()

	result := BuildResult(call)
	res.Analysis = result
	for _, e := range result.Errors {
		p.logger.Warn("analysis normalization", slog.String("call_id", call.ID), slog.String("error", e))
	}

	ids := extractIDs(call, result)

	if !result.Complete() {
		res.Reason = ReasonIncomplete
		res.Error = ReasonIncomplete
		p.logger.Warn("analysis incomplete, skipping persistence", slog.String("call_id", call.ID))
		p.runBusinessLogic(ctx, &res, ids, false, ReasonIncomplete)
		return res
	}

	exists, err := p.store.Exists(ctx, call.ID)
	if err != nil {
		return p.fail(ctx, res, ids, err)
	}
	if exists {
		p.logger.Info("analysis already stored", slog.String("call_id", call.ID))
		res.Success = true
		res.CallSuccessful = true
		res.AlreadyProcessed = true
		return res
	}

	if ids.patientID == "" {
		return p.fail(ctx, res, ids, ErrMissingPatientID)
	}

	successful := ClassifySuccessEvaluation(result.SuccessEvaluation.Value)
	rec := Record{
		CallID:            call.ID,
		PatientID:         ids.patientID,
		Summary:           *result.Summary,
		CallSuccessful:    successful,
		SuccessEvaluation: result.SuccessEvaluation.Value,
		Transcript:        call.Transcript,
		DurationSeconds:   durationSeconds(call),
		AnalyzedAt:        p.clock().UTC(),
	}
	if ids.appointmentID != "" {
		appt := ids.appointmentID
		rec.AppointmentID = &appt
	}
	if result.StructuredData != nil {
		if b, err := json.Marshal(result.StructuredData); err == nil {
			rec.StructuredData = b
		}
	}

	saved, err := p.store.Insert(ctx, rec)
	if errors.Is(err, ErrDuplicate) {
		p.logger.Info("analysis stored concurrently", slog.String("call_id", call.ID))
		res.Success = true
		res.CallSuccessful = true
		res.AlreadyProcessed = true
		return res
	}
	if err != nil {
		return p.fail(ctx, res, ids, err)
	}

	res.Success = true
	res.RecordID = saved.ID
	res.CallSuccessful = successful
	p.logger.Info("analysis stored",
		slog.String("call_id", call.ID),
		slog.String("record_id", saved.ID),
		slog.Bool("call_successful", successful),
	)
	p.runBusinessLogic(ctx, &res, ids, successful, SuccessText(result.SuccessEvaluation.Value))
	return res
}

// MarkPermanentlyFailed finalizes a call that ran out of retries. Nothing is
// persisted; the business-logic hook still runs once with a failure.
func (p *Processor) MarkPermanentlyFailed(ctx context.Context, call vapi.Call, reason string) ProcessResult {
	res := ProcessResult{CallID: call.ID, Error: reason, Reason: reason, Analysis: BuildResult(call)}
	p.runBusinessLogic(ctx, &res, extractIDs(call, res.Analysis), false, reason)
	return res
}

func (p *Processor) fail(ctx context.Context, res ProcessResult, ids callIDs, err error) ProcessResult {
	p.logger.Error("analysis save failed", slog.String("call_id", res.CallID), slog.String("error", err.Error()))
	res.Success = false
	res.CallSuccessful = false
	res.Error = err.Error()
	res.Reason = "analysis save failed"
	p.runBusinessLogic(ctx, &res, ids, false, err.Error())
	return res
}

func (p *Processor) runBusinessLogic(ctx context.Context, res *ProcessResult, ids callIDs, successful bool, reason string) {
	detail := ""
	if !successful {
		detail = reason
	}
	o := NewOutcome(res.CallID, ids.patientID, ids.appointmentID, successful, detail, p.clock().UTC())
	res.Outcome = &o
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyOutcome(ctx, o); err != nil {
		p.logger.Error("outcome notification failed", slog.String("call_id", res.CallID), slog.String("error", err.Error()))
	}
}

type callIDs struct {
	patientID     string
	appointmentID string
}

// extractIDs prefers structured data and falls back to call metadata.
func extractIDs(call vapi.Call, r Result) callIDs {
	var ids callIDs
	if r.StructuredData != nil {
		ids.patientID = lookupID(r.StructuredData, "patientId", "patient_id")
		ids.appointmentID = lookupID(r.StructuredData, "appointmentId", "appointment_id")
	}
	if ids.patientID == "" && call.Metadata != nil {
		ids.patientID = lookupID(call.Metadata, "patientId", "patient_id")
	}
	if ids.appointmentID == "" && call.Metadata != nil {
		ids.appointmentID = lookupID(call.Metadata, "appointmentId", "appointment_id")
	}
	return ids
}

func durationSeconds(call vapi.Call) float64 {
	if call.Duration > 0 {
		return call.Duration
	}
	if call.StartedAt != nil && call.EndedAt != nil && call.EndedAt.After(*call.StartedAt) {
		return call.EndedAt.Sub(*call.StartedAt).Seconds()
	}
	return 0
}
