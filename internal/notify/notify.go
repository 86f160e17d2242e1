package notify

import (
	"context"
	"errors"
	"log/slog"

	"telehealth-platform/internal/analysis"
)

// Multi fans an outcome out to every sink and joins their errors. A failing
// sink does not stop the others.
type Multi []analysis.Notifier

func (m Multi) NotifyOutcome(ctx context.Context, o analysis.Outcome) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyOutcome(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes outcomes to the structured log.
type Log struct {
	Logger *slog.Logger
}

func (l Log) NotifyOutcome(_ context.Context, o analysis.Outcome) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		slog.String("call_id", o.CallID),
		slog.String("patient_id", o.PatientID),
		slog.Bool("call_successful", o.CallSuccessful),
		slog.Any("actions", o.Actions),
		slog.Any("next_steps", o.NextSteps),
	}
	if o.AppointmentID != "" {
		attrs = append(attrs, slog.String("appointment_id", o.AppointmentID))
	}
	if o.FailureDetail != "" {
		attrs = append(attrs, slog.String("failure_detail", o.FailureDetail))
	}
	logger.Info("call outcome", attrs...)
	return nil
}
