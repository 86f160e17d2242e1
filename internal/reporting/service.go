package reporting

import (
	"context"
	"errors"

	"telehealth-platform/internal/analysis"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Service aggregates persisted call analyses. It reads the immutable
// call_analyses rows only.
type Service struct {
	repo analysis.Lister
}

func NewService(repo analysis.Lister) *Service { return &Service{repo: repo} }

func (s *Service) AnalysisSummary(ctx context.Context, req AnalysisSummaryRequest) (AnalysisSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return AnalysisSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return AnalysisSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListAnalyzedBetween(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return AnalysisSummary{}, err
	}

	out := AnalysisSummary{Range: req.Range}
	for _, r := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += r.DurationSeconds
		if r.CallSuccessful {
			out.SuccessfulCalls++
		} else {
			out.FailedCalls++
		}
		if r.AppointmentID != nil && *r.AppointmentID != "" {
			out.WithAppointment++
		}
		if len(r.StructuredData) > 0 {
			out.WithStructured++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / float64(out.TotalCalls)
		out.SuccessRate = float64(out.SuccessfulCalls) / float64(out.TotalCalls)
	}
	return out, nil
}
