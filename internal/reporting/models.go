package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AnalysisSummaryRequest asks for aggregates over analyses stored in Range.
type AnalysisSummaryRequest struct {
	Range TimeRange `json:"range"`
}

type AnalysisSummary struct {
	Range TimeRange `json:"range"`

	TotalCalls      int `json:"total_calls"`
	SuccessfulCalls int `json:"successful_calls"`
	FailedCalls     int `json:"failed_calls"`

	WithAppointment int `json:"with_appointment"`
	WithStructured  int `json:"with_structured_data"`

	TotalDurationSeconds   float64 `json:"total_duration_seconds"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`

	SuccessRate float64 `json:"success_rate"`
}
