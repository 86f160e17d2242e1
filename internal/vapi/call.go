package vapi

import (
	"bytes"
	"encoding/json"
	"time"

	"telehealth-platform/internal/calls"
)

// Call is the vendor's call object as delivered by webhooks and returned by
// GET /call/{id}. Every delivery is a new snapshot of the same call.
type Call struct {
	ID          string       `json:"id"`
	Status      calls.Status `json:"status"`
	EndedReason string       `json:"endedReason,omitempty"`

	// Duration is the call length in seconds.
	Duration float64 `json:"duration,omitempty"`
	Cost     float64 `json:"cost,omitempty"`

	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`

	Analysis   *Analysis      `json:"analysis,omitempty"`
	Transcript string         `json:"transcript,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Analysis is the vendor's post-call analysis. It often lands after the
// "ended" event. SuccessEvaluation may be a boolean, a string or anything
// else the assistant was told to produce, so both it and StructuredData are
// kept raw.
type Analysis struct {
	Summary           *string         `json:"summary,omitempty"`
	SuccessEvaluation json.RawMessage `json:"successEvaluation,omitempty"`
	StructuredData    json.RawMessage `json:"structuredData,omitempty"`
}

// HasAnalysis reports whether the call carries a non-empty analysis object.
func (c Call) HasAnalysis() bool {
	return c.Analysis != nil && !c.Analysis.IsEmpty()
}

// Class classifies the call for reconciliation.
func (c Call) Class() calls.Class {
	return calls.Classify(calls.Normalize(string(c.Status)), c.HasAnalysis())
}

// IsEmpty is true when no analysis field is present.
func (a *Analysis) IsEmpty() bool {
	if a == nil {
		return true
	}
	return a.Summary == nil && !Present(a.SuccessEvaluation) && !Present(a.StructuredData)
}

// Present reports whether a raw JSON value was supplied and is not null.
func Present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
