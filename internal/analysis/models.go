package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Record is one persisted call analysis. Rows are written once per call id
// and never updated.
type Record struct {
	ID                string          `json:"id" db:"id"`
	CallID            string          `json:"callId" db:"call_id"`
	PatientID         string          `json:"patientId" db:"patient_id"`
	AppointmentID     *string         `json:"appointmentId,omitempty" db:"appointment_id"`
	Summary           string          `json:"summary" db:"summary"`
	StructuredData    json.RawMessage `json:"structuredData,omitempty" db:"structured_data"`
	CallSuccessful    bool            `json:"callSuccessful" db:"call_successful"`
	SuccessEvaluation json.RawMessage `json:"successEvaluation,omitempty" db:"success_evaluation"`
	Transcript        string          `json:"transcript,omitempty" db:"transcript"`
	DurationSeconds   float64         `json:"durationSeconds" db:"duration_seconds"`
	AnalyzedAt        time.Time       `json:"analyzedAt" db:"analyzed_at"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

var (
	// ErrDuplicate is returned by Insert when a row for the call id exists.
	ErrDuplicate = errors.New("analysis: analysis already stored for call")
	// ErrMissingPatientID marks a save that had no patient id to key on.
	ErrMissingPatientID = errors.New("analysis: patient id missing")
)

// Store is the persistence contract the processor depends on.
type Store interface {
	Exists(ctx context.Context, callID string) (bool, error)
	Insert(ctx context.Context, r Record) (Record, error)
	Get(ctx context.Context, callID string) (Record, bool, error)
}

// Lister is implemented by stores that can scan a time window. Reporting
// uses it; the processor does not.
type Lister interface {
	ListAnalyzedBetween(ctx context.Context, from, to time.Time) ([]Record, error)
}
