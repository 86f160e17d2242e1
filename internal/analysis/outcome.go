package analysis

import (
	"context"
	"time"
)

// Action and next-step tags emitted by the business-logic hook.
const (
	ActionPrescreeningCompleted = "prescreening_completed"
	ActionPrescreeningFailed    = "prescreening_failed"

	NextStepScheduleConsultation = "schedule_consultation"
	NextStepManualFollowUp       = "manual_followup"
)

// Outcome is what the business-logic hook hands to downstream services once
// a call is finalized.
type Outcome struct {
	CallID         string    `json:"callId"`
	PatientID      string    `json:"patientId,omitempty"`
	AppointmentID  string    `json:"appointmentId,omitempty"`
	CallSuccessful bool      `json:"callSuccessful"`
	Actions        []string  `json:"actions"`
	NextSteps      []string  `json:"nextSteps"`
	FailureDetail  string    `json:"failureDetail,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Notifier receives finalized outcomes. Implementations live in the notify
// package; errors are logged by the caller and never retried.
type Notifier interface {
	NotifyOutcome(ctx context.Context, o Outcome) error
}

// NewOutcome builds the outcome for a finalized call. reason is only used
// for unsuccessful calls.
func NewOutcome(callID, patientID, appointmentID string, successful bool, reason string, at time.Time) Outcome {
	o := Outcome{
		CallID:         callID,
		PatientID:      patientID,
		AppointmentID:  appointmentID,
		CallSuccessful: successful,
		OccurredAt:     at,
	}
	if successful {
		o.Actions = []string{ActionPrescreeningCompleted}
		o.NextSteps = []string{NextStepScheduleConsultation}
		return o
	}
	o.Actions = []string{ActionPrescreeningFailed}
	o.NextSteps = []string{NextStepManualFollowUp}
	o.FailureDetail = "Pre-screening call was not successful"
	if reason != "" {
		o.FailureDetail += ": " + reason
	}
	o.FailureDetail += ". Patient requires manual follow-up."
	return o
}
