package notify

import (
	"context"
	"fmt"

	"telehealth-platform/internal/analysis"
	"telehealth-platform/internal/vapi"
)

// CallUpdater is the vendor call-update API.
type CallUpdater interface {
	UpdateCall(ctx context.Context, callID string, req vapi.UpdateCallRequest) (vapi.Call, error)
}

// VendorMetadata patches the outcome back onto the vendor call record so it
// shows up in the vendor dashboard.
type VendorMetadata struct {
	client CallUpdater
}

func NewVendorMetadata(client CallUpdater) *VendorMetadata {
	if client == nil {
		panic("notify: vendor client required")
	}
	return &VendorMetadata{client: client}
}

func (v *VendorMetadata) NotifyOutcome(ctx context.Context, o analysis.Outcome) error {
	meta := map[string]any{
		"callSuccessful": o.CallSuccessful,
		"actions":        o.Actions,
		"nextSteps":      o.NextSteps,
		"processedAt":    o.OccurredAt,
	}
	if o.FailureDetail != "" {
		meta["failureDetail"] = o.FailureDetail
	}
	if _, err := v.client.UpdateCall(ctx, o.CallID, vapi.UpdateCallRequest{Metadata: meta}); err != nil {
		return fmt.Errorf("notify: patch vendor metadata: %w", err)
	}
	return nil
}
