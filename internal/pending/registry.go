package pending

import (
	"context"
	"errors"
	"sort"
	"time"

	"telehealth-platform/internal/calls"
	"telehealth-platform/internal/vapi"
)

// Track names the retry loop currently responsible for a pending call.
type Track string

const (
	TrackCompletion Track = "completion"
	TrackAnalysis   Track = "analysis"
)

var ErrInvalidCallID = errors.New("pending: call id required")

// Record tracks a call whose analysis-complete outcome is not known yet.
//
// Invariants:
// - At most one record exists per call id.
// - RetryCount only grows; it counts wakes of either retry loop.
// - The record is removed as soon as the call is resolved.
type Record struct {
	CallID        string       `json:"callId"`
	CallInfo      vapi.Call    `json:"callInfo"`
	ReceivedAt    time.Time    `json:"receivedAt"`
	RetryCount    int          `json:"retryCount"`
	InitialStatus calls.Status `json:"initialStatus"`
	Track         Track        `json:"track"`
}

// Entry is the read-only view exposed to the diagnostic endpoint.
type Entry struct {
	CallID        string       `json:"callId"`
	ReceivedAt    time.Time    `json:"receivedAt"`
	RetryCount    int          `json:"retryCount"`
	Status        calls.Status `json:"status"`
	InitialStatus calls.Status `json:"initialStatus"`
	Track         Track        `json:"track"`
}

// Registry is the process-wide map of pending calls.
//
// Every mutation is atomic per call id: callers running on timer goroutines
// re-check presence through IncrementRetry/Update instead of holding records.
type Registry interface {
	// UpsertIfAbsent creates a record and reports whether it did. An existing
	// record is left untouched.
	UpsertIfAbsent(ctx context.Context, callID string, call vapi.Call, initialStatus calls.Status, track Track) (bool, error)
	Get(ctx context.Context, callID string) (Record, bool, error)
	// IncrementRetry bumps the retry counter. ok is false when the record is
	// gone, which means another path already resolved the call.
	IncrementRetry(ctx context.Context, callID string) (count int, ok bool, err error)
	// Update refreshes the last-known snapshot and the active track.
	Update(ctx context.Context, callID string, call vapi.Call, track Track) (bool, error)
	Remove(ctx context.Context, callID string) error
	Snapshot(ctx context.Context) ([]Entry, error)
}

func (r Record) entry() Entry {
	return Entry{
		CallID:        r.CallID,
		ReceivedAt:    r.ReceivedAt,
		RetryCount:    r.RetryCount,
		Status:        r.CallInfo.Status,
		InitialStatus: r.InitialStatus,
		Track:         r.Track,
	}
}

func sortEntries(out []Entry) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].CallID < out[j].CallID
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
}
