package pending

import (
	"context"
	"sync"
	"time"

	"telehealth-platform/internal/calls"
	"telehealth-platform/internal/vapi"
)

// MemoryRegistry keeps pending calls in process memory. A restart drops all
// in-flight tracking; use RedisRegistry when that matters.
type MemoryRegistry struct {
	mu      sync.Mutex
	records map[string]*Record
	clock   func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: map[string]*Record{}, clock: time.Now}
}

// WithClock replaces the clock used for ReceivedAt.
func (r *MemoryRegistry) WithClock(clock func() time.Time) *MemoryRegistry {
	if clock != nil {
		r.clock = clock
	}
	return r
}

func (r *MemoryRegistry) UpsertIfAbsent(_ context.Context, callID string, call vapi.Call, initialStatus calls.Status, track Track) (bool, error) {
	if callID == "" {
		return false, ErrInvalidCallID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[callID]; ok {
		return false, nil
	}
	r.records[callID] = &Record{
		CallID:        callID,
		CallInfo:      call,
		ReceivedAt:    r.clock().UTC(),
		InitialStatus: initialStatus,
		Track:         track,
	}
	return true, nil
}

func (r *MemoryRegistry) Get(_ context.Context, callID string) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[callID]
	if !ok {
		return Record{}, false, nil
	}
	return *rec, true, nil
}

func (r *MemoryRegistry) IncrementRetry(_ context.Context, callID string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[callID]
	if !ok {
		return 0, false, nil
	}
	rec.RetryCount++
	return rec.RetryCount, true, nil
}

func (r *MemoryRegistry) Update(_ context.Context, callID string, call vapi.Call, track Track) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[callID]
	if !ok {
		return false, nil
	}
	rec.CallInfo = call
	if track != "" {
		rec.Track = track
	}
	return true, nil
}

func (r *MemoryRegistry) Remove(_ context.Context, callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, callID)
	return nil
}

func (r *MemoryRegistry) Snapshot(_ context.Context) ([]Entry, error) {
	r.mu.Lock()
	out := make([]Entry, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.entry())
	}
	r.mu.Unlock()
	sortEntries(out)
	return out, nil
}

// Len returns the number of tracked calls.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
