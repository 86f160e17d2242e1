package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Store used by tests and the local profile.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]Record{}}
}

func (r *MemoryRepo) Exists(ctx context.Context, callID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[callID]
	return ok, nil
}

func (r *MemoryRepo) Insert(ctx context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[rec.CallID]; ok {
		return Record{}, ErrDuplicate
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.rows[rec.CallID] = rec
	return rec, nil
}

func (r *MemoryRepo) Get(ctx context.Context, callID string) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[callID]
	return rec, ok, nil
}

func (r *MemoryRepo) ListAnalyzedBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.rows))
	for _, rec := range r.rows {
		if rec.AnalyzedAt.Before(from) || !rec.AnalyzedAt.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnalyzedAt.Before(out[j].AnalyzedAt) })
	return out, nil
}

// Len returns the number of stored rows.
func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}
