package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Manual is a virtual-time scheduler. Nothing fires until Advance moves the
// clock past a wake's due time.
type Manual struct {
	mu      sync.Mutex
	epoch   time.Time
	now     time.Duration
	seq     int
	queue   []Scheduled
	handler Handler
}

// Scheduled is a wake waiting in a Manual scheduler.
type Scheduled struct {
	Task Task
	At   time.Duration
	seq  int
}

func NewManual(epoch time.Time) *Manual {
	return &Manual{epoch: epoch}
}

func (m *Manual) Bind(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *Manual) Schedule(_ context.Context, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler == nil {
		return ErrNoHandler
	}
	m.seq++
	m.queue = append(m.queue, Scheduled{Task: t, At: m.now + t.Delay, seq: m.seq})
	return nil
}

// Elapsed is the virtual time since the epoch.
func (m *Manual) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Now is the virtual wall clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch.Add(m.now)
}

// Pending returns waiting wakes ordered by due time.
func (m *Manual) Pending() []Scheduled {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Scheduled, len(m.queue))
	copy(out, m.queue)
	sortScheduled(out)
	return out
}

// Advance moves the clock forward by d, firing every wake that comes due,
// including wakes scheduled by the handlers it runs. It returns the number of
// wakes fired.
func (m *Manual) Advance(ctx context.Context, d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	fired := 0
	for {
		m.mu.Lock()
		sortScheduled(m.queue)
		if len(m.queue) == 0 || m.queue[0].At > target {
			m.now = target
			m.mu.Unlock()
			return fired
		}
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.now = next.At
		h := m.handler
		m.mu.Unlock()

		h.HandleWake(ctx, next.Task)
		fired++
	}
}

func sortScheduled(s []Scheduled) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].At == s[j].At {
			return s[i].seq < s[j].seq
		}
		return s[i].At < s[j].At
	})
}
