package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Timer runs wakes on in-process timers. Scheduled wakes are lost when the
// process exits.
type Timer struct {
	mu      sync.Mutex
	handler Handler
	timers  map[*time.Timer]struct{}
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewTimer(logger *slog.Logger) *Timer {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Timer{
		timers: map[*time.Timer]struct{}{},
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Bind sets the handler that runs fired wakes.
func (s *Timer) Bind(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *Timer) Schedule(_ context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.handler == nil {
		return ErrNoHandler
	}

	var tm *time.Timer
	tm = time.AfterFunc(t.Delay, func() { s.fire(tm, t) })
	s.timers[tm] = struct{}{}
	return nil
}

func (s *Timer) fire(tm *time.Timer, t Task) {
	s.mu.Lock()
	delete(s.timers, tm)
	if s.stopped {
		s.mu.Unlock()
		return
	}
	h := s.handler
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("wake panicked", "call_id", t.CallID, "track", t.Track, "panic", p)
		}
	}()
	h.HandleWake(s.ctx, t)
}

// Pending returns the number of timers that have not fired yet.
func (s *Timer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop drops unfired wakes, cancels running ones and waits for them.
func (s *Timer) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for tm := range s.timers {
		tm.Stop()
	}
	dropped := len(s.timers)
	s.timers = map[*time.Timer]struct{}{}
	s.mu.Unlock()
	s.cancel()

	if dropped > 0 {
		s.logger.Warn("dropping scheduled wakes on shutdown", "count", dropped)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
