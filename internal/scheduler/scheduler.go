package scheduler

import (
	"context"
	"errors"
	"time"

	"telehealth-platform/internal/pending"
)

// Task is a delayed wake for one pending call on one retry track.
// Delay is the delay the task was scheduled with; backoff on the next wake
// is derived from it.
type Task struct {
	Track  pending.Track `json:"track"`
	CallID string        `json:"callId"`
	Delay  time.Duration `json:"delay"`
}

// Handler runs a wake. It must not panic and owns its own error handling.
type Handler interface {
	HandleWake(ctx context.Context, t Task)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t Task)

func (f HandlerFunc) HandleWake(ctx context.Context, t Task) { f(ctx, t) }

// Scheduler enqueues delayed wakes.
//
// There is no cancellation handle: a wake is cancelled by removing the
// pending record before it fires; the handler sees the record is gone and
// exits.
type Scheduler interface {
	Schedule(ctx context.Context, t Task) error
}

var (
	ErrStopped   = errors.New("scheduler: stopped")
	ErrNoHandler = errors.New("scheduler: handler not bound")
)
