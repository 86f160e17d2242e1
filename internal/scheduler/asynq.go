package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskWake is the asynq task type for reconciliation wakes.
const TaskWake = "reconcile.wake"

type wakePayload struct {
	Track   string `json:"track"`
	CallID  string `json:"callId"`
	DelayMs int64  `json:"delayMs"`
}

// NewWakeTask encodes a Task for asynq.
func NewWakeTask(t Task) (*asynq.Task, error) {
	data, err := json.Marshal(wakePayload{Track: string(t.Track), CallID: t.CallID, DelayMs: t.Delay.Milliseconds()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWake, data), nil
}

// ParseWakeTask decodes an asynq task produced by NewWakeTask.
func ParseWakeTask(task *asynq.Task) (Task, error) {
	var p wakePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return Task{}, err
	}
	if p.CallID == "" {
		return Task{}, fmt.Errorf("scheduler: wake task without call id")
	}
	return Task{Track: trackOf(p.Track), CallID: p.CallID, Delay: time.Duration(p.DelayMs) * time.Millisecond}, nil
}

// Asynq schedules wakes as Redis-backed delayed tasks, so they survive a
// restart. An AsynqWorker must run somewhere to execute them.
type Asynq struct {
	client *asynq.Client
	queue  string
}

func NewAsynq(opt asynq.RedisConnOpt, queue string) *Asynq {
	if queue == "" {
		queue = "default"
	}
	return &Asynq{client: asynq.NewClient(opt), queue: queue}
}

func (a *Asynq) Schedule(ctx context.Context, t Task) error {
	task, err := NewWakeTask(t)
	if err != nil {
		return err
	}
	// The reconciler owns retries; asynq must not replay a wake on its own.
	_, err = a.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(t.Delay),
		asynq.Queue(a.queue),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return fmt.Errorf("scheduler: enqueue wake: %w", err)
	}
	return nil
}

func (a *Asynq) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}

// AsynqWorker executes wakes enqueued by Asynq.
type AsynqWorker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler Handler
	logger  *slog.Logger
}

func NewAsynqWorker(opt asynq.RedisConnOpt, queue string, concurrency int, h Handler, logger *slog.Logger) *AsynqWorker {
	if queue == "" {
		queue = "default"
	}
	if concurrency < 1 {
		concurrency = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})
	w := &AsynqWorker{server: server, mux: asynq.NewServeMux(), handler: h, logger: logger}
	w.mux.HandleFunc(TaskWake, w.process)
	return w
}

func (w *AsynqWorker) process(ctx context.Context, task *asynq.Task) error {
	t, err := ParseWakeTask(task)
	if err != nil {
		// Malformed payloads are never going to parse; drop them.
		w.logger.Error("invalid wake task", "err", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	w.handler.HandleWake(ctx, t)
	return nil
}

// Run starts the worker and blocks until ctx is cancelled, then drains
// in-flight wakes.
func (w *AsynqWorker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("scheduler: asynq worker: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
