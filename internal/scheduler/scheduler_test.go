package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telehealth-platform/internal/pending"

	"github.com/hibiken/asynq"
)

type recorder struct {
	mu    sync.Mutex
	tasks []Task
}

func (r *recorder) HandleWake(_ context.Context, t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
}

func TestManual_FiresInDueOrder(t *testing.T) {
	m := NewManual(time.Unix(1700000000, 0))
	rec := &recorder{}
	m.Bind(rec)
	ctx := context.Background()

	_ = m.Schedule(ctx, Task{Track: pending.TrackCompletion, CallID: "late", Delay: 60 * time.Second})
	_ = m.Schedule(ctx, Task{Track: pending.TrackAnalysis, CallID: "early", Delay: 30 * time.Second})

	if n := m.Advance(ctx, 29*time.Second); n != 0 {
		t.Fatalf("expected nothing due, fired %d", n)
	}
	if n := m.Advance(ctx, time.Second); n != 1 {
		t.Fatalf("expected 1 fired, got %d", n)
	}
	if n := m.Advance(ctx, time.Minute); n != 1 {
		t.Fatalf("expected 1 fired, got %d", n)
	}
	if len(rec.tasks) != 2 || rec.tasks[0].CallID != "early" || rec.tasks[1].CallID != "late" {
		t.Fatalf("unexpected order: %+v", rec.tasks)
	}
	if m.Elapsed() != 90*time.Second {
		t.Fatalf("expected elapsed 90s, got %v", m.Elapsed())
	}
}

func TestManual_FiresWakesScheduledDuringAdvance(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	ctx := context.Background()
	var fired []time.Duration
	m.Bind(HandlerFunc(func(ctx context.Context, t Task) {
		fired = append(fired, m.Elapsed())
		if len(fired) < 3 {
			_ = m.Schedule(ctx, Task{CallID: t.CallID, Delay: 10 * time.Second})
		}
	}))
	_ = m.Schedule(ctx, Task{CallID: "c", Delay: 10 * time.Second})

	if n := m.Advance(ctx, time.Minute); n != 3 {
		t.Fatalf("expected 3 fired, got %d", n)
	}
	want := []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("wake %d fired at %v, want %v", i, fired[i], want[i])
		}
	}
	if len(m.Pending()) != 0 {
		t.Fatalf("expected empty queue")
	}
}

func TestManual_RequiresHandler(t *testing.T) {
	m := NewManual(time.Now())
	if err := m.Schedule(context.Background(), Task{CallID: "c"}); !errors.Is(err, ErrNoHandler) {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
}

func TestTimer_FiresAndStops(t *testing.T) {
	s := NewTimer(nil)
	done := make(chan Task, 1)
	s.Bind(HandlerFunc(func(_ context.Context, t Task) { done <- t }))

	if err := s.Schedule(context.Background(), Task{Track: pending.TrackAnalysis, CallID: "c1", Delay: time.Millisecond}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	select {
	case got := <-done:
		if got.CallID != "c1" {
			t.Fatalf("unexpected task %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never fired")
	}

	if err := s.Schedule(context.Background(), Task{CallID: "c2", Delay: time.Hour}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if s.Pending() != 1 {
		t.Fatalf("expected 1 pending timer")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Pending() != 0 {
		t.Fatalf("expected timers dropped")
	}
	if err := s.Schedule(context.Background(), Task{CallID: "c3"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestWakeTaskRoundTrip(t *testing.T) {
	in := Task{Track: pending.TrackAnalysis, CallID: "call-9", Delay: 45 * time.Second}
	task, err := NewWakeTask(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if task.Type() != TaskWake {
		t.Fatalf("unexpected type %q", task.Type())
	}
	out, err := ParseWakeTask(task)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestAsynqWorker_ProcessDispatches(t *testing.T) {
	rec := &recorder{}
	w := &AsynqWorker{handler: rec, logger: nil}
	task, _ := NewWakeTask(Task{Track: pending.TrackCompletion, CallID: "c1", Delay: time.Minute})
	if err := w.process(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(rec.tasks) != 1 || rec.tasks[0].CallID != "c1" {
		t.Fatalf("expected dispatch, got %+v", rec.tasks)
	}
}

func TestAsynqWorker_ProcessRejectsMalformed(t *testing.T) {
	w := NewAsynqWorker(asynq.RedisClientOpt{Addr: "127.0.0.1:0"}, "", 0, &recorder{}, nil)
	err := w.process(context.Background(), asynq.NewTask(TaskWake, []byte(`{"track":"analysis"}`)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
