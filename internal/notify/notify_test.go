package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"telehealth-platform/internal/analysis"
	"telehealth-platform/internal/vapi"
)

func sampleOutcome(successful bool) analysis.Outcome {
	return analysis.NewOutcome("c1", "p1", "a1", successful, "patient hung up", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
}

type countingNotifier struct {
	n   int
	err error
}

func (c *countingNotifier) NotifyOutcome(context.Context, analysis.Outcome) error {
	c.n++
	return c.err
}

func TestMulti_CallsEverySinkAndJoinsErrors(t *testing.T) {
	a := &countingNotifier{err: errors.New("a down")}
	b := &countingNotifier{}
	err := Multi{a, nil, b}.NotifyOutcome(context.Background(), sampleOutcome(true))
	if err == nil || !strings.Contains(err.Error(), "a down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if a.n != 1 || b.n != 1 {
		t.Fatalf("expected both sinks called, got %d/%d", a.n, b.n)
	}
}

func TestLog_WritesOutcome(t *testing.T) {
	var buf bytes.Buffer
	l := Log{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	if err := l.NotifyOutcome(context.Background(), sampleOutcome(false)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"call_id":"c1"`) || !strings.Contains(out, "failure_detail") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestRedis_PublishesOutcome(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := NewRedis(rdb, "").NotifyOutcome(ctx, sampleOutcome(true)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var got analysis.Outcome
	if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CallID != "c1" || !got.CallSuccessful || got.Actions[0] != analysis.ActionPrescreeningCompleted {
		t.Fatalf("unexpected outcome: %+v", got)
	}
}

func TestRedis_PublishError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	if err := NewRedis(rdb, "x").NotifyOutcome(context.Background(), sampleOutcome(true)); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}

type fakeUpdater struct {
	id  string
	req vapi.UpdateCallRequest
}

func (f *fakeUpdater) UpdateCall(_ context.Context, id string, req vapi.UpdateCallRequest) (vapi.Call, error) {
	f.id, f.req = id, req
	return vapi.Call{ID: id}, nil
}

func TestVendorMetadata_PatchesOutcome(t *testing.T) {
	u := &fakeUpdater{}
	if err := NewVendorMetadata(u).NotifyOutcome(context.Background(), sampleOutcome(false)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if u.id != "c1" {
		t.Fatalf("expected patch for c1, got %q", u.id)
	}
	if u.req.Metadata["callSuccessful"] != false || u.req.Metadata["failureDetail"] == nil {
		t.Fatalf("unexpected metadata: %+v", u.req.Metadata)
	}
}
