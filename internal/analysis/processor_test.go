package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"telehealth-platform/internal/calls"
	"telehealth-platform/internal/vapi"
)

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []Outcome
	err      error
}

func (n *recordingNotifier) NotifyOutcome(ctx context.Context, o Outcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
	return n.err
}

func (n *recordingNotifier) all() []Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Outcome(nil), n.outcomes...)
}

type failingStore struct {
	*MemoryRepo
	existsErr error
	insertErr error
}

func (s *failingStore) Exists(ctx context.Context, id string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.MemoryRepo.Exists(ctx, id)
}

func (s *failingStore) Insert(ctx context.Context, r Record) (Record, error) {
	if s.insertErr != nil {
		return Record{}, s.insertErr
	}
	return s.MemoryRepo.Insert(ctx, r)
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestProcessor(store Store) (*Processor, *recordingNotifier) {
	n := &recordingNotifier{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	p := NewProcessor(store, n, logger).WithClock(func() time.Time { return fixedNow })
	return p, n
}

func endedCall(id string, a *vapi.Analysis) vapi.Call {
	return vapi.Call{ID: id, Status: calls.StatusEnded, Duration: 95, Transcript: "hello", Analysis: a}
}

func TestProcess_PersistsAndNotifiesOnce(t *testing.T) {
	repo := NewMemoryRepo()
	p, n := newTestProcessor(repo)

	call := endedCall("c1", &vapi.Analysis{
		Summary:           strPtr("ok"),
		SuccessEvaluation: json.RawMessage(`true`),
		StructuredData:    json.RawMessage(`{"patientId":"p1","appointmentId":"a1"}`),
	})
	res := p.Process(context.Background(), call)
	if !res.Success || !res.CallSuccessful || res.RecordID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	rec, ok, _ := repo.Get(context.Background(), "c1")
	if !ok {
		t.Fatalf("expected persisted row")
	}
	if rec.PatientID != "p1" || rec.AppointmentID == nil || *rec.AppointmentID != "a1" {
		t.Fatalf("unexpected ids: %+v", rec)
	}
	if rec.DurationSeconds != 95 || rec.Transcript != "hello" || !rec.AnalyzedAt.Equal(fixedNow) {
		t.Fatalf("unexpected row: %+v", rec)
	}

	outs := n.all()
	if len(outs) != 1 {
		t.Fatalf("expected one outcome, got %d", len(outs))
	}
	if !outs[0].CallSuccessful || outs[0].Actions[0] != ActionPrescreeningCompleted || outs[0].FailureDetail != "" {
		t.Fatalf("unexpected outcome: %+v", outs[0])
	}
}

func TestProcess_IdempotentOnRedelivery(t *testing.T) {
	repo := NewMemoryRepo()
	p, n := newTestProcessor(repo)
	call := endedCall("c1", &vapi.Analysis{
		Summary:           strPtr("ok"),
		SuccessEvaluation: json.RawMessage(`"Call failed"`),
		StructuredData:    json.RawMessage(`{"patientId":"p1"}`),
	})

	first := p.Process(context.Background(), call)
	if first.CallSuccessful {
		t.Fatalf("expected unsuccessful call on first pass")
	}
	second := p.Process(context.Background(), call)
	if !second.AlreadyProcessed || !second.CallSuccessful || !second.Success {
		t.Fatalf("expected short-circuit, got %+v", second)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected one row, got %d", repo.Len())
	}
	if len(n.all()) != 1 {
		t.Fatalf("expected hook to run once, got %d", len(n.all()))
	}
}

func TestProcess_IncompleteSkipsPersistence(t *testing.T) {
	repo := NewMemoryRepo()
	p, n := newTestProcessor(repo)

	res := p.Process(context.Background(), endedCall("c1", &vapi.Analysis{Summary: strPtr("only summary")}))
	if res.Success || res.Reason != ReasonIncomplete || res.CallSuccessful {
		t.Fatalf("unexpected result: %+v", res)
	}
	if repo.Len() != 0 {
		t.Fatalf("expected no rows")
	}
	outs := n.all()
	if len(outs) != 1 || outs[0].CallSuccessful || outs[0].NextSteps[0] != NextStepManualFollowUp {
		t.Fatalf("unexpected outcomes: %+v", outs)
	}
}

func TestProcess_MissingPatientIDIsReportedNotThrown(t *testing.T) {
	repo := NewMemoryRepo()
	p, n := newTestProcessor(repo)

	res := p.Process(context.Background(), endedCall("c1", &vapi.Analysis{
		Summary:           strPtr("ok"),
		SuccessEvaluation: json.RawMessage(`true`),
	}))
	if res.Success || res.CallSuccessful || res.Error != ErrMissingPatientID.Error() {
		t.Fatalf("unexpected result: %+v", res)
	}
	if repo.Len() != 0 {
		t.Fatalf("expected no rows")
	}
	if len(n.all()) != 1 {
		t.Fatalf("expected hook to run once")
	}
}

func TestProcess_PatientIDFromMetadata(t *testing.T) {
	repo := NewMemoryRepo()
	p, _ := newTestProcessor(repo)

	call := endedCall("c1", &vapi.Analysis{
		Summary:           strPtr("ok"),
		SuccessEvaluation: json.RawMessage(`true`),
		StructuredData:    json.RawMessage(`"{not valid json"`),
	})
	call.Metadata = map[string]any{"patientId": "p9"}

	res := p.Process(context.Background(), call)
	if !res.Success || len(res.Analysis.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	rec, ok, _ := repo.Get(context.Background(), "c1")
	if !ok || rec.PatientID != "p9" || rec.StructuredData != nil {
		t.Fatalf("unexpected row: %+v", rec)
	}
}

func TestProcess_StoreErrorsAreFolded(t *testing.T) {
	store := &failingStore{MemoryRepo: NewMemoryRepo(), insertErr: errors.New("db down")}
	p, n := newTestProcessor(store)
	n.err = errors.New("notifier down")

	res := p.Process(context.Background(), endedCall("c1", &vapi.Analysis{
		Summary:           strPtr("ok"),
		SuccessEvaluation: json.RawMessage(`true`),
		StructuredData:    json.RawMessage(`{"patientId":"p1"}`),
	}))
	if res.Success || res.CallSuccessful || res.Error != "db down" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(n.all()) != 1 {
		t.Fatalf("expected hook to run once")
	}
}

func TestProcess_ConcurrentInsertTreatedAsProcessed(t *testing.T) {
	store := &failingStore{MemoryRepo: NewMemoryRepo(), insertErr: ErrDuplicate}
	p, n := newTestProcessor(store)

	res := p.Process(context.Background(), endedCall("c1", &vapi.Analysis{
		Summary:           strPtr("ok"),
		SuccessEvaluation: json.RawMessage(`true`),
		StructuredData:    json.RawMessage(`{"patientId":"p1"}`),
	}))
	if !res.AlreadyProcessed || !res.CallSuccessful {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(n.all()) != 0 {
		t.Fatalf("hook must not run for an already stored call")
	}
}

func TestMarkPermanentlyFailed(t *testing.T) {
	p, n := newTestProcessor(NewMemoryRepo())
	call := vapi.Call{ID: "c1", Metadata: map[string]any{"patient_id": "p1"}}

	res := p.MarkPermanentlyFailed(context.Background(), call, "max retries exceeded")
	if res.Success || res.CallSuccessful || res.Outcome == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	outs := n.all()
	if len(outs) != 1 || outs[0].PatientID != "p1" || outs[0].Actions[0] != ActionPrescreeningFailed {
		t.Fatalf("unexpected outcomes: %+v", outs)
	}
	if outs[0].FailureDetail == "" {
		t.Fatalf("expected failure detail")
	}
}
