package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestPostgresRepo_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepoWithQuerier(mock)

	mock.ExpectQuery("SELECT 1 FROM call_analyses").WithArgs("c1").WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))
	ok, err := repo.Exists(context.Background(), "c1")
	if err != nil || !ok {
		t.Fatalf("expected existing row, got %v %v", ok, err)
	}

	mock.ExpectQuery("SELECT 1 FROM call_analyses").WithArgs("c2").WillReturnError(pgx.ErrNoRows)
	ok, err = repo.Exists(context.Background(), "c2")
	if err != nil || ok {
		t.Fatalf("expected missing row, got %v %v", ok, err)
	}

	mock.ExpectQuery("SELECT 1 FROM call_analyses").WithArgs("c3").WillReturnError(errors.New("boom"))
	if _, err := repo.Exists(context.Background(), "c3"); err == nil {
		t.Fatalf("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepo_InsertAndConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepoWithQuerier(mock)

	analyzed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	created := analyzed.Add(time.Second)
	rec := Record{
		ID:                "r1",
		CallID:            "c1",
		PatientID:         "p1",
		Summary:           "ok",
		StructuredData:    json.RawMessage(`{"patientId":"p1"}`),
		CallSuccessful:    true,
		SuccessEvaluation: json.RawMessage(`true`),
		DurationSeconds:   12,
		AnalyzedAt:        analyzed,
	}

	mock.ExpectQuery("INSERT INTO call_analyses").
		WithArgs("r1", "c1", "p1", (*string)(nil), "ok", `{"patientId":"p1"}`, true, `true`, "", float64(12), analyzed).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))
	saved, err := repo.Insert(context.Background(), rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !saved.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at to be returned")
	}

	mock.ExpectQuery("INSERT INTO call_analyses").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Insert(context.Background(), rec); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepo_GetAndList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepoWithQuerier(mock)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	appt := "a1"
	cols := []string{"id", "call_id", "patient_id", "appointment_id", "summary", "structured_data",
		"call_successful", "success_evaluation", "transcript", "duration_seconds", "analyzed_at", "created_at"}

	mock.ExpectQuery("SELECT id, call_id").WithArgs("c1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("r1", "c1", "p1", &appt, "ok", []byte(`{}`), true, []byte(`true`), "t", float64(3), at, at))
	rec, ok, err := repo.Get(context.Background(), "c1")
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if rec.AppointmentID == nil || *rec.AppointmentID != "a1" || string(rec.SuccessEvaluation) != "true" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	mock.ExpectQuery("SELECT id, call_id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, ok, err := repo.Get(context.Background(), "missing"); err != nil || ok {
		t.Fatalf("expected not found, got %v %v", ok, err)
	}

	mock.ExpectQuery("SELECT id, call_id").WithArgs(at, at.Add(time.Hour)).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("r1", "c1", "p1", (*string)(nil), "ok", []byte(nil), true, []byte(`true`), "", float64(3), at, at).
			AddRow("r2", "c2", "p2", &appt, "meh", []byte(nil), false, []byte(`false`), "", float64(7), at, at))
	list, err := repo.ListAnalyzedBetween(context.Background(), at, at.Add(time.Hour))
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %d %v", len(list), err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
