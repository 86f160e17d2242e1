package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepo stores analyses in the call_analyses table. call_id carries a
// unique constraint so concurrent inserts for one call resolve to one row.
type PostgresRepo struct {
	db querier
}

func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	if pool == nil {
		panic("analysis: pgx pool required")
	}
	return &PostgresRepo{db: pool}
}

func newPostgresRepoWithQuerier(q querier) *PostgresRepo {
	return &PostgresRepo{db: q}
}

const selectColumns = `id, call_id, patient_id, appointment_id, summary, structured_data,
	call_successful, success_evaluation, transcript, duration_seconds, analyzed_at, created_at`

func (r *PostgresRepo) Exists(ctx context.Context, callID string) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx, `SELECT 1 FROM call_analyses WHERE call_id = $1`, callID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("analysis: check exists: %w", err)
	}
	return true, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	query := `
		INSERT INTO call_analyses (id, call_id, patient_id, appointment_id, summary, structured_data,
			call_successful, success_evaluation, transcript, duration_seconds, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (call_id) DO NOTHING
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		rec.ID, rec.CallID, rec.PatientID, rec.AppointmentID, rec.Summary, nullJSON(rec.StructuredData),
		rec.CallSuccessful, nullJSON(rec.SuccessEvaluation), rec.Transcript, rec.DurationSeconds, rec.AnalyzedAt,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrDuplicate
		}
		return Record{}, fmt.Errorf("analysis: insert: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepo) Get(ctx context.Context, callID string) (Record, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM call_analyses WHERE call_id = $1`, callID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("analysis: get: %w", err)
	}
	return rec, true, nil
}

func (r *PostgresRepo) ListAnalyzedBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM call_analyses WHERE analyzed_at >= $1 AND analyzed_at < $2 ORDER BY analyzed_at`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("analysis: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("analysis: list scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analysis: list: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var structured, success []byte
	err := row.Scan(
		&rec.ID, &rec.CallID, &rec.PatientID, &rec.AppointmentID, &rec.Summary, &structured,
		&rec.CallSuccessful, &success, &rec.Transcript, &rec.DurationSeconds, &rec.AnalyzedAt, &rec.CreatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.StructuredData = structured
	rec.SuccessEvaluation = success
	return rec, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
