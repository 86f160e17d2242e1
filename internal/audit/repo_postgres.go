package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepo appends to the audit_events table. The table has no UPDATE
// or DELETE grants for the service role.
type PostgresRepo struct {
	db execer
}

func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	if pool == nil {
		panic("audit: pgx pool required")
	}
	return &PostgresRepo{db: pool}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	query := `
		INSERT INTO audit_events (id, type, call_id, track, retry_count, actor_user_id, actor_role, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var metadata any
	if e.Metadata != "" {
		metadata = e.Metadata
	}
	if _, err := r.db.Exec(ctx, query,
		e.ID, string(e.Type), e.CallID, e.Track, e.RetryCount, e.ActorUserID, e.ActorRole, e.Message, metadata, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}
