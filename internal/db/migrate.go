package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the embedded SQL migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrate applies pending migrations (up) or rolls back the latest one (down).
func Migrate(ctx context.Context, pool *pgxpool.Pool, direction string, logger *slog.Logger) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	provider, err := goose.NewProvider(database.DialectPostgres, sqlDB, Migrations())
	if err != nil {
		return fmt.Errorf("db: migration provider: %w", err)
	}

	var results []*goose.MigrationResult
	switch direction {
	case "up", "":
		results, err = provider.Up(ctx)
	case "down":
		var res *goose.MigrationResult
		res, err = provider.Down(ctx)
		if res != nil {
			results = append(results, res)
		}
	default:
		return fmt.Errorf("db: unknown migration direction %q", direction)
	}
	for _, r := range results {
		logger.Info("migration applied",
			slog.Int64("version", r.Source.Version),
			slog.String("direction", r.Direction),
			slog.Duration("duration", r.Duration),
		)
	}
	if err != nil {
		return fmt.Errorf("db: migrate %s: %w", direction, err)
	}
	return nil
}
