package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrateUp applies every embedded *.up.sql file in lexical order. The
// statements are idempotent, so running it on every start is safe.
func MigrateUp(ctx context.Context, db *pgxpool.Pool, log zerolog.Logger) error {
	return applyMigrations(ctx, db, log, "migrations/*.up.sql")
}

// MigrateDown applies every embedded *.down.sql file in reverse order.
func MigrateDown(ctx context.Context, db *pgxpool.Pool, log zerolog.Logger) error {
	return applyMigrations(ctx, db, log, "migrations/*.down.sql")
}

func applyMigrations(ctx context.Context, db *pgxpool.Pool, log zerolog.Logger, pattern string) error {
	files, err := fs.Glob(migrations, pattern)
	if err != nil {
		return fmt.Errorf("read migration files: %w", err)
	}
	if len(files) > 0 && pattern == "migrations/*.down.sql" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	for _, file := range files {
		sqlBytes, err := migrations.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", file, err)
		}
		if _, err := db.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		log.Debug().Str("file", file).Msg("migration applied")
	}
	return nil
}
