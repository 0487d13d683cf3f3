package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/rs/zerolog/log"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies the schema for the pool's dialect. Every statement is
// idempotent, so it is safe to run on each start.
func Migrate(ctx context.Context, db *DB) error {
	name := "schema/sqlite.sql"
	if db.Dialect == Postgres {
		name = "schema/postgres.sql"
	}

	content, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read schema %s: %w", name, err)
	}

	log.Info().Str("schema", name).Msg("applying schema")
	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("apply schema %s: %w", name, err)
	}
	return nil
}
