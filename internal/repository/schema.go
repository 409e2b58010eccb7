package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id                    UUID PRIMARY KEY,
		filename              TEXT NOT NULL,
		content_type          TEXT NOT NULL,
		file_size             INTEGER NOT NULL,
		storage_path          TEXT NOT NULL,
		resized_path          TEXT,
		extracted_text        TEXT NOT NULL DEFAULT '',
		extraction_method     TEXT,
		extraction_confidence DOUBLE PRECISION,
		document_type         TEXT,
		owner_name            TEXT,
		category              TEXT,
		issue_date            DATE,
		expiry_date           DATE,
		country               TEXT,
		amount_value          TEXT,
		amount_currency       TEXT,
		metadata              JSONB,
		thumbnail             BYTEA,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS documents_created_at_idx ON documents (created_at)`,
	`CREATE TABLE IF NOT EXISTS result_cache (
		cache_key         TEXT PRIMARY KEY,
		operation_type    TEXT NOT NULL,
		provider          TEXT NOT NULL,
		response_data     JSONB NOT NULL,
		prompt_tokens     INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables when they do not exist yet. Statements are
// idempotent so startup stays safe across restarts.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			logger.Error("failed to apply schema statement", "error", err)
			return err
		}
	}
	logger.Info("database schema ready")
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
