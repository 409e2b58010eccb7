package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/paperhold/docvault/internal/cache"
	"github.com/paperhold/docvault/internal/entity"
)

type sqliteCacheStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteCacheStore opens (and bootstraps) a file-backed result cache for
// development setups that run without Postgres.
func OpenSQLiteCacheStore(path string, logger *slog.Logger) (cache.Store, func() error, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}
	// modernc sqlite serializes writers itself; one connection avoids
	// SQLITE_BUSY churn under concurrent uploads.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS result_cache (
			cache_key         TEXT PRIMARY KEY,
			operation_type    TEXT NOT NULL,
			provider          TEXT NOT NULL,
			response_data     TEXT NOT NULL,
			prompt_tokens     INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			created_at        TIMESTAMP NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return &sqliteCacheStore{db: db, logger: logger}, db.Close, nil
}

func (s *sqliteCacheStore) Get(ctx context.Context, key string) (*entity.CacheEntry, bool, error) {
	var e entity.CacheEntry
	var op, provider string
	var payload []byte
	var created time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT cache_key, operation_type, provider, response_data, prompt_tokens, completion_tokens, created_at
		FROM result_cache WHERE cache_key = ?`, key).
		Scan(&e.Key, &op, &provider, &payload, &e.Usage.PromptTokens, &e.Usage.CompletionTokens, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	e.Operation = entity.OperationKind(op)
	e.Provider = provider
	e.Payload = payload
	e.CreatedAt = created
	e.Usage.TotalTokens = e.Usage.PromptTokens + e.Usage.CompletionTokens
	return &e, true, nil
}

func (s *sqliteCacheStore) Put(ctx context.Context, e entity.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO result_cache (cache_key, operation_type, provider, response_data, prompt_tokens, completion_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Key, string(e.Operation), e.Provider, []byte(e.Payload),
		e.Usage.PromptTokens, e.Usage.CompletionTokens, e.CreatedAt)
	return err
}
