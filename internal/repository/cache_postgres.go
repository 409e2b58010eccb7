package repository

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperhold/docvault/internal/cache"
	"github.com/paperhold/docvault/internal/entity"
)

type postgresCacheStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresCacheStore returns the Postgres-backed result cache store.
func NewPostgresCacheStore(pool *pgxpool.Pool, logger *slog.Logger) cache.Store {
	return &postgresCacheStore{pool: pool, logger: logger}
}

func (s *postgresCacheStore) Get(ctx context.Context, key string) (*entity.CacheEntry, bool, error) {
	var e entity.CacheEntry
	var op, provider string
	err := s.pool.QueryRow(ctx, `
		SELECT cache_key, operation_type, provider, response_data, prompt_tokens, completion_tokens, created_at
		FROM result_cache WHERE cache_key = $1`, key).
		Scan(&e.Key, &op, &provider, &e.Payload, &e.Usage.PromptTokens, &e.Usage.CompletionTokens, &e.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	e.Operation = entity.OperationKind(op)
	e.Provider = provider
	e.Usage.TotalTokens = e.Usage.PromptTokens + e.Usage.CompletionTokens
	return &e, true, nil
}

// Put inserts the entry. A concurrent writer that got there first wins; the
// conflict is not an error.
func (s *postgresCacheStore) Put(ctx context.Context, e entity.CacheEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO result_cache (cache_key, operation_type, provider, response_data, prompt_tokens, completion_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cache_key) DO NOTHING`,
		e.Key, string(e.Operation), e.Provider, e.Payload,
		e.Usage.PromptTokens, e.Usage.CompletionTokens, e.CreatedAt)
	return err
}
