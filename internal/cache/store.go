package cache

import (
	"context"

	"github.com/paperhold/docvault/internal/entity"
)

// Store is the durable key→result table behind the result cache.
//
// Put has first-write-wins semantics: racing writers on the same key are not
// an error, the first row stands and later writes are no-ops.
type Store interface {
	Get(ctx context.Context, key string) (*entity.CacheEntry, bool, error)
	Put(ctx context.Context, entry entity.CacheEntry) error
}
