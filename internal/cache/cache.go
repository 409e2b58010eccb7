package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/paperhold/docvault/internal/entity"
)

const (
	writeQueueDepth = 64
	writeTimeout    = 5 * time.Second
)

// ResultCache wraps expensive extraction and parse calls with a
// lookup-or-compute-and-store policy over a Store.
//
// The cache is an optimization only: read failures are treated as misses and
// write failures are logged and swallowed, so a broken store never turns a
// working request into an error. Concurrent requests for the same uncached key
// both invoke the producer; there is no single-flight de-duplication.
type ResultCache struct {
	store  Store
	log    *slog.Logger
	writes chan entity.CacheEntry
	done   chan struct{}
	once   sync.Once
}

// New creates a ResultCache and starts its background write drainer.
func New(store Store, log *slog.Logger) *ResultCache {
	if log == nil {
		log = slog.Default()
	}
	c := &ResultCache{
		store:  store,
		log:    log,
		writes: make(chan entity.CacheEntry, writeQueueDepth),
		done:   make(chan struct{}),
	}
	go c.drain()
	return c
}

// Close stops accepting writes and waits for queued entries to flush.
func (c *ResultCache) Close() {
	c.once.Do(func() {
		close(c.writes)
		<-c.done
	})
}

// ExtractProducer performs the real extraction call on a cache miss.
type ExtractProducer func(ctx context.Context) (entity.ExtractPayload, entity.UsageStats, error)

// ParseProducer performs the real parse call on a cache miss.
type ParseProducer func(ctx context.Context) (entity.ParsePayload, entity.UsageStats, error)

// ExtractText returns the cached extraction for (provider, payload, prompt) or
// invokes produce and stores its result. The bool reports a cache hit.
func (c *ResultCache) ExtractText(ctx context.Context, provider, payload, prompt string, produce ExtractProducer) (entity.ExtractPayload, entity.UsageStats, bool, error) {
	key := Key(entity.OpExtractText, provider, payload, prompt)
	if entry, ok := c.lookup(ctx, entity.OpExtractText, key); ok {
		if p, ok := narrowExtract(entry.Payload); ok {
			c.log.Info("cache.hit", "op", entity.OpExtractText, "provider", provider, "key", key)
			return p, entry.Usage, true, nil
		}
		c.log.Warn("cache.entry_shape_mismatch", "op", entity.OpExtractText, "key", key)
	}

	p, usage, err := produce(ctx)
	if err != nil {
		return entity.ExtractPayload{}, entity.UsageStats{}, false, err
	}
	c.put(key, entity.OpExtractText, provider, p, usage)
	return p, usage, false, nil
}

// ParseText returns the cached parse result for (provider, text, prompt) or
// invokes produce and stores its result. The bool reports a cache hit.
func (c *ResultCache) ParseText(ctx context.Context, provider, text, prompt string, produce ParseProducer) (entity.ParsePayload, entity.UsageStats, bool, error) {
	key := Key(entity.OpParseText, provider, text, prompt)
	if entry, ok := c.lookup(ctx, entity.OpParseText, key); ok {
		if p, ok := narrowParse(entry.Payload); ok {
			c.log.Info("cache.hit", "op", entity.OpParseText, "provider", provider, "key", key)
			return p, entry.Usage, true, nil
		}
		c.log.Warn("cache.entry_shape_mismatch", "op", entity.OpParseText, "key", key)
	}

	p, usage, err := produce(ctx)
	if err != nil {
		return entity.ParsePayload{}, entity.UsageStats{}, false, err
	}
	c.put(key, entity.OpParseText, provider, p, usage)
	return p, usage, false, nil
}

// lookup reads an entry and verifies its operation tag. Store errors and
// kind mismatches are both treated as misses.
func (c *ResultCache) lookup(ctx context.Context, op entity.OperationKind, key string) (*entity.CacheEntry, bool) {
	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache.read_failed", "op", op, "key", key, "err", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	if entry.Operation != op {
		c.log.Warn("cache.operation_mismatch", "want", op, "got", entry.Operation, "key", key)
		return nil, false
	}
	return entry, true
}

func (c *ResultCache) put(key string, op entity.OperationKind, provider string, payload any, usage entity.UsageStats) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.log.Warn("cache.encode_failed", "op", op, "key", key, "err", err)
		return
	}
	entry := entity.CacheEntry{
		Key:       key,
		Operation: op,
		Provider:  provider,
		Payload:   raw,
		Usage:     usage,
		CreatedAt: time.Now().UTC(),
	}
	select {
	case c.writes <- entry:
	default:
		c.log.Warn("cache.write_queue_full", "op", op, "key", key)
	}
}

func (c *ResultCache) drain() {
	defer close(c.done)
	for entry := range c.writes {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := c.store.Put(ctx, entry); err != nil {
			c.log.Warn("cache.write_failed", "op", entry.Operation, "key", entry.Key, "err", err)
		}
		cancel()
	}
}

// narrowExtract verifies an extract_text row actually carries extraction
// fields before trusting it. Legacy or malformed rows become misses.
func narrowExtract(raw json.RawMessage) (entity.ExtractPayload, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return entity.ExtractPayload{}, false
	}
	if _, ok := probe["extractedText"]; !ok {
		return entity.ExtractPayload{}, false
	}
	var p entity.ExtractPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ExtractedText == "" {
		return entity.ExtractPayload{}, false
	}
	return p, true
}

// narrowParse verifies a parse_text row has a response and is not an
// extraction row that leaked in under the wrong key.
func narrowParse(raw json.RawMessage) (entity.ParsePayload, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return entity.ParsePayload{}, false
	}
	_, hasResponse := probe["response"]
	_, hasExtracted := probe["extractedText"]
	if !hasResponse || hasExtracted {
		return entity.ParsePayload{}, false
	}
	var p entity.ParsePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return entity.ParsePayload{}, false
	}
	return p, true
}
