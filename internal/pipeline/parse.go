package pipeline

import (
	"context"
	"log/slog"

	"github.com/paperhold/docvault/internal/cache"
	"github.com/paperhold/docvault/internal/entity"
	"github.com/paperhold/docvault/internal/llm"
)

// Parser is the parse stage: extracted text goes to a language model and
// comes back as structured document metadata, cache-wrapped on
// (provider, text, prompt).
type Parser struct {
	Cache *cache.ResultCache
	Log   *slog.Logger
}

func NewParser(c *cache.ResultCache, log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{Cache: c, Log: log}
}

// ParseOutcome is the parse stage's result. Document is nil when the model's
// output failed validation; Response and Usage are still populated.
type ParseOutcome struct {
	Document *entity.ParsedDocument
	Response string
	Usage    entity.UsageStats
	Cached   bool
}

// Parse runs the cache-wrapped parse call. The cache key covers the effective
// system prompt, so a custom instruction never reuses a default-prompt entry.
func (p *Parser) Parse(ctx context.Context, provider llm.Provider, text, promptOverride string) (ParseOutcome, error) {
	prompt := llm.BuildParseSystemPrompt(promptOverride)

	payload, usage, hit, err := p.Cache.ParseText(ctx, provider.Name(), text, prompt,
		func(ctx context.Context) (entity.ParsePayload, entity.UsageStats, error) {
			res, err := provider.ParseText(ctx, text, promptOverride)
			if err != nil {
				return entity.ParsePayload{}, entity.UsageStats{}, err
			}
			return entity.ParsePayload{Document: res.Document, Response: res.Response}, res.Usage, nil
		})
	if err != nil {
		return ParseOutcome{}, err
	}

	return ParseOutcome{
		Document: payload.Document,
		Response: payload.Response,
		Usage:    usage,
		Cached:   hit,
	}, nil
}
