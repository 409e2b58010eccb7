package llm

import (
	"context"

	"github.com/paperhold/docvault/internal/entity"
)

// ExtractResult is what a vision-capable provider returns for an image.
type ExtractResult struct {
	Text  string
	Usage entity.UsageStats
}

// ParseResult is the provider's structured parse of extracted text. Response
// is the raw model output; Document is nil when the output failed schema
// validation (the caller still persists the response).
type ParseResult struct {
	Document *entity.ParsedDocument
	Response string
	Usage    entity.UsageStats
}

// Provider is the narrow contract every language-model backend implements.
type Provider interface {
	Name() string
	// ExtractText reads all text visible in an image, given as a data URL.
	ExtractText(ctx context.Context, imageDataURL string) (ExtractResult, error)
	// ParseText converts extracted text into structured document metadata.
	// promptOverride, when non-empty, replaces the default instruction.
	ParseText(ctx context.Context, text, promptOverride string) (ParseResult, error)
}
