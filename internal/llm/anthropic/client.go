// Package anthropic implements the llm.Provider contract on Anthropic's
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/paperhold/docvault/internal/common"
	"github.com/paperhold/docvault/internal/entity"
	"github.com/paperhold/docvault/internal/llm"
)

// Config for the Anthropic provider.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

type Client struct {
	cfg    Config
	client anthropic.Client
	log    *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &Client{cfg: cfg, client: client, log: log}
}

func (c *Client) Name() string { return "anthropic" }

// ExtractText transcribes a document image given as a data URL.
func (c *Client) ExtractText(ctx context.Context, imageDataURL string) (llm.ExtractResult, error) {
	mediaType, data, err := splitDataURL(imageDataURL)
	if err != nil {
		return llm.ExtractResult{}, common.NewAppError("ANTHROPIC_BAD_IMAGE", "invalid image data url", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, data),
				anthropic.NewTextBlock(llm.ExtractionPrompt),
			),
		},
	})
	if err != nil {
		return llm.ExtractResult{}, c.classify("extract", err)
	}

	out := llm.ExtractResult{Text: textOf(msg), Usage: usageOf(msg)}
	c.log.Info("llm.extract.ok", "provider", "anthropic", "model", c.cfg.Model,
		"text_len", len(out.Text), "total_tokens", out.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// ParseText converts extracted text into structured document metadata.
func (c *Client) ParseText(ctx context.Context, text, promptOverride string) (llm.ParseResult, error) {
	start := time.Now()

	system := llm.BuildParseSystemPrompt(promptOverride) +
		"\n\nJSON Schema:\n" + llm.SchemaJSON()
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(llm.BuildParseUserPrompt(text))),
		},
	})
	if err != nil {
		return llm.ParseResult{}, c.classify("parse", err)
	}

	content := textOf(msg)
	result := llm.ParseResult{
		Document: llm.DecodeDocument(content, c.log),
		Response: content,
		Usage:    usageOf(msg),
	}
	c.log.Info("llm.parse.ok", "provider", "anthropic", "model", c.cfg.Model,
		"validated", result.Document != nil, "total_tokens", result.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (c *Client) classify(op string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		c.log.Error("llm.api_error", "provider", "anthropic", "op", op,
			"status", apiErr.StatusCode)
		return common.NewProviderAPIError(apiErr.StatusCode, apiErr.Error(), err)
	}
	c.log.Error("llm.send_error", "provider", "anthropic", "op", op, "err", err)
	return common.NewAppError("ANTHROPIC_UNREACHABLE", "anthropic unreachable",
		fmt.Errorf("%w: %w", common.ErrUnavailable, err))
}

func textOf(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func usageOf(msg *anthropic.Message) entity.UsageStats {
	in := int(msg.Usage.InputTokens)
	out := int(msg.Usage.OutputTokens)
	return entity.UsageStats{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}

// splitDataURL separates "data:<mediatype>;base64,<payload>" into its parts.
// A bare base64 string is accepted and assumed to be a JPEG.
func splitDataURL(u string) (mediaType, data string, err error) {
	if !strings.HasPrefix(u, "data:") {
		return "image/jpeg", u, nil
	}
	rest := strings.TrimPrefix(u, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || payload == "" {
		return "", "", fmt.Errorf("malformed data url")
	}
	mediaType = strings.TrimSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return mediaType, payload, nil
}
