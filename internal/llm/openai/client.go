// Package openai implements the llm.Provider contract on the OpenAI API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/paperhold/docvault/internal/common"
	"github.com/paperhold/docvault/internal/entity"
	"github.com/paperhold/docvault/internal/llm"
)

// Config for the OpenAI provider.
type Config struct {
	APIKey      string
	BaseURL     string // optional, for compatible gateways
	Model       string
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	client *openai.Client
	log    *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{cfg: cfg, client: openai.NewClientWithConfig(cc), log: log}
}

func (c *Client) Name() string { return "openai" }

// ExtractText transcribes a document image via the vision path.
func (c *Client) ExtractText(ctx context.Context, imageDataURL string) (llm.ExtractResult, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: llm.ExtractionPrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageDataURL}},
				},
			},
		},
	})
	if err != nil {
		return llm.ExtractResult{}, c.classify("extract", err)
	}
	if len(resp.Choices) == 0 {
		return llm.ExtractResult{}, common.NewAppError("OPENAI_EMPTY", "no choices in response", common.ErrBadResponse)
	}

	out := llm.ExtractResult{
		Text:  resp.Choices[0].Message.Content,
		Usage: usageOf(resp.Usage),
	}
	c.log.Info("llm.extract.ok", "provider", "openai", "model", c.cfg.Model,
		"text_len", len(out.Text), "total_tokens", out.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// ParseText converts extracted text into structured document metadata.
func (c *Client) ParseText(ctx context.Context, text, promptOverride string) (llm.ParseResult, error) {
	start := time.Now()

	schema := llm.BuildDocumentJSONSchema()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llm.BuildParseSystemPrompt(promptOverride)},
			{Role: openai.ChatMessageRoleSystem, Content: "JSON Schema:\n" + mustJSON(schema)},
			{Role: openai.ChatMessageRoleUser, Content: llm.BuildParseUserPrompt(text)},
		},
	})
	if err != nil {
		return llm.ParseResult{}, c.classify("parse", err)
	}
	if len(resp.Choices) == 0 {
		return llm.ParseResult{}, common.NewAppError("OPENAI_EMPTY", "no choices in response", common.ErrBadResponse)
	}

	content := resp.Choices[0].Message.Content
	result := llm.ParseResult{
		Document: llm.DecodeDocument(content, c.log),
		Response: content,
		Usage:    usageOf(resp.Usage),
	}
	c.log.Info("llm.parse.ok", "provider", "openai", "model", c.cfg.Model,
		"validated", result.Document != nil, "total_tokens", result.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds())
	return result, nil
}

// classify separates provider-side rejections (status forwarded) from
// connectivity failures (the provider is probably down).
func (c *Client) classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		c.log.Error("llm.api_error", "provider", "openai", "op", op,
			"status", apiErr.HTTPStatusCode, "message", apiErr.Message)
		return common.NewProviderAPIError(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	c.log.Error("llm.send_error", "provider", "openai", "op", op, "err", err)
	return common.NewAppError("OPENAI_UNREACHABLE", "openai unreachable",
		fmt.Errorf("%w: %w", common.ErrUnavailable, err))
}

func usageOf(u openai.Usage) entity.UsageStats {
	return entity.UsageStats{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
