// Package docproc is the HTTP client for the OCR/PDF document processor
// collaborator. The service is a black box: bytes in, text + method +
// confidence out.
package docproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/paperhold/docvault/internal/common"
	"github.com/paperhold/docvault/internal/entity"
)

// Config for the document processor client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// ProcessData is the extraction outcome the service reports.
type ProcessData struct {
	Text       string   `json:"text"`
	PageCount  int      `json:"page_count"`
	Method     string   `json:"method"` // "native" or "ocr"
	Confidence *float64 `json:"confidence,omitempty"`
}

// ThumbnailData is a rendered first-page preview.
type ThumbnailData struct {
	Image  string `json:"image"` // base64 PNG
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Process extracts text from a base64-encoded document. fileData must already
// be base64; filename drives the service's type detection.
func (c *Client) Process(ctx context.Context, fileData, filename string) (ProcessData, error) {
	body := map[string]string{"file_data": fileData, "filename": filename}
	raw, err := c.post(ctx, "/process/base64", body)
	if err != nil {
		return ProcessData{}, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ProcessData{}, common.NewAppError("DOCPROC_BAD_RESPONSE", "decode process response", fmt.Errorf("%w: %w", common.ErrBadResponse, err))
	}
	if !env.OK {
		return ProcessData{}, common.NewAppError("DOCPROC_REJECTED", env.Error, common.ErrBadResponse)
	}
	var data ProcessData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ProcessData{}, common.NewAppError("DOCPROC_BAD_RESPONSE", "decode process data", fmt.Errorf("%w: %w", common.ErrBadResponse, err))
	}
	if data.Text == "" && data.Method == "" {
		return ProcessData{}, common.NewAppError("DOCPROC_BAD_RESPONSE", "empty process data", common.ErrBadResponse)
	}
	return data, nil
}

// Thumbnail renders a first-page PNG preview for a base64-encoded PDF.
func (c *Client) Thumbnail(ctx context.Context, fileData string, size int) (ThumbnailData, error) {
	body := map[string]any{"file_data": fileData, "size": size}
	raw, err := c.post(ctx, "/thumbnail/base64", body)
	if err != nil {
		return ThumbnailData{}, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ThumbnailData{}, common.NewAppError("DOCPROC_BAD_RESPONSE", "decode thumbnail response", fmt.Errorf("%w: %w", common.ErrBadResponse, err))
	}
	if !env.OK {
		return ThumbnailData{}, common.NewAppError("DOCPROC_REJECTED", env.Error, common.ErrBadResponse)
	}
	var data ThumbnailData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ThumbnailData{}, common.NewAppError("DOCPROC_BAD_RESPONSE", "decode thumbnail data", fmt.Errorf("%w: %w", common.ErrBadResponse, err))
	}
	return data, nil
}

// Health probes the service. A nil error means it answered 200.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/health"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return common.NewAppError("DOCPROC_UNREACHABLE", "health check failed", fmt.Errorf("%w: %w", common.ErrUnavailable, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return common.NewAppError("DOCPROC_UNHEALTHY", fmt.Sprintf("health status %d", resp.StatusCode), common.ErrUnavailable)
	}
	return nil
}

// MethodOf maps the service's method string onto the extraction method enum.
func MethodOf(method string) entity.ExtractionMethod {
	if method == "native" {
		return entity.MethodNative
	}
	return entity.MethodOCR
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("docproc.send_error", "path", path, "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewAppError("DOCPROC_UNREACHABLE", "document processor unreachable", fmt.Errorf("%w: %w", common.ErrUnavailable, err))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("docproc.body_close_error", "err", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	c.log.Debug("docproc.response", "path", path, "status", resp.StatusCode, "bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return nil, common.NewAppError("DOCPROC_STATUS", fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(raw), 512)), common.ErrBadResponse)
	}
	return raw, nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
