package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperhold/docvault/internal/cache"
	"github.com/paperhold/docvault/internal/common"
	"github.com/paperhold/docvault/internal/docproc"
	"github.com/paperhold/docvault/internal/entity"
	"github.com/paperhold/docvault/internal/llm"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]entity.CacheEntry
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]entity.CacheEntry)}
}

func (m *memStore) Get(_ context.Context, key string) (*entity.CacheEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (m *memStore) Put(_ context.Context, e entity.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.Key]; !ok {
		m.entries[e.Key] = e
	}
	return nil
}

type fakeProvider struct {
	name         string
	extractText  string
	extractErr   error
	extractCalls int
	parseDoc     *entity.ParsedDocument
	parseResp    string
	parseErr     error
	parseCalls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ExtractText(context.Context, string) (llm.ExtractResult, error) {
	f.extractCalls++
	if f.extractErr != nil {
		return llm.ExtractResult{}, f.extractErr
	}
	return llm.ExtractResult{Text: f.extractText, Usage: entity.UsageStats{TotalTokens: 11}}, nil
}

func (f *fakeProvider) ParseText(context.Context, string, string) (llm.ParseResult, error) {
	f.parseCalls++
	if f.parseErr != nil {
		return llm.ParseResult{}, f.parseErr
	}
	return llm.ParseResult{Document: f.parseDoc, Response: f.parseResp, Usage: entity.UsageStats{TotalTokens: 3}}, nil
}

// docprocServer fakes the collaborator's /process/base64 endpoint.
func docprocServer(t *testing.T, text, method string, confidence *float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/process/base64", r.URL.Path)
		data := map[string]any{"text": text, "page_count": 1, "method": method}
		if confidence != nil {
			data["confidence"] = *confidence
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "data": data})
	}))
}

func newTestRouter(t *testing.T, baseURL string, twoStep bool) (*Router, *cache.ResultCache) {
	t.Helper()
	c := cache.New(newMemStore(), nil)
	t.Cleanup(c.Close)
	dp := docproc.NewClient(docproc.Config{BaseURL: baseURL}, nil)
	return NewRouter(dp, c, twoStep, nil), c
}

func f64(v float64) *float64 { return &v }

func TestExtractPDFNativeSkipsReextraction(t *testing.T) {
	srv := docprocServer(t, "native text", "native", nil)
	defer srv.Close()
	r, _ := newTestRouter(t, srv.URL, false)

	trace := NewTrace()
	out, err := r.Extract(context.Background(), ExtractInput{
		Data: []byte("%PDF-"), Filename: "doc.pdf", Provider: &fakeProvider{name: "openai"},
	}, trace)
	require.NoError(t, err)

	assert.Equal(t, "native text", out.Result.Text)
	assert.Equal(t, entity.MethodNative, out.Result.Method)
	assert.False(t, out.Reextracted)
	assert.Equal(t, OutcomeComplete, trace.Status(StageExtract))
	assert.Equal(t, OutcomeSkipped, trace.Status(StageReextract))
}

func TestExtractImageSingleStepGoesToVision(t *testing.T) {
	r, _ := newTestRouter(t, "http://127.0.0.1:1", false)
	p := &fakeProvider{name: "openai", extractText: "vision text"}

	trace := NewTrace()
	out, err := r.Extract(context.Background(), ExtractInput{
		Data: []byte("img"), Filename: "scan.jpg", Provider: p,
	}, trace)
	require.NoError(t, err)

	assert.Equal(t, "vision text", out.Result.Text)
	assert.Equal(t, entity.MethodLLM, out.Result.Method)
	assert.Equal(t, 1, p.extractCalls)
	assert.False(t, out.Reextracted)
	assert.Equal(t, OutcomeSkipped, trace.Status(StageReextract))
}

func TestExtractTwoStepHighConfidenceKeepsOCR(t *testing.T) {
	srv := docprocServer(t, "ocr text", "ocr", f64(0.95))
	defer srv.Close()
	r, _ := newTestRouter(t, srv.URL, true)
	p := &fakeProvider{name: "openai", extractText: "vision text"}

	trace := NewTrace()
	out, err := r.Extract(context.Background(), ExtractInput{
		Data: []byte("img"), Filename: "scan.png", Provider: p,
	}, trace)
	require.NoError(t, err)

	assert.Equal(t, "ocr text", out.Result.Text)
	assert.False(t, out.Reextracted)
	assert.Zero(t, p.extractCalls, "confident OCR must not escalate to vision")
	assert.Equal(t, OutcomeSkipped, trace.Status(StageReextract))
}

func TestExtractTwoStepExactThresholdDoesNotEscalate(t *testing.T) {
	srv := docprocServer(t, "ocr text", "ocr", f64(0.8))
	defer srv.Close()
	r, _ := newTestRouter(t, srv.URL, true)
	p := &fakeProvider{name: "openai", extractText: "vision text"}

	out, err := r.Extract(context.Background(), ExtractInput{
		Data: []byte("img"), Filename: "scan.png", Provider: p,
	}, NewTrace())
	require.NoError(t, err)

	assert.Equal(t, "ocr text", out.Result.Text)
	assert.False(t, out.Reextracted)
	assert.Zero(t, p.extractCalls)
}

func TestExtractTwoStepLowConfidenceEscalates(t *testing.T) {
	srv := docprocServer(t, "garbled", "ocr", f64(0.79999))
	defer srv.Close()
	r, _ := newTestRouter(t, srv.URL, true)
	p := &fakeProvider{name: "openai", extractText: "clean vision text"}

	trace := NewTrace()
	out, err := r.Extract(context.Background(), ExtractInput{
		Data: []byte("img"), Filename: "scan.png", Provider: p,
	}, trace)
	require.NoError(t, err)

	assert.Equal(t, "clean vision text", out.Result.Text, "vision text supersedes the OCR text")
	assert.True(t, out.Reextracted)
	assert.Equal(t, 1, p.extractCalls)
	require.NotNil(t, out.Result.Confidence)
	assert.InDelta(t, 0.79999, *out.Result.Confidence, 1e-9, "the low OCR confidence stays on the record")
	assert.Equal(t, OutcomeComplete, trace.Status(StageExtract))
	assert.Equal(t, OutcomeComplete, trace.Status(StageReextract))
}

func TestExtractTwoStepMissingConfidenceKeepsOCR(t *testing.T) {
	srv := docprocServer(t, "ocr text", "ocr", nil)
	defer srv.Close()
	r, _ := newTestRouter(t, srv.URL, true)
	p := &fakeProvider{name: "openai"}

	out, err := r.Extract(context.Background(), ExtractInput{
		Data: []byte("img"), Filename: "scan.png", Provider: p,
	}, NewTrace())
	require.NoError(t, err)
	assert.False(t, out.Reextracted)
	assert.Zero(t, p.extractCalls)
}

func TestExtractUnsupportedType(t *testing.T) {
	r, _ := newTestRouter(t, "http://127.0.0.1:1", false)

	trace := NewTrace()
	_, err := r.Extract(context.Background(), ExtractInput{
		Data: []byte("x"), Filename: "notes.txt", Provider: &fakeProvider{name: "openai"},
	}, trace)
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, OutcomeError, trace.Status(StageExtract))
}

func TestExtractDocprocUnreachableFailsStage(t *testing.T) {
	r, _ := newTestRouter(t, "http://127.0.0.1:1", false)

	trace := NewTrace()
	_, err := r.Extract(context.Background(), ExtractInput{
		Data: []byte("%PDF-"), Filename: "doc.pdf", Provider: &fakeProvider{name: "openai"},
	}, trace)
	require.ErrorIs(t, err, common.ErrUnavailable)
	assert.Equal(t, OutcomeError, trace.Status(StageExtract))
}

func TestExtractVisionIsCachedAcrossCalls(t *testing.T) {
	r, c := newTestRouter(t, "http://127.0.0.1:1", false)
	p := &fakeProvider{name: "openai", extractText: "vision text"}

	in := ExtractInput{Data: []byte("img"), Filename: "scan.jpg", Provider: p}
	out, err := r.Extract(context.Background(), in, NewTrace())
	require.NoError(t, err)
	assert.False(t, out.Cached)

	c.Close() // flush the background write before the second call

	out, err = r.Extract(context.Background(), in, NewTrace())
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, "vision text", out.Result.Text)
	assert.Equal(t, 1, p.extractCalls, "second identical call must be served from cache")
}
