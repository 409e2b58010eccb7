package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperhold/docvault/internal/cache"
	"github.com/paperhold/docvault/internal/common"
	"github.com/paperhold/docvault/internal/docproc"
	"github.com/paperhold/docvault/internal/entity"
	"github.com/paperhold/docvault/internal/export"
	"github.com/paperhold/docvault/internal/llm"
	"github.com/paperhold/docvault/internal/pipeline"
	"github.com/paperhold/docvault/internal/repository"
	"github.com/paperhold/docvault/internal/storage"
)

type memCacheStore struct {
	entries map[string]entity.CacheEntry
}

func (m *memCacheStore) Get(_ context.Context, key string) (*entity.CacheEntry, bool, error) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (m *memCacheStore) Put(_ context.Context, e entity.CacheEntry) error {
	if _, ok := m.entries[e.Key]; !ok {
		m.entries[e.Key] = e
	}
	return nil
}

type fakeDocuments struct {
	repository.DocumentRepository
	byID    map[uuid.UUID]*entity.DocumentRecord
	created []*entity.DocumentRecord
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{byID: make(map[uuid.UUID]*entity.DocumentRecord)}
}

func (f *fakeDocuments) Create(_ context.Context, rec *entity.DocumentRecord) error {
	f.created = append(f.created, rec)
	f.byID[rec.ID] = rec
	return nil
}

func (f *fakeDocuments) GetByID(_ context.Context, id uuid.UUID) (*entity.DocumentRecord, error) {
	rec, ok := f.byID[id]
	if !ok {
		return nil, common.NewAppError("DOCUMENT_NOT_FOUND", "document not found", common.ErrNotFound)
	}
	return rec, nil
}

func (f *fakeDocuments) UpdateMetadata(context.Context, uuid.UUID, entity.DocumentMetadata) error {
	return nil
}

func (f *fakeDocuments) SetThumbnail(context.Context, uuid.UUID, []byte) error { return nil }

func (f *fakeDocuments) GetThumbnail(_ context.Context, id uuid.UUID) ([]byte, error) {
	rec, ok := f.byID[id]
	if !ok || len(rec.Thumbnail) == 0 {
		return nil, common.NewAppError("THUMBNAIL_NOT_FOUND", "thumbnail not available", common.ErrNotFound)
	}
	return rec.Thumbnail, nil
}

func (f *fakeDocuments) Delete(_ context.Context, id uuid.UUID) (*entity.DocumentRecord, error) {
	rec, ok := f.byID[id]
	if !ok {
		return nil, common.NewAppError("DOCUMENT_NOT_FOUND", "document not found", common.ErrNotFound)
	}
	delete(f.byID, id)
	return rec, nil
}

func (f *fakeDocuments) ListBetween(context.Context, *time.Time, *time.Time) ([]*entity.DocumentRecord, error) {
	out := make([]*entity.DocumentRecord, 0, len(f.byID))
	for _, rec := range f.byID {
		out = append(out, rec)
	}
	return out, nil
}

type visionProvider struct{}

func (visionProvider) Name() string { return "openai" }
func (visionProvider) ExtractText(context.Context, string) (llm.ExtractResult, error) {
	return llm.ExtractResult{Text: "INVOICE 42", Usage: entity.UsageStats{TotalTokens: 9}}, nil
}
func (visionProvider) ParseText(context.Context, string, string) (llm.ParseResult, error) {
	return llm.ParseResult{
		Document: &entity.ParsedDocument{DocumentType: "invoice"},
		Response: `{"documentType":"invoice"}`,
		Usage:    entity.UsageStats{TotalTokens: 4},
	}, nil
}

type testServerOptions struct {
	docprocURL     string
	provider       llm.Provider
	requestTimeout time.Duration
	healthCheck    bool
}

func newTestServerWith(t *testing.T, opts testServerOptions) (*Server, *fakeDocuments) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c := cache.New(&memCacheStore{entries: make(map[string]entity.CacheEntry)}, logger)
	t.Cleanup(c.Close)

	if opts.provider == nil {
		opts.provider = visionProvider{}
	}
	reg := llm.NewRegistry(opts.provider.Name(), logger)
	reg.Register(opts.provider)

	docs := newFakeDocuments()
	files, err := storage.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)
	if opts.docprocURL == "" {
		opts.docprocURL = "http://127.0.0.1:1"
	}
	dp := docproc.NewClient(docproc.Config{BaseURL: opts.docprocURL}, logger)

	proc := &pipeline.Processor{
		Router:    pipeline.NewRouter(dp, c, false, logger),
		Parser:    pipeline.NewParser(c, logger),
		Providers: reg,
		Documents: docs,
		Files:     files,
		Log:       logger,
	}
	var healthDP *docproc.Client
	if opts.healthCheck {
		healthDP = dp
	}
	srv := NewServer(proc, docs, files, export.NewService(docs, logger),
		healthDP, nil, opts.requestTimeout, logger)
	return srv, docs
}

func newTestServer(t *testing.T) (*Server, *fakeDocuments) {
	t.Helper()
	return newTestServerWith(t, testServerOptions{})
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	bs, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(bs))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestUploadHappyPath(t *testing.T) {
	srv, docs := newTestServer(t)
	h := srv.Router()

	rr := postJSON(t, h, "/documents/upload", uploadRequest{
		File:     base64.StdEncoding.EncodeToString([]byte("fake image bytes")),
		Filename: "invoice.jpg",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "INVOICE 42", resp.ExtractedText)
	assert.Equal(t, entity.MethodLLM, resp.ExtractionMethod)
	require.NotNil(t, resp.Document)
	assert.Equal(t, "invoice", resp.Document.DocumentType)
	assert.False(t, resp.Cached)
	assert.Equal(t, 13, resp.Usage.TotalTokens)
	assert.Equal(t, pipeline.OutcomeComplete, resp.Stages[pipeline.StageParse])

	require.Len(t, docs.created, 1)
	assert.Equal(t, resp.DocumentID, docs.created[0].ID)
}

func TestUploadAcceptsDataURL(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rr := postJSON(t, h, "/documents/upload", uploadRequest{
		File:     "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("img")),
		Filename: "scan.jpg",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestUploadRejectsBadBase64(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rr := postJSON(t, h, "/documents/upload", uploadRequest{File: "%%%not-base64%%%", Filename: "a.jpg"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadRejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/documents/upload", bytes.NewReader([]byte("{")))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadUnknownProviderIs400(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rr := postJSON(t, h, "/documents/upload", uploadRequest{
		File:     base64.StdEncoding.EncodeToString([]byte("img")),
		Filename: "a.jpg",
		Provider: "gemini",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "PROVIDER_NOT_CONFIGURED", body.Code)
}

func TestUploadDocprocDownIs503(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	// PDFs go to the document processor, which is unreachable in this setup.
	rr := postJSON(t, h, "/documents/upload", uploadRequest{
		File:     base64.StdEncoding.EncodeToString([]byte("%PDF-")),
		Filename: "doc.pdf",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// stalledProvider holds every call until the request context expires, so the
// configured request timeout is what unblocks it.
type stalledProvider struct{}

func (stalledProvider) Name() string { return "openai" }
func (stalledProvider) ExtractText(ctx context.Context, _ string) (llm.ExtractResult, error) {
	<-ctx.Done()
	return llm.ExtractResult{}, common.NewAppError("LLM_TIMEOUT", "extraction timed out", common.ErrUnavailable)
}
func (stalledProvider) ParseText(ctx context.Context, _, _ string) (llm.ParseResult, error) {
	<-ctx.Done()
	return llm.ParseResult{}, common.NewAppError("LLM_TIMEOUT", "parse timed out", common.ErrUnavailable)
}

func TestUploadHonorsRequestTimeout(t *testing.T) {
	srv, _ := newTestServerWith(t, testServerOptions{
		provider:       stalledProvider{},
		requestTimeout: 50 * time.Millisecond,
	})
	h := srv.Router()

	start := time.Now()
	rr := postJSON(t, h, "/documents/upload", uploadRequest{
		File:     base64.StdEncoding.EncodeToString([]byte("fake image bytes")),
		Filename: "invoice.jpg",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, rr.Body.String())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewServerRequestTimeoutDefault(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(nil, nil, nil, nil, nil, nil, 0, logger)
	assert.Equal(t, 2*time.Minute, srv.requestTimeout)

	srv = NewServer(nil, nil, nil, nil, nil, nil, 30*time.Second, logger)
	assert.Equal(t, 30*time.Second, srv.requestTimeout)
}

func TestGetDocument(t *testing.T) {
	srv, docs := newTestServer(t)
	h := srv.Router()

	id := uuid.New()
	docs.byID[id] = &entity.DocumentRecord{ID: id, Filename: "doc.pdf"}

	req := httptest.NewRequest(http.MethodGet, "/documents/"+id.String(), http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var rec entity.DocumentRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, id, rec.ID)
}

func TestGetDocumentNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString(), http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetDocumentBadID(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteDocument(t *testing.T) {
	srv, docs := newTestServer(t)
	h := srv.Router()

	id := uuid.New()
	docs.byID[id] = &entity.DocumentRecord{ID: id, Filename: "doc.pdf"}

	req := httptest.NewRequest(http.MethodDelete, "/documents/"+id.String(), http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, docs.byID, id)
}

func TestThumbnailNotFound(t *testing.T) {
	srv, docs := newTestServer(t)
	id := uuid.New()
	docs.byID[id] = &entity.DocumentRecord{ID: id}

	req := httptest.NewRequest(http.MethodGet, "/documents/"+id.String()+"/thumbnail", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestThumbnailServesPNG(t *testing.T) {
	srv, docs := newTestServer(t)
	id := uuid.New()
	docs.byID[id] = &entity.DocumentRecord{ID: id, Thumbnail: []byte("png-bytes")}

	req := httptest.NewRequest(http.MethodGet, "/documents/"+id.String()+"/thumbnail", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rr.Body.String())
}

func TestExportReturnsWorkbook(t *testing.T) {
	srv, docs := newTestServer(t)
	id := uuid.New()
	docs.byID[id] = &entity.DocumentRecord{ID: id, Filename: "doc.pdf", CreatedAt: time.Now()}

	req := httptest.NewRequest(http.MethodGet, "/documents/export", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotEmpty(t, rr.Body.Bytes())
}

func TestExportBadDateParam(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/documents/export?from=yesterday", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthzWithoutChecks(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthzHealthyDocProcessor(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	srv, _ := newTestServerWith(t, testServerOptions{docprocURL: upstream.URL, healthCheck: true})
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthzUnreachableDocProcessor(t *testing.T) {
	srv, _ := newTestServerWith(t, testServerOptions{healthCheck: true})
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.NotEmpty(t, body["docProcessor"])
}

func TestSplitDataURL(t *testing.T) {
	payload, mime, ok := splitDataURL("data:application/pdf;base64,QUJD")
	assert.True(t, ok)
	assert.Equal(t, "QUJD", payload)
	assert.Equal(t, "application/pdf", mime)

	payload, _, ok = splitDataURL("QUJD")
	assert.False(t, ok)
	assert.Equal(t, "QUJD", payload)
}
