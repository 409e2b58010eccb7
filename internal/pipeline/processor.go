package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/paperhold/docvault/constants"
	"github.com/paperhold/docvault/internal/common"
	"github.com/paperhold/docvault/internal/entity"
	"github.com/paperhold/docvault/internal/llm"
)

// DocumentStore is the slice of the document repository the pipeline needs.
type DocumentStore interface {
	Create(ctx context.Context, rec *entity.DocumentRecord) error
	UpdateMetadata(ctx context.Context, id uuid.UUID, meta entity.DocumentMetadata) error
	SetThumbnail(ctx context.Context, id uuid.UUID, png []byte) error
}

// FileStore persists original (and resized) bytes on disk.
type FileStore interface {
	Save(id uuid.UUID, filename string, data []byte) (string, error)
	SaveResized(id uuid.UUID, data []byte) (string, error)
	Remove(paths ...string)
}

// Thumbnailer produces a small PNG preview of the uploaded document.
type Thumbnailer interface {
	Generate(ctx context.Context, data []byte, filename, contentType string) ([]byte, error)
}

// ResizeFunc downscales an image to fit within maxBytes.
type ResizeFunc func(data []byte, maxBytes int) ([]byte, error)

// Processor sequences extraction, parsing, persistence and metadata merge for
// one uploaded document. It is the single place that translates stage
// failures into user-facing errors.
type Processor struct {
	Router    *Router
	Parser    *Parser
	Providers *llm.Registry
	Documents DocumentStore
	Files     FileStore
	Thumbs    Thumbnailer
	Resize    ResizeFunc
	Log       *slog.Logger
}

// UploadInput is one decoded upload request.
type UploadInput struct {
	Data        []byte
	Filename    string
	ContentType string
	Provider    string
	Prompt      string
}

// UploadResult is the outcome reported to the client.
type UploadResult struct {
	DocumentID           uuid.UUID
	ExtractedText        string
	ExtractionMethod     entity.ExtractionMethod
	ExtractionConfidence *float64
	Reextracted          bool
	Document             *entity.ParsedDocument
	Response             string
	Usage                entity.UsageStats
	Cached               bool
	Stages               map[Stage]Outcome
}

// ProcessUpload runs the full pipeline: extract → (reextract) → parse →
// persist → merge. Stages are strictly sequential within one document;
// independent documents share nothing but the cache and document stores.
func (p *Processor) ProcessUpload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	start := time.Now()
	trace := NewTrace()

	if err := p.validate(in); err != nil {
		return nil, err
	}

	// Resolve the provider before any external call, so a missing API key is
	// reported as a configuration error rather than a mid-pipeline failure.
	provider, err := p.Providers.Get(in.Provider)
	if err != nil {
		return nil, err
	}

	visionData := in.Data
	if constants.IsImage(in.Filename, in.ContentType) &&
		len(in.Data) > constants.MaxVisionUploadBytes && p.Resize != nil {
		resized, rerr := p.Resize(in.Data, constants.MaxVisionUploadBytes)
		if rerr != nil {
			p.Log.Warn("pipeline.resize_failed", "filename", in.Filename, "err", rerr)
		} else {
			p.Log.Info("pipeline.resized_for_vision",
				"filename", in.Filename, "original_bytes", len(in.Data), "resized_bytes", len(resized))
			visionData = resized
		}
	}

	exOut, err := p.Router.Extract(ctx, ExtractInput{
		Data:        in.Data,
		VisionData:  visionData,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Provider:    provider,
	}, trace)
	if err != nil {
		p.Log.Error("pipeline.extract.failed", "filename", in.Filename, "err", err)
		return nil, err
	}
	p.Log.Info("pipeline.extract.ok",
		"filename", in.Filename, "method", exOut.Result.Method,
		"cached", exOut.Cached, "reextracted", exOut.Reextracted,
		"text_len", len(exOut.Result.Text))

	trace.Begin(StageParse)
	psOut, err := p.Parser.Parse(ctx, provider, exOut.Result.Text, in.Prompt)
	if err != nil {
		trace.Fail(StageParse)
		p.Log.Error("pipeline.parse.failed", "filename", in.Filename, "err", err)
		return nil, err
	}
	trace.Complete(StageParse)
	p.Log.Info("pipeline.parse.ok",
		"filename", in.Filename, "cached", psOut.Cached, "validated", psOut.Document != nil)

	trace.Begin(StagePersist)
	rec, err := p.persist(ctx, in, visionData, exOut, psOut)
	if err != nil {
		trace.Fail(StagePersist)
		return nil, err
	}
	trace.Complete(StagePersist)

	p.Log.Info("pipeline.complete",
		"document_id", rec.ID, "filename", in.Filename,
		"elapsed_ms", time.Since(start).Milliseconds())

	return &UploadResult{
		DocumentID:           rec.ID,
		ExtractedText:        exOut.Result.Text,
		ExtractionMethod:     exOut.Result.Method,
		ExtractionConfidence: exOut.Result.Confidence,
		Reextracted:          exOut.Reextracted,
		Document:             psOut.Document,
		Response:             psOut.Response,
		Usage:                exOut.Usage.Add(psOut.Usage),
		Cached:               exOut.Cached && psOut.Cached,
		Stages:               trace.Map(),
	}, nil
}

func (p *Processor) validate(in UploadInput) error {
	if len(in.Data) == 0 {
		return common.NewAppError("EMPTY_FILE", "file data is required", common.ErrInvalidInput)
	}
	if in.Filename == "" {
		return common.NewAppError("MISSING_FILENAME", "filename is required", common.ErrInvalidInput)
	}
	if len(in.Data) > constants.MaxFileSize {
		return common.NewAppError("FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds %d MB", constants.MaxFileSize/(1024*1024)), common.ErrInvalidInput)
	}
	ext := constants.NormalizeExt(filepath.Ext(in.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return common.NewAppError("UNSUPPORTED_TYPE",
			fmt.Sprintf("unsupported file extension: %q", ext), common.ErrInvalidInput)
	}
	return nil
}

// persist writes the file, creates the row, attaches a best-effort thumbnail
// and applies the merged metadata. The row is created only after file storage
// succeeds, so a document row without its bytes can never exist.
func (p *Processor) persist(ctx context.Context, in UploadInput, visionData []byte, exOut ExtractOutcome, psOut ParseOutcome) (*entity.DocumentRecord, error) {
	id := uuid.New()

	path, err := p.Files.Save(id, in.Filename, in.Data)
	if err != nil {
		return nil, common.NewAppError("STORAGE_FAILED", "store file", fmt.Errorf("%w: %w", common.ErrInternal, err))
	}

	var resizedPath string
	if len(visionData) > 0 && len(visionData) != len(in.Data) {
		// resized rendition shares the record's base identifier
		if rp, rerr := p.Files.SaveResized(id, visionData); rerr != nil {
			p.Log.Warn("pipeline.store_resized_failed", "document_id", id, "err", rerr)
		} else {
			resizedPath = rp
		}
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = constants.MimeTypeFor(in.Filename)
	}
	now := time.Now().UTC()
	rec := &entity.DocumentRecord{
		ID:                   id,
		Filename:             in.Filename,
		ContentType:          contentType,
		FileSize:             len(in.Data),
		StoragePath:          path,
		ResizedPath:          resizedPath,
		ExtractedText:        exOut.Result.Text,
		ExtractionMethod:     exOut.Result.Method,
		ExtractionConfidence: exOut.Result.Confidence,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := p.Documents.Create(ctx, rec); err != nil {
		p.Files.Remove(path, resizedPath)
		return nil, common.NewAppError("DB_INSERT_FAILED", "create document row", fmt.Errorf("%w: %w", common.ErrInternal, err))
	}

	// Thumbnail is best-effort: failure is logged and never fails the upload.
	if p.Thumbs != nil {
		if png, terr := p.Thumbs.Generate(ctx, in.Data, in.Filename, contentType); terr != nil {
			p.Log.Warn("pipeline.thumbnail_failed", "document_id", id, "err", terr)
		} else if terr := p.Documents.SetThumbnail(ctx, id, png); terr != nil {
			p.Log.Warn("pipeline.thumbnail_store_failed", "document_id", id, "err", terr)
		}
	}

	meta := Merge(psOut.Document)
	if err := p.Documents.UpdateMetadata(ctx, id, meta); err != nil {
		return nil, common.NewAppError("DB_UPDATE_FAILED", "attach document metadata", fmt.Errorf("%w: %w", common.ErrInternal, err))
	}
	return rec, nil
}
