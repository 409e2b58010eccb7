package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paperhold/docvault/internal/entity"
	"github.com/paperhold/docvault/internal/pipeline"
)

type uploadRequest struct {
	// File is the document as base64, with or without a data URL prefix.
	File        string `json:"file"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

type uploadResponse struct {
	DocumentID           uuid.UUID                           `json:"documentId"`
	ExtractedText        string                              `json:"extractedText"`
	ExtractionMethod     entity.ExtractionMethod             `json:"extractionMethod"`
	ExtractionConfidence *float64                            `json:"extractionConfidence,omitempty"`
	Reextracted          bool                                `json:"reextracted"`
	Document             *entity.ParsedDocument              `json:"document,omitempty"`
	Response             string                              `json:"response"`
	Usage                entity.UsageStats                   `json:"usage"`
	Cached               bool                                `json:"cached"`
	Stages               map[pipeline.Stage]pipeline.Outcome `json:"stages"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", "BAD_JSON")
		return
	}

	raw := req.File
	contentType := req.ContentType
	if rest, mime, ok := splitDataURL(raw); ok {
		raw = rest
		if contentType == "" {
			contentType = mime
		}
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is not valid base64", "BAD_BASE64")
		return
	}

	result, err := s.processor.ProcessUpload(r.Context(), pipeline.UploadInput{
		Data:        data,
		Filename:    req.Filename,
		ContentType: contentType,
		Provider:    req.Provider,
		Prompt:      req.Prompt,
	})
	if err != nil {
		s.respondAppError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, uploadResponse{
		DocumentID:           result.DocumentID,
		ExtractedText:        result.ExtractedText,
		ExtractionMethod:     result.ExtractionMethod,
		ExtractionConfidence: result.ExtractionConfidence,
		Reextracted:          result.Reextracted,
		Document:             result.Document,
		Response:             result.Response,
		Usage:                result.Usage,
		Cached:               result.Cached,
		Stages:               result.Stages,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id", "BAD_ID")
		return
	}
	doc, err := s.documents.GetByID(r.Context(), id)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id", "BAD_ID")
		return
	}
	doc, err := s.documents.Delete(r.Context(), id)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.files.Remove(doc.StoragePath, doc.ResizedPath)
	s.logger.Info("document deleted", "document_id", id)
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id", "BAD_ID")
		return
	}
	png, err := s.documents.GetThumbnail(r.Context(), id)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r.URL.Query().Get("from"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid from date, want YYYY-MM-DD", "BAD_DATE")
		return
	}
	to, err := parseDateParam(r.URL.Query().Get("to"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid to date, want YYYY-MM-DD", "BAD_DATE")
		return
	}

	xlsx, err := s.exporter.ExportDocumentsXLSX(r.Context(), from, to)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pool != nil {
		if err := s.pool.Ping(r.Context()); err != nil {
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
			return
		}
	}
	if s.docproc != nil {
		if err := s.docproc.Health(r.Context()); err != nil {
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "docProcessor": err.Error()})
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// splitDataURL strips a "data:<mime>;base64," prefix, returning the payload
// and the mime type.
func splitDataURL(s string) (payload, mime string, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return s, "", false
	}
	idx := strings.Index(s, ",")
	if idx < 0 {
		return s, "", false
	}
	meta := strings.TrimPrefix(s[:idx], "data:")
	mime = strings.TrimSuffix(meta, ";base64")
	return s[idx+1:], mime, true
}

func parseDateParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
