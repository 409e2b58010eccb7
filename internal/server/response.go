package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/paperhold/docvault/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg, code string) {
	s.respondJSON(w, status, errorBody{Error: msg, Code: code})
}

// respondAppError maps the error taxonomy onto HTTP statuses: invalid input
// and provider configuration to 400, missing rows to 404, unreachable
// collaborators to 503, provider API failures to the provider's own status,
// everything else to 500.
func (s *Server) respondAppError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	code := ""
	msg := err.Error()
	if errors.As(err, &appErr) {
		code = appErr.Code
		msg = appErr.Message
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrProviderConfig):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, common.ErrProviderAPI):
		if ps := common.ProviderStatus(err); ps > 0 {
			status = ps
		} else {
			status = http.StatusBadGateway
		}
	case errors.Is(err, common.ErrBadResponse):
		status = http.StatusBadGateway
	}

	if status >= 500 {
		s.logger.Error("request failed", "status", status, "code", code, "error", err)
	} else {
		s.logger.Info("request rejected", "status", status, "code", code, "error", err)
	}
	s.respondError(w, status, msg, code)
}
