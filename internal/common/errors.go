package common

import (
	"errors"
	"fmt"
)

// AppError carries a stable code, a human message, and the underlying cause.
type AppError struct {
	Code    string
	Message string
	// StatusCode holds the upstream provider's HTTP status when the provider
	// itself rejected the call, so it can be forwarded to the client.
	StatusCode int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Failure classes of the pipeline. The orchestrator is the only layer that
// translates these into user-facing responses.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("resource not found")
	ErrProviderConfig = errors.New("provider not configured")
	ErrUnavailable    = errors.New("collaborator unavailable")
	ErrProviderAPI    = errors.New("provider api error")
	ErrBadResponse    = errors.New("malformed collaborator response")
	ErrInternal       = errors.New("internal error")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// NewProviderAPIError wraps a provider-side rejection, keeping the provider's
// HTTP status so the server layer can forward it.
func NewProviderAPIError(status int, message string, cause error) *AppError {
	if cause == nil {
		cause = ErrProviderAPI
	} else {
		cause = fmt.Errorf("%w: %w", ErrProviderAPI, cause)
	}
	return &AppError{Code: "PROVIDER_API_ERROR", Message: message, StatusCode: status, Cause: cause}
}

// ProviderStatus extracts the forwarded provider status from an error chain,
// or 0 when none is attached.
func ProviderStatus(err error) int {
	var ae *AppError
	for errors.As(err, &ae) {
		if ae.StatusCode != 0 {
			return ae.StatusCode
		}
		err = ae.Cause
	}
	return 0
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
