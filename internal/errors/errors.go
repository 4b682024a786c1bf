// Package errors defines the JSON error envelope the HTTP API returns and
// the mapping from domain errors to status codes.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ebu/mcma-projects-sub000/internal/server/middleware"
	"github.com/ebu/mcma-projects-sub000/pkg/dispatch"
	"github.com/ebu/mcma-projects-sub000/pkg/lifecycle"
	"github.com/ebu/mcma-projects-sub000/pkg/mutex"
)

// Stable machine-readable error codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeValidation       = "VALIDATION_ERROR"
	CodeConflict         = "CONFLICT"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// HTTPErrorResponse is the envelope for every non-2xx API response.
type HTTPErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the error detail inside the envelope.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// WriteError writes the envelope with the given status and code.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: ErrorBody{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetRequestID(r.Context()),
			Details:   details,
		},
	})
}

// RespondWithError maps a domain error to its status and code and writes
// the envelope.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	WriteError(w, r, status, code, err.Error(), nil)
}

// Classify returns the HTTP status and error code for a domain error.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, dispatch.ErrFiltered):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, lifecycle.ErrConflict):
		return http.StatusConflict, CodeConflict
	case lifecycle.IsValidationError(err), errors.Is(err, dispatch.ErrUnknownOperation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, mutex.ErrLockTimeout),
		errors.Is(err, dispatch.ErrQueueFull),
		errors.Is(err, dispatch.ErrClosed):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// NotFoundHandler is the router fallback for unknown paths.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "resource not found", nil)
	}
}

// MethodNotAllowedHandler is the router fallback for known paths with an
// unsupported method.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil)
	}
}
