package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fluxd/internal/gallery"
	"fluxd/internal/manager"
	"fluxd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

type badRequestError struct{ msg string }

func (e badRequestError) Error() string   { return e.msg }
func (e badRequestError) StatusCode() int { return http.StatusBadRequest }

type unknownToolError struct{ name string }

func (e unknownToolError) Error() string   { return "unknown tool '" + e.name + "'" }
func (e unknownToolError) StatusCode() int { return http.StatusNotFound }

// statusFor maps an error to the HTTP status reported for it.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case manager.IsInvalidParameter(err), manager.IsInvalidConfiguration(err):
		return http.StatusBadRequest
	case manager.IsResourceExhausted(err):
		return http.StatusInsufficientStorage
	case manager.IsEngineFailure(err):
		return http.StatusBadGateway
	case errors.Is(err, gallery.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gallery.ErrHistoryDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
