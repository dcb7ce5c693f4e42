package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/area-fans/internal/aggregate"
	"github.com/nerrad567/area-fans/internal/configflow"
	"github.com/nerrad567/area-fans/internal/registry"
	"github.com/nerrad567/area-fans/internal/state"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeServiceError maps a package sentinel error to its HTTP response.
// Unknown errors are logged and reported as 500 without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrAreaNotFound),
		errors.Is(err, registry.ErrDeviceNotFound),
		errors.Is(err, registry.ErrEntityNotFound),
		errors.Is(err, aggregate.ErrNotFound),
		errors.Is(err, configflow.ErrEntryNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, registry.ErrInvalidArea),
		errors.Is(err, registry.ErrInvalidDevice),
		errors.Is(err, registry.ErrInvalidEntity),
		errors.Is(err, configflow.ErrInvalidSelection),
		errors.Is(err, state.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, aggregate.ErrNotSwitch):
		writeBadRequest(w, err.Error())
	case errors.Is(err, configflow.ErrEntryExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error", err,
		)
		writeInternalError(w, "internal server error")
	}
}
