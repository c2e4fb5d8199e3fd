package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/starford/outliner/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors onto status codes. Anything unrecognized is
// logged and reported as an internal error.
func writeError(w http.ResponseWriter, op string, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, apperr.ErrInvalidCommand), errors.Is(err, apperr.ErrParse):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, apperr.ErrPermissionDenied):
		status, msg = http.StatusForbidden, "permission denied"
	case errors.Is(err, apperr.ErrDiscardCancelled):
		status, msg = http.StatusConflict, "unsaved changes; retry with force=true"
	case errors.Is(err, apperr.ErrLoadInProgress):
		status, msg = http.StatusConflict, "load in progress"
	case errors.Is(err, apperr.ErrConflict):
		status, msg = http.StatusConflict, "conflict"
	case errors.Is(err, apperr.ErrEmptyDocument):
		status, msg = http.StatusUnprocessableEntity, "document is empty"
	case errors.Is(err, apperr.ErrQuotaExceeded):
		status, msg = http.StatusInsufficientStorage, "storage quota exceeded"
	case errors.Is(err, apperr.ErrChannelTimeout):
		status, msg = http.StatusGatewayTimeout, "save timed out"
	case errors.Is(err, apperr.ErrChannelClosed):
		status, msg = http.StatusServiceUnavailable, "write channel closed"
	}
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(msg))
}
