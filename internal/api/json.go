package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/indexservice"
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

// statusFor maps domain errors to HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrReplicationDecode):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrPathNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrDuplicateNode):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrKindMismatch),
		errors.Is(err, apperr.ErrInvalidMove),
		errors.Is(err, apperr.ErrInvalidName):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrRecordLocked):
		return http.StatusLocked
	case errors.Is(err, indexservice.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError writes err with its mapped status. Client errors echo the
// error text; server errors are logged and hidden.
func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}
