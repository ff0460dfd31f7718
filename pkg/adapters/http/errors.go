package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/formbot/pkg/credentials"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/runner"
)

// errorResponse is the body of every non-2xx JSON reply.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// statusFor maps error kinds to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownForm),
		errors.Is(err, domain.ErrNoActiveSession),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionAlreadyActive),
		errors.Is(err, domain.ErrUserExists),
		errors.Is(err, domain.ErrFormExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRegistrationRequired):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrGenerationUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrFormsReadOnly):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrInvalidForm),
		errors.Is(err, credentials.ErrEmptySecret),
		errors.Is(err, runner.ErrInputTooLarge),
		errors.Is(err, runner.ErrInvalidUTF8):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}

func writeBadRequest(w http.ResponseWriter, details string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Bad request", Details: details})
}

// writeError reports err with its mapped status. Internal details never leave the server.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}

	details := domain.UserMessage(err)
	switch {
	case errors.Is(err, credentials.ErrEmptySecret), errors.Is(err, domain.ErrUserExists),
		errors.Is(err, domain.ErrInvalidForm), errors.Is(err, domain.ErrFormsReadOnly),
		errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8):
		details = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: http.StatusText(status), Details: details})
}
