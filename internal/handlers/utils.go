package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fittrack/apiserver/internal/services"
	"go.uber.org/zap"
)

const maxRequestBodyBytes = 1 << 20

type contextKey string

const contextSubjectKey contextKey = "sub"

// subject is the authenticated caller as carried by the token.
type subject struct {
	UserID string
	Admin  bool
}

func withSubject(ctx context.Context, s subject) context.Context {
	return context.WithValue(ctx, contextSubjectKey, s)
}

func subjectFromContext(ctx context.Context) (subject, error) {
	s, ok := ctx.Value(contextSubjectKey).(subject)
	if !ok || s.UserID == "" {
		return subject{}, errors.New("missing subject")
	}
	return s, nil
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DeleteResponse acknowledges a delete.
type DeleteResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Unexpected errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrAuthorization):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "exercise catalog unavailable")
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
