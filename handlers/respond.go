package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/middleware"
	"github.com/kevinaaaquil/circulation/models"
	"github.com/kevinaaaquil/circulation/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes caps request bodies; every payload here is a few fields.
const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	ID    string `json:"id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json", Kind: "invalid_input"})
		return false
	}
	return true
}

// statusOf maps a failure kind to an HTTP status.
func statusOf(err error) int {
	if errors.Is(err, circulation.ErrInvalidCredentials) {
		return http.StatusUnauthorized
	}
	switch circulation.KindOf(err) {
	case circulation.KindNotFound:
		return http.StatusNotFound
	case circulation.KindConflict, circulation.KindUnavailable:
		return http.StatusConflict
	case circulation.KindForbidden:
		return http.StatusForbidden
	case circulation.KindInvalidInput:
		return http.StatusBadRequest
	case circulation.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with its kind and offending id. Errors without a
// kind are logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if errors.Is(err, service.ErrNotConfigured) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "feature not configured", Kind: "not_configured"})
		return
	}
	var ce *circulation.Error
	if !errors.As(err, &ce) {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: circulation.KindUnknown.String()})
		return
	}
	if ce.Kind == circulation.KindStoreUnavailable {
		logger.WarnContext(r.Context(), "store unavailable", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	writeJSON(w, statusOf(err), ErrorResponse{Error: ce.Reason.Error(), Kind: ce.Kind.String(), ID: ce.ID})
}

// actorOf returns the authenticated caller. Routes behind middleware.Auth
// always have one.
func actorOf(r *http.Request) models.Actor {
	actor, _ := middleware.ActorFromContext(r.Context())
	return actor
}
