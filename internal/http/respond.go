package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"outlay/internal/core"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondMessage(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// respondDomainError maps the error taxonomy to status codes: validation
// and conflict failures are 400, missing records 404, everything else 500
// with the message passed through verbatim.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *core.ValidationError
		conflict   *core.ConflictError
		notFound   *core.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &conflict):
		respondError(w, http.StatusBadRequest, conflict.Message)
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, notFound.Message)
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"url", r.URL.Path,
			"error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
