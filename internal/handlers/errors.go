package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"alert-engine/internal/alerts"
	"alert-engine/internal/database"
	"alert-engine/internal/rules"
)

// handleStoreError maps storage errors to HTTP responses.
// Returns true if the error was handled, false otherwise.
func handleStoreError(w http.ResponseWriter, err error, resource, resourceID string) bool {
	if err == nil {
		return false
	}

	slog.Error("Storage error", "error", err, "resource", resource, "resourceID", resourceID)

	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, alerts.ErrNotFound):
		http.Error(w, resource+" not found", http.StatusNotFound)
		return true
	case errors.Is(err, database.ErrVersionMismatch):
		http.Error(w, err.Error(), http.StatusConflict)
		return true
	case errors.Is(err, alerts.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
		return true
	}
	return false
}

// handleValidationError writes a 400 for rule vocabulary violations.
// Returns true if the error was handled, false otherwise.
func handleValidationError(w http.ResponseWriter, err error) bool {
	var verr *rules.ValidationError
	if errors.As(err, &verr) {
		http.Error(w, verr.Error(), http.StatusBadRequest)
		return true
	}
	return false
}
