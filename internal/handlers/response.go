package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"fittrack/internal/apperror"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps an error to its HTTP status and a JSON error body
func writeError(w http.ResponseWriter, err error) {
	status := apperror.StatusCode(err)
	if status >= 500 {
		slog.Error("Request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
