package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fittrack/internal/auth"
	"fittrack/internal/syncer"
)

// SyncHandler starts sync runs and reports their progress
type SyncHandler struct {
	runner *syncer.Runner
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(runner *syncer.Runner) *SyncHandler {
	return &SyncHandler{runner: runner}
}

// Start begins a sync run for the authenticated user
func (h *SyncHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	status, err := h.runner.Start(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, status)
}

// Status returns a snapshot of one sync run
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	runID := chi.URLParam(r, "runID")

	status := h.runner.Status(runID)
	if status == nil || status.UserID != userID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}

	writeJSON(w, http.StatusOK, status)
}
