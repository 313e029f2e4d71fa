package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fittrack/internal/analysis"
	"fittrack/internal/apperror"
	"fittrack/internal/auth"
	"fittrack/internal/content"
	"fittrack/internal/database"
	"fittrack/internal/fetcher"
	"fittrack/internal/oauth"
)

// DetailsHandler serves per-activity payload downloads, gap listings and
// derived metric analysis
type DetailsHandler struct {
	db      *database.DB
	oauth   *oauth.Manager
	fetcher *fetcher.Fetcher
	store   *content.Store
}

// NewDetailsHandler creates a new details handler
func NewDetailsHandler(db *database.DB, oauthMgr *oauth.Manager, f *fetcher.Fetcher, store *content.Store) *DetailsHandler {
	return &DetailsHandler{db: db, oauth: oauthMgr, fetcher: f, store: store}
}

// Missing lists the user's activities with no downloaded payload of the
// requested kind
func (h *DetailsHandler) Missing(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	kind := r.URL.Query().Get("kind")

	var ids []int64
	var err error
	switch kind {
	case "track":
		ids, err = h.db.ListMissingTracks(userID, 0)
	case "stream":
		ids, err = h.db.ListMissingStreams(userID, 0)
	default:
		writeError(w, apperror.New(apperror.ErrValidation, "kind must be track or stream"))
		return
	}

	if err != nil {
		writeError(w, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kind":         kind,
		"activity_ids": ids,
	})
}

// FetchTrack downloads the GPX export for one activity
func (h *DetailsHandler) FetchTrack(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	activityID, ok := h.activityID(w, r, userID)
	if !ok {
		return
	}

	token, err := h.oauth.ValidAccessToken(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	path, checksum, err := h.fetcher.FetchTrack(r.Context(), userID, token, activityID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity_id": activityID,
		"path":        path,
		"checksum":    checksum,
	})
}

// FetchStream downloads the stream payload for one activity
func (h *DetailsHandler) FetchStream(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	activityID, ok := h.activityID(w, r, userID)
	if !ok {
		return
	}

	token, err := h.oauth.ValidAccessToken(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	path, checksum, err := h.fetcher.FetchStream(r.Context(), userID, token, activityID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity_id": activityID,
		"path":        path,
		"checksum":    checksum,
	})
}

// Analyze derives uphill and downhill heart rate from a stored stream
func (h *DetailsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	activityID, ok := h.activityID(w, r, userID)
	if !ok {
		return
	}

	detail, err := h.db.GetActivityDetail(userID, activityID)
	if err != nil {
		writeError(w, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return
	}
	if detail == nil || detail.StreamPath == nil {
		writeError(w, apperror.New(apperror.ErrNotFound, "no stream stored for activity %d", activityID))
		return
	}

	data, err := h.store.Read(content.KindStream, userID, activityID)
	if err != nil {
		writeError(w, apperror.Wrap(apperror.ErrStorageFailed, err))
		return
	}

	streams, err := analysis.ParseStreams(data)
	if err != nil {
		writeError(w, apperror.Wrap(apperror.ErrStorageFailed, err))
		return
	}

	result := analysis.Analyze(streams, analysis.DefaultProminence)

	if err := h.db.UpdateDerivedMetrics(userID, activityID, result.UphillHeartrate, result.DownhillHeartrate); err != nil {
		writeError(w, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity_id":        activityID,
		"uphill_heartrate":   result.UphillHeartrate,
		"downhill_heartrate": result.DownhillHeartrate,
	})
}

// activityID parses the id route param and checks the activity belongs to the
// user
func (h *DetailsHandler) activityID(w http.ResponseWriter, r *http.Request, userID string) (int64, bool) {
	activityID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperror.New(apperror.ErrValidation, "invalid activity id"))
		return 0, false
	}

	activity, err := h.db.GetActivity(userID, activityID)
	if err != nil {
		writeError(w, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return 0, false
	}
	if activity == nil {
		writeError(w, apperror.New(apperror.ErrNotFound, "activity %d not found", activityID))
		return 0, false
	}

	return activityID, true
}
