package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fittrack/internal/apperror"
	"fittrack/internal/auth"
	"fittrack/internal/database"
)

// ActivitiesHandler serves stored activity summaries
type ActivitiesHandler struct {
	db *database.DB
}

// NewActivitiesHandler creates a new activities handler
func NewActivitiesHandler(db *database.DB) *ActivitiesHandler {
	return &ActivitiesHandler{db: db}
}

// List returns the authenticated user's activities, most recent first
func (h *ActivitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	activities, err := h.db.ListActivitiesByUser(userID, limit, offset)
	if err != nil {
		writeError(w, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return
	}
	if activities == nil {
		activities = []*database.Activity{}
	}

	writeJSON(w, http.StatusOK, activities)
}

// Get returns one activity by id
func (h *ActivitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	activityID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperror.New(apperror.ErrValidation, "invalid activity id"))
		return
	}

	activity, err := h.db.GetActivity(userID, activityID)
	if err != nil {
		writeError(w, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return
	}
	if activity == nil {
		writeError(w, apperror.New(apperror.ErrNotFound, "activity %d not found", activityID))
		return
	}

	writeJSON(w, http.StatusOK, activity)
}

type manualActivityRequest struct {
	Name               string  `json:"name"`
	SportType          string  `json:"sport_type"`
	Distance           float64 `json:"distance"`
	MovingTime         int64   `json:"moving_time"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
	StartDate          string  `json:"start_date"` // RFC 3339; defaults to now
}

// Create records a manually entered activity
func (h *ActivitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req manualActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.New(apperror.ErrValidation, "invalid request body"))
		return
	}

	if req.Name == "" {
		writeError(w, apperror.New(apperror.ErrValidation, "name is required"))
		return
	}
	if req.SportType == "" {
		writeError(w, apperror.New(apperror.ErrValidation, "sport_type is required"))
		return
	}
	if req.Distance < 0 || req.TotalElevationGain < 0 {
		writeError(w, apperror.New(apperror.ErrValidation, "distance and elevation gain must be non-negative"))
		return
	}
	if req.MovingTime <= 0 {
		writeError(w, apperror.New(apperror.ErrValidation, "moving_time must be positive"))
		return
	}

	start := time.Now()
	if req.StartDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			writeError(w, apperror.New(apperror.ErrValidation, "invalid start_date"))
			return
		}
		start = parsed
	}

	activity := &database.Activity{
		UserID:             userID,
		Name:               req.Name,
		Type:               req.SportType,
		SportType:          req.SportType,
		Distance:           req.Distance,
		MovingTime:         req.MovingTime,
		ElapsedTime:        req.MovingTime,
		TotalElevationGain: req.TotalElevationGain,
		StartDate:          start.Unix(),
		StartDateLocal:     start.Unix(),
	}

	if err := h.db.InsertManualActivity(activity); err != nil {
		writeError(w, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return
	}

	writeJSON(w, http.StatusCreated, activity)
}
