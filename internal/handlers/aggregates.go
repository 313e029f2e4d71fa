package handlers

import (
	"net/http"
	"strconv"

	"fittrack/internal/apperror"
	"fittrack/internal/auth"
	"fittrack/internal/database"
)

// AggregatesHandler serves weekly training totals
type AggregatesHandler struct {
	db *database.DB
}

// NewAggregatesHandler creates a new aggregates handler
func NewAggregatesHandler(db *database.DB) *AggregatesHandler {
	return &AggregatesHandler{db: db}
}

type weeklyAggregateResponse struct {
	WeekStart          string   `json:"week_start"`
	ActivityCount      int      `json:"activity_count"`
	TotalDistance      float64  `json:"total_distance"`
	TotalMovingTime    int64    `json:"total_moving_time"`
	TotalElapsedTime   int64    `json:"total_elapsed_time"`
	TotalElevationGain float64  `json:"total_elevation_gain"`
	AvgHeartrate       *float64 `json:"avg_heartrate"`
	MaxHeartrate       *float64 `json:"max_heartrate"`
}

// Weekly returns the user's Monday-based weekly totals, most recent first
func (h *AggregatesHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 104 {
		limit = 12
	}

	aggregates, err := h.db.ListWeeklyAggregates(userID, limit)
	if err != nil {
		writeError(w, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return
	}

	out := make([]weeklyAggregateResponse, 0, len(aggregates))
	for _, a := range aggregates {
		out = append(out, weeklyAggregateResponse{
			WeekStart:          a.WeekStart,
			ActivityCount:      a.ActivityCount,
			TotalDistance:      a.TotalDistance,
			TotalMovingTime:    a.TotalMovingTime,
			TotalElapsedTime:   a.TotalElapsedTime,
			TotalElevationGain: a.TotalElevationGain,
			AvgHeartrate:       a.AvgHeartrate,
			MaxHeartrate:       a.MaxHeartrate,
		})
	}

	writeJSON(w, http.StatusOK, out)
}
