package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"fittrack/internal/apperror"
	"fittrack/internal/auth"
	"fittrack/internal/database"
)

const metricMaxHeartrate = "max_heartrate"

// HealthMetricsHandler records and serves point-in-time user measurements
type HealthMetricsHandler struct {
	db *database.DB
}

// NewHealthMetricsHandler creates a new health metrics handler
func NewHealthMetricsHandler(db *database.DB) *HealthMetricsHandler {
	return &HealthMetricsHandler{db: db}
}

// GetMaxHeartrate returns the user's most recent max heart rate measurement
func (h *HealthMetricsHandler) GetMaxHeartrate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	metric, err := h.db.GetLatestHealthMetric(userID, metricMaxHeartrate)
	if err != nil {
		writeError(w, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return
	}
	if metric == nil {
		writeError(w, apperror.New(apperror.ErrNotFound, "no max heart rate recorded"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"value":          metric.MetricValue,
		"effective_date": metric.EffectiveDate,
	})
}

type maxHeartrateRequest struct {
	Value         float64 `json:"value"`
	EffectiveDate string  `json:"effective_date"` // yyyy-mm-dd; defaults to today
}

// SetMaxHeartrate records a max heart rate measurement
func (h *HealthMetricsHandler) SetMaxHeartrate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req maxHeartrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.New(apperror.ErrValidation, "invalid request body"))
		return
	}

	if req.Value < 60 || req.Value > 250 {
		writeError(w, apperror.New(apperror.ErrValidation, "value must be between 60 and 250"))
		return
	}

	effectiveDate := req.EffectiveDate
	if effectiveDate == "" {
		effectiveDate = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", effectiveDate); err != nil {
		writeError(w, apperror.New(apperror.ErrValidation, "invalid effective_date"))
		return
	}

	metric := &database.HealthMetric{
		UserID:        userID,
		MetricName:    metricMaxHeartrate,
		MetricValue:   req.Value,
		EffectiveDate: effectiveDate,
	}

	if err := h.db.UpsertHealthMetric(metric); err != nil {
		writeError(w, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"value":          metric.MetricValue,
		"effective_date": metric.EffectiveDate,
	})
}
