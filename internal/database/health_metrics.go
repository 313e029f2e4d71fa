package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fittrack/internal/metrics"
)

// HealthMetric is a point-in-time user measurement such as max_heartrate.
// Effective dates are yyyy-mm-dd strings; the newest effective date wins.
type HealthMetric struct {
	ID            int64
	UserID        string
	MetricName    string
	MetricValue   float64
	EffectiveDate string
	CreatedAt     int64
}

// UpsertHealthMetric records a measurement, replacing any prior value for the
// same (user, metric, effective date)
func (db *DB) UpsertHealthMetric(m *HealthMetric) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpsertHealthMetric))
	defer timer.ObserveDuration()

	_, err := db.conn.Exec(`
		INSERT INTO user_health_metrics (user_id, metric_name, metric_value, effective_date, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, metric_name, effective_date) DO UPDATE SET
			metric_value = excluded.metric_value
	`, m.UserID, m.MetricName, m.MetricValue, m.EffectiveDate, time.Now().Unix())

	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertHealthMetric).Inc()
		return fmt.Errorf("failed to upsert health metric: %w", err)
	}
	return nil
}

// GetLatestHealthMetric returns the most recent measurement of a metric for a
// user, or nil when none has been recorded
func (db *DB) GetLatestHealthMetric(userID, metricName string) (*HealthMetric, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetHealthMetric))
	defer timer.ObserveDuration()

	var m HealthMetric
	err := db.conn.QueryRow(`
		SELECT id, user_id, metric_name, metric_value, effective_date, created_at
		FROM user_health_metrics
		WHERE user_id = ? AND metric_name = ?
		ORDER BY effective_date DESC
		LIMIT 1
	`, userID, metricName).Scan(
		&m.ID, &m.UserID, &m.MetricName, &m.MetricValue, &m.EffectiveDate, &m.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetHealthMetric).Inc()
		return nil, fmt.Errorf("failed to get health metric: %w", err)
	}
	return &m, nil
}

// ListHealthMetrics returns every recorded measurement of a metric for a user,
// newest effective date first
func (db *DB) ListHealthMetrics(userID, metricName string) ([]*HealthMetric, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpListHealthMetrics))
	defer timer.ObserveDuration()

	rows, err := db.conn.Query(`
		SELECT id, user_id, metric_name, metric_value, effective_date, created_at
		FROM user_health_metrics
		WHERE user_id = ? AND metric_name = ?
		ORDER BY effective_date DESC
	`, userID, metricName)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpListHealthMetrics).Inc()
		return nil, fmt.Errorf("failed to list health metrics: %w", err)
	}
	defer rows.Close()

	var out []*HealthMetric
	for rows.Next() {
		var m HealthMetric
		if err := rows.Scan(&m.ID, &m.UserID, &m.MetricName, &m.MetricValue, &m.EffectiveDate, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan health metric: %w", err)
		}
		out = append(out, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating health metrics: %w", err)
	}
	return out, nil
}
