package database

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"fittrack/internal/metrics"
)

// WeeklyAggregate summarizes a user's activity totals for one Monday-based week
type WeeklyAggregate struct {
	WeekStart          string // yyyy-mm-dd, always a Monday
	ActivityCount      int
	TotalDistance      float64
	TotalMovingTime    int64
	TotalElapsedTime   int64
	TotalElevationGain float64
	AvgHeartrate       *float64
	MaxHeartrate       *float64
}

// ListWeeklyAggregates groups a user's activities into Monday-based weeks by
// local start time and totals distance, moving time and elevation gain.
// Weeks with no activities are absent. Most recent week first.
func (db *DB) ListWeeklyAggregates(userID string, limit int) ([]*WeeklyAggregate, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpListWeeklyAggregates))
	defer timer.ObserveDuration()

	query := `
		SELECT
			date(datetime(start_date_local, 'unixepoch'),
			     '-' || ((CAST(strftime('%w', datetime(start_date_local, 'unixepoch')) AS INTEGER) + 6) % 7) || ' days') AS week_start,
			COUNT(*),
			SUM(distance),
			SUM(moving_time),
			SUM(elapsed_time),
			SUM(total_elevation_gain),
			AVG(average_heartrate),
			MAX(max_heartrate)
		FROM activities
		WHERE user_id = ?
		GROUP BY week_start
		ORDER BY week_start DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.conn.Query(query, userID)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpListWeeklyAggregates).Inc()
		return nil, fmt.Errorf("failed to list weekly aggregates: %w", err)
	}
	defer rows.Close()

	var out []*WeeklyAggregate
	for rows.Next() {
		var w WeeklyAggregate
		if err := rows.Scan(&w.WeekStart, &w.ActivityCount, &w.TotalDistance, &w.TotalMovingTime, &w.TotalElapsedTime, &w.TotalElevationGain, &w.AvgHeartrate, &w.MaxHeartrate); err != nil {
			return nil, fmt.Errorf("failed to scan weekly aggregate: %w", err)
		}
		out = append(out, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weekly aggregates: %w", err)
	}
	return out, nil
}
