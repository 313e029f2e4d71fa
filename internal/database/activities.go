package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fittrack/internal/metrics"
)

// SourceStrava and SourceManual identify where an activity row came from
const (
	SourceStrava = "strava"
	SourceManual = "manual"
)

// Activity represents one recorded workout session
type Activity struct {
	ActivityID int64
	Source     string
	UserID     string

	Name      string
	Type      string
	SportType string

	Distance           float64
	MovingTime         int64
	ElapsedTime        int64
	TotalElevationGain float64
	AverageSpeed       float64
	MaxSpeed           float64
	AverageCadence     *float64

	HasHeartrate     bool
	AverageHeartrate *float64
	MaxHeartrate     *float64

	AverageWatts         *float64
	MaxWatts             *float64
	WeightedAverageWatts *float64
	Kilojoules           *float64

	ElevHigh *float64
	ElevLow  *float64

	StartDate      int64
	StartDateLocal int64
	UTCOffset      float64
	Timezone       string

	StartLat *float64
	StartLng *float64
	EndLat   *float64
	EndLng   *float64

	LocationCity    *string
	LocationState   *string
	LocationCountry *string

	Trainer bool
	Commute bool
	Manual  bool

	CreatedAt int64
	UpdatedAt int64
}

const activityColumns = `activity_id, source, user_id, name, type, sport_type,
	distance, moving_time, elapsed_time, total_elevation_gain, average_speed, max_speed, average_cadence,
	has_heartrate, average_heartrate, max_heartrate,
	average_watts, max_watts, weighted_average_watts, kilojoules,
	elev_high, elev_low,
	start_date, start_date_local, utc_offset, timezone,
	start_lat, start_lng, end_lat, end_lng,
	location_city, location_state, location_country,
	trainer, commute, manual,
	created_at, updated_at`

func scanActivity(row interface{ Scan(...any) error }) (*Activity, error) {
	var a Activity
	err := row.Scan(
		&a.ActivityID, &a.Source, &a.UserID, &a.Name, &a.Type, &a.SportType,
		&a.Distance, &a.MovingTime, &a.ElapsedTime, &a.TotalElevationGain, &a.AverageSpeed, &a.MaxSpeed, &a.AverageCadence,
		&a.HasHeartrate, &a.AverageHeartrate, &a.MaxHeartrate,
		&a.AverageWatts, &a.MaxWatts, &a.WeightedAverageWatts, &a.Kilojoules,
		&a.ElevHigh, &a.ElevLow,
		&a.StartDate, &a.StartDateLocal, &a.UTCOffset, &a.Timezone,
		&a.StartLat, &a.StartLng, &a.EndLat, &a.EndLng,
		&a.LocationCity, &a.LocationState, &a.LocationCountry,
		&a.Trainer, &a.Commute, &a.Manual,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertActivities writes a batch of activity summaries in one transaction.
// The upsert key is (source, activity_id); a conflicting row is fully
// overwritten, every summary column replaced (last write wins). The batch is
// all-or-nothing: any failure rolls back the whole transaction.
func (db *DB) UpsertActivities(activities []*Activity) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpsertActivities))
	defer timer.ObserveDuration()

	if len(activities) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertActivities).Inc()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO activities (` + activityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, activity_id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			type = excluded.type,
			sport_type = excluded.sport_type,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			elapsed_time = excluded.elapsed_time,
			total_elevation_gain = excluded.total_elevation_gain,
			average_speed = excluded.average_speed,
			max_speed = excluded.max_speed,
			average_cadence = excluded.average_cadence,
			has_heartrate = excluded.has_heartrate,
			average_heartrate = excluded.average_heartrate,
			max_heartrate = excluded.max_heartrate,
			average_watts = excluded.average_watts,
			max_watts = excluded.max_watts,
			weighted_average_watts = excluded.weighted_average_watts,
			kilojoules = excluded.kilojoules,
			elev_high = excluded.elev_high,
			elev_low = excluded.elev_low,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			utc_offset = excluded.utc_offset,
			timezone = excluded.timezone,
			start_lat = excluded.start_lat,
			start_lng = excluded.start_lng,
			end_lat = excluded.end_lat,
			end_lng = excluded.end_lng,
			location_city = excluded.location_city,
			location_state = excluded.location_state,
			location_country = excluded.location_country,
			trainer = excluded.trainer,
			commute = excluded.commute,
			manual = excluded.manual,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertActivities).Inc()
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, a := range activities {
		_, err := stmt.Exec(
			a.ActivityID, a.Source, a.UserID, a.Name, a.Type, a.SportType,
			a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain, a.AverageSpeed, a.MaxSpeed, a.AverageCadence,
			a.HasHeartrate, a.AverageHeartrate, a.MaxHeartrate,
			a.AverageWatts, a.MaxWatts, a.WeightedAverageWatts, a.Kilojoules,
			a.ElevHigh, a.ElevLow,
			a.StartDate, a.StartDateLocal, a.UTCOffset, a.Timezone,
			a.StartLat, a.StartLng, a.EndLat, a.EndLng,
			a.LocationCity, a.LocationState, a.LocationCountry,
			a.Trainer, a.Commute, a.Manual,
			now, now,
		)
		if err != nil {
			metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertActivities).Inc()
			return fmt.Errorf("failed to upsert activity %d: %w", a.ActivityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertActivities).Inc()
		return fmt.Errorf("failed to commit activity upsert: %w", err)
	}
	return nil
}

// InsertManualActivity inserts a manually entered activity, assigning the next
// identifier in the manual source namespace
func (db *DB) InsertManualActivity(a *Activity) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpInsertManualActivity))
	defer timer.ObserveDuration()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRow(`
		SELECT COALESCE(MAX(activity_id), 0) + 1 FROM activities WHERE source = ?
	`, SourceManual).Scan(&next); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpInsertManualActivity).Inc()
		return fmt.Errorf("failed to allocate manual activity id: %w", err)
	}

	now := time.Now().Unix()
	a.ActivityID = next
	a.Source = SourceManual
	a.Manual = true
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err = tx.Exec(`
		INSERT INTO activities (
			activity_id, source, user_id, name, type, sport_type,
			distance, moving_time, elapsed_time, total_elevation_gain,
			has_heartrate, start_date, start_date_local, utc_offset, timezone,
			manual, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, a.ActivityID, a.Source, a.UserID, a.Name, a.Type, a.SportType,
		a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain,
		a.HasHeartrate, a.StartDate, a.StartDateLocal, a.UTCOffset, a.Timezone,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpInsertManualActivity).Inc()
		return fmt.Errorf("failed to insert manual activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit manual activity: %w", err)
	}
	return nil
}

// GetActivity retrieves a user's activity by provider-assigned identifier.
// Returns nil without error when no row exists.
func (db *DB) GetActivity(userID string, activityID int64) (*Activity, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetActivity))
	defer timer.ObserveDuration()

	a, err := scanActivity(db.conn.QueryRow(`
		SELECT `+activityColumns+` FROM activities WHERE user_id = ? AND activity_id = ?
	`, userID, activityID))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetActivity).Inc()
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return a, nil
}

// ListActivitiesByUser returns a user's activities ordered most recent first
func (db *DB) ListActivitiesByUser(userID string, limit, offset int) ([]*Activity, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpListActivities))
	defer timer.ObserveDuration()

	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id = ? ORDER BY start_date DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := db.conn.Query(query, userID)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpListActivities).Inc()
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}

	return activities, nil
}
