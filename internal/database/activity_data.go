package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fittrack/internal/metrics"
)

// ActivityDetail references the downloaded payloads and derived metrics for
// one activity. Columns not yet populated stay nil.
type ActivityDetail struct {
	ActivityID int64
	UserID     string

	GPXPath           *string
	GPXDownloadedAt   *int64
	GPXChecksumSHA256 *string

	StreamPath           *string
	StreamDownloadedAt   *int64
	StreamChecksumSHA256 *string

	AnalyzedAt        *int64
	UphillHeartrate   *float64
	DownhillHeartrate *float64

	CreatedAt int64
	UpdatedAt int64
}

// UpsertTrackDetail records a downloaded GPX export together with the checksum
// of the stored bytes. Only the GPX columns are touched; stream and analysis
// columns on an existing row are preserved.
func (db *DB) UpsertTrackDetail(userID string, activityID int64, path, checksum string, downloadedAt int64) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpsertTrackDetail))
	defer timer.ObserveDuration()

	now := time.Now().Unix()
	_, err := db.conn.Exec(`
		INSERT INTO activity_data (activity_id, user_id, gpx_path, gpx_downloaded_at, gpx_checksum_sha256, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_id, user_id) DO UPDATE SET
			gpx_path = excluded.gpx_path,
			gpx_downloaded_at = excluded.gpx_downloaded_at,
			gpx_checksum_sha256 = excluded.gpx_checksum_sha256,
			updated_at = excluded.updated_at
	`, activityID, userID, path, downloadedAt, checksum, now, now)

	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertTrackDetail).Inc()
		return fmt.Errorf("failed to upsert track detail: %w", err)
	}
	return nil
}

// UpsertStreamDetail records a downloaded stream payload together with the
// checksum of the stored bytes. Only the stream columns are touched.
func (db *DB) UpsertStreamDetail(userID string, activityID int64, path, checksum string, downloadedAt int64) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpsertStreamDetail))
	defer timer.ObserveDuration()

	now := time.Now().Unix()
	_, err := db.conn.Exec(`
		INSERT INTO activity_data (activity_id, user_id, stream_path, stream_downloaded_at, stream_checksum_sha256, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_id, user_id) DO UPDATE SET
			stream_path = excluded.stream_path,
			stream_downloaded_at = excluded.stream_downloaded_at,
			stream_checksum_sha256 = excluded.stream_checksum_sha256,
			updated_at = excluded.updated_at
	`, activityID, userID, path, downloadedAt, checksum, now, now)

	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertStreamDetail).Inc()
		return fmt.Errorf("failed to upsert stream detail: %w", err)
	}
	return nil
}

// UpdateDerivedMetrics writes analysis results for an activity. The detail row
// must already exist; analysis runs over a stored stream.
func (db *DB) UpdateDerivedMetrics(userID string, activityID int64, uphillHR, downhillHR *float64) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpdateDerivedMetrics))
	defer timer.ObserveDuration()

	now := time.Now().Unix()
	result, err := db.conn.Exec(`
		UPDATE activity_data
		SET analyzed_at = ?, uphill_heartrate = ?, downhill_heartrate = ?, updated_at = ?
		WHERE activity_id = ? AND user_id = ?
	`, now, uphillHR, downhillHR, now, activityID, userID)

	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpdateDerivedMetrics).Inc()
		return fmt.Errorf("failed to update derived metrics: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("activity detail not found")
	}
	return nil
}

// GetActivityDetail retrieves the detail row for an activity.
// Returns nil without error when no row exists.
func (db *DB) GetActivityDetail(userID string, activityID int64) (*ActivityDetail, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetActivityDetail))
	defer timer.ObserveDuration()

	var d ActivityDetail
	err := db.conn.QueryRow(`
		SELECT activity_id, user_id, gpx_path, gpx_downloaded_at, gpx_checksum_sha256,
		       stream_path, stream_downloaded_at, stream_checksum_sha256,
		       analyzed_at, uphill_heartrate, downhill_heartrate,
		       created_at, updated_at
		FROM activity_data WHERE activity_id = ? AND user_id = ?
	`, activityID, userID).Scan(
		&d.ActivityID, &d.UserID, &d.GPXPath, &d.GPXDownloadedAt, &d.GPXChecksumSHA256,
		&d.StreamPath, &d.StreamDownloadedAt, &d.StreamChecksumSHA256,
		&d.AnalyzedAt, &d.UphillHeartrate, &d.DownhillHeartrate,
		&d.CreatedAt, &d.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetActivityDetail).Inc()
		return nil, fmt.Errorf("failed to get activity detail: %w", err)
	}
	return &d, nil
}

// ListMissingTracks returns ids of a user's activities with no downloaded GPX
// export, most recent first. An activity with no detail row counts as missing.
func (db *DB) ListMissingTracks(userID string, limit int) ([]int64, error) {
	return db.listMissing(userID, "gpx_path", metrics.DBOpListMissingTracks, limit)
}

// ListMissingStreams returns ids of a user's activities with no downloaded
// stream payload, most recent first
func (db *DB) ListMissingStreams(userID string, limit int) ([]int64, error) {
	return db.listMissing(userID, "stream_path", metrics.DBOpListMissingStreams, limit)
}

func (db *DB) listMissing(userID, column, op string, limit int) ([]int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(op))
	defer timer.ObserveDuration()

	query := fmt.Sprintf(`
		SELECT a.activity_id
		FROM activities a
		LEFT JOIN activity_data d ON d.activity_id = a.activity_id AND d.user_id = a.user_id
		WHERE a.user_id = ? AND a.manual = 0 AND d.%s IS NULL
		ORDER BY a.start_date DESC
	`, column)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.conn.Query(query, userID)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(op).Inc()
		return nil, fmt.Errorf("failed to list missing details: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan activity id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missing details: %w", err)
	}
	return ids, nil
}

// CountMissingTracks counts activities across all users with no downloaded GPX export
func (db *DB) CountMissingTracks() (int, error) {
	return db.countMissing("gpx_path")
}

// CountMissingStreams counts activities across all users with no downloaded stream payload
func (db *DB) CountMissingStreams() (int, error) {
	return db.countMissing("stream_path")
}

func (db *DB) countMissing(column string) (int, error) {
	var count int
	err := db.conn.QueryRow(fmt.Sprintf(`
		SELECT COUNT(*)
		FROM activities a
		LEFT JOIN activity_data d ON d.activity_id = a.activity_id AND d.user_id = a.user_id
		WHERE a.manual = 0 AND d.%s IS NULL
	`, column)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count missing details: %w", err)
	}
	return count, nil
}
