package database

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fittrack/internal/metrics"
)

// AcquireSyncLease attempts to take the per-user sync lease. Returns true when
// acquired. A live lease held by a previous run blocks acquisition until it is
// released or its TTL passes, so a crashed run cannot wedge the user forever.
func (db *DB) AcquireSyncLease(userID string, ttl time.Duration) (bool, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpAcquireSyncLease))
	defer timer.ObserveDuration()

	now := time.Now().Unix()
	result, err := db.conn.Exec(`
		INSERT INTO sync_leases (user_id, acquired_at, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE sync_leases.expires_at <= excluded.acquired_at
	`, userID, now, now+int64(ttl.Seconds()))

	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpAcquireSyncLease).Inc()
		return false, fmt.Errorf("failed to acquire sync lease: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ReleaseSyncLease releases the per-user sync lease. Releasing a lease that
// does not exist is not an error.
func (db *DB) ReleaseSyncLease(userID string) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpReleaseSyncLease))
	defer timer.ObserveDuration()

	_, err := db.conn.Exec(`DELETE FROM sync_leases WHERE user_id = ?`, userID)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpReleaseSyncLease).Inc()
		return fmt.Errorf("failed to release sync lease: %w", err)
	}
	return nil
}
