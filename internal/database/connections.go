package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fittrack/internal/metrics"
)

// Connection represents a user's stored credential for a third-party provider.
// One active connection exists per (user, provider) pair.
type Connection struct {
	ID           int64
	UserID       string
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	AthleteID    *int64
	Scope        *string
	CreatedAt    int64
	UpdatedAt    int64
}

// UpsertConnection inserts a connection or replaces the credentials of an
// existing one for the same (user, provider) pair
func (db *DB) UpsertConnection(c *Connection) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpsertConnection))
	defer timer.ObserveDuration()

	now := time.Now().Unix()

	_, err := db.conn.Exec(`
		INSERT INTO user_connections (
			user_id, provider, access_token, refresh_token, expires_at,
			athlete_id, scope, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			athlete_id = excluded.athlete_id,
			scope = excluded.scope,
			updated_at = excluded.updated_at
	`, c.UserID, c.Provider, c.AccessToken, c.RefreshToken, c.ExpiresAt,
		c.AthleteID, c.Scope, now, now)

	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertConnection).Inc()
		return fmt.Errorf("failed to upsert connection: %w", err)
	}
	return nil
}

// GetConnection retrieves a user's connection for a provider.
// Returns nil without error when no connection exists.
func (db *DB) GetConnection(userID, provider string) (*Connection, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetConnection))
	defer timer.ObserveDuration()

	var c Connection
	err := db.conn.QueryRow(`
		SELECT id, user_id, provider, access_token, refresh_token, expires_at,
		       athlete_id, scope, created_at, updated_at
		FROM user_connections WHERE user_id = ? AND provider = ?
	`, userID, provider).Scan(
		&c.ID, &c.UserID, &c.Provider, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt,
		&c.AthleteID, &c.Scope, &c.CreatedAt, &c.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetConnection).Inc()
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return &c, nil
}

// UpdateConnectionTokens overwrites a connection's access token, refresh token
// and expiry in a single statement so the three always change together
func (db *DB) UpdateConnectionTokens(userID, provider, accessToken, refreshToken string, expiresAt int64) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpdateConnectionTokens))
	defer timer.ObserveDuration()

	result, err := db.conn.Exec(`
		UPDATE user_connections
		SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		WHERE user_id = ? AND provider = ?
	`, accessToken, refreshToken, expiresAt, time.Now().Unix(), userID, provider)

	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpdateConnectionTokens).Inc()
		return fmt.Errorf("failed to update connection tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("connection not found")
	}

	return nil
}
