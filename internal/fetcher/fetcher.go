package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"fittrack/internal/apperror"
	"fittrack/internal/content"
	"fittrack/internal/database"
	"fittrack/internal/metrics"
	"fittrack/internal/strava"
)

// Fetcher downloads per-activity detail payloads and records where they landed
type Fetcher struct {
	db     *database.DB
	client *strava.Client
	store  *content.Store
	logger *slog.Logger
}

// New creates a fetcher writing payloads through the given content store
func New(db *database.DB, client *strava.Client, store *content.Store) *Fetcher {
	return &Fetcher{
		db:     db,
		client: client,
		store:  store,
		logger: slog.Default(),
	}
}

// FetchTrack downloads an activity's GPX export, stores it and records the
// detail row with a checksum of the stored bytes.
// Returns the stored file path and checksum.
func (f *Fetcher) FetchTrack(ctx context.Context, userID, accessToken string, activityID int64) (string, string, error) {
	path, checksum, err := f.fetchTrack(ctx, userID, accessToken, activityID)
	if err != nil {
		metrics.DetailFetchesTotal.WithLabelValues(metrics.KindTrack, metrics.ResultFailure).Inc()
		return "", "", err
	}
	metrics.DetailFetchesTotal.WithLabelValues(metrics.KindTrack, metrics.ResultSuccess).Inc()
	return path, checksum, nil
}

func (f *Fetcher) fetchTrack(ctx context.Context, userID, accessToken string, activityID int64) (string, string, error) {
	gpx, err := f.client.ExportGPX(ctx, accessToken, activityID)
	if err != nil {
		return "", "", apperror.Wrap(apperror.ErrFetchFailed, err)
	}

	data := []byte(gpx)
	checksum := content.Checksum(data)

	path, err := f.store.Write(content.KindTrack, userID, activityID, data)
	if err != nil {
		return "", "", apperror.Wrap(apperror.ErrStorageFailed, err)
	}

	if err := f.db.UpsertTrackDetail(userID, activityID, path, checksum, time.Now().Unix()); err != nil {
		return "", "", apperror.Wrap(apperror.ErrPersistenceFailed, err)
	}

	f.logger.Info("Fetched track", "user_id", userID, "activity_id", activityID, "path", path, "checksum", checksum)

	return path, checksum, nil
}

// FetchStream downloads an activity's stream payload, stores it re-indented
// and records the detail row with a checksum of the stored bytes.
// Returns the stored file path and checksum.
func (f *Fetcher) FetchStream(ctx context.Context, userID, accessToken string, activityID int64) (string, string, error) {
	path, checksum, err := f.fetchStream(ctx, userID, accessToken, activityID)
	if err != nil {
		metrics.DetailFetchesTotal.WithLabelValues(metrics.KindStream, metrics.ResultFailure).Inc()
		return "", "", err
	}
	metrics.DetailFetchesTotal.WithLabelValues(metrics.KindStream, metrics.ResultSuccess).Inc()
	return path, checksum, nil
}

func (f *Fetcher) fetchStream(ctx context.Context, userID, accessToken string, activityID int64) (string, string, error) {
	raw, err := f.client.GetStreams(ctx, accessToken, activityID)
	if err != nil {
		return "", "", apperror.Wrap(apperror.ErrFetchFailed, err)
	}

	// Stable two-space serialization; the checksum covers these exact bytes
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", "", apperror.Wrap(apperror.ErrFetchFailed, err)
	}
	data := buf.Bytes()
	checksum := content.Checksum(data)

	path, err := f.store.Write(content.KindStream, userID, activityID, data)
	if err != nil {
		return "", "", apperror.Wrap(apperror.ErrStorageFailed, err)
	}

	if err := f.db.UpsertStreamDetail(userID, activityID, path, checksum, time.Now().Unix()); err != nil {
		return "", "", apperror.Wrap(apperror.ErrPersistenceFailed, err)
	}

	f.logger.Info("Fetched stream", "user_id", userID, "activity_id", activityID, "path", path, "checksum", checksum)

	return path, checksum, nil
}
