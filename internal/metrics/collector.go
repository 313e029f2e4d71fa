package metrics

import (
	"context"
	"log/slog"
	"time"
)

// DB interface for gap depth queries
type DB interface {
	CountMissingTracks() (int, error)
	CountMissingStreams() (int, error)
}

// StartGapDepthCollector starts a background goroutine that periodically
// counts activities still missing a detail payload
func StartGapDepthCollector(ctx context.Context, db DB, interval time.Duration) {
	logger := slog.Default()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect once immediately
	collectGapDepths(db, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Gap depth collector stopping")
			return
		case <-ticker.C:
			collectGapDepths(db, logger)
		}
	}
}

func collectGapDepths(db DB, logger *slog.Logger) {
	if n, err := db.CountMissingTracks(); err != nil {
		logger.Error("Failed to count missing tracks", "error", err)
	} else {
		MissingDetailsGauge.WithLabelValues(KindTrack).Set(float64(n))
	}

	if n, err := db.CountMissingStreams(); err != nil {
		logger.Error("Failed to count missing streams", "error", err)
	} else {
		MissingDetailsGauge.WithLabelValues(KindStream).Set(float64(n))
	}
}
