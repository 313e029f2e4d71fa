package importer

import (
	"context"
	"log/slog"
	"time"

	"fittrack/internal/apperror"
	"fittrack/internal/database"
	"fittrack/internal/metrics"
	"fittrack/internal/strava"
)

// Importer pulls activity summaries from the provider into the local store
type Importer struct {
	db       *database.DB
	client   *strava.Client
	logger   *slog.Logger
	pageSize int
}

// Result reports what one import pass did
type Result struct {
	Upserted int `json:"upserted"`
	Rejected int `json:"rejected"`
}

// New creates an importer that fetches pageSize recent activities per pass
func New(db *database.DB, client *strava.Client, pageSize int) *Importer {
	if pageSize < 1 {
		pageSize = 50
	}
	return &Importer{
		db:       db,
		client:   client,
		logger:   slog.Default(),
		pageSize: pageSize,
	}
}

// ImportRecent fetches the user's most recent activities and upserts their
// summaries. Provider records without an activity id are rejected, counted
// and skipped; they never abort the pass.
func (im *Importer) ImportRecent(ctx context.Context, userID, accessToken string) (*Result, error) {
	records, err := im.client.ListActivities(ctx, accessToken, 1, im.pageSize)
	if err != nil {
		return nil, apperror.Wrap(apperror.ErrImportFailed, err)
	}

	result := &Result{}
	activities := make([]*database.Activity, 0, len(records))
	for _, r := range records {
		if r.ID == 0 {
			im.logger.Warn("Rejecting provider record without activity id", "user_id", userID, "name", r.Name)
			result.Rejected++
			continue
		}
		activities = append(activities, convert(userID, r))
	}

	if err := im.db.UpsertActivities(activities); err != nil {
		return nil, apperror.Wrap(apperror.ErrPersistenceFailed, err)
	}
	result.Upserted = len(activities)

	metrics.ActivitiesImportedTotal.Add(float64(result.Upserted))
	metrics.ActivitiesRejectedTotal.Add(float64(result.Rejected))

	im.logger.Info("Imported activities", "user_id", userID, "upserted", result.Upserted, "rejected", result.Rejected)

	return result, nil
}

func convert(userID string, r strava.Activity) *database.Activity {
	a := &database.Activity{
		ActivityID: r.ID,
		Source:     database.SourceStrava,
		UserID:     userID,

		Name:      r.Name,
		Type:      r.Type,
		SportType: r.SportType,

		Distance:           r.Distance,
		MovingTime:         r.MovingTime,
		ElapsedTime:        r.ElapsedTime,
		TotalElevationGain: r.TotalElevationGain,
		AverageSpeed:       r.AverageSpeed,
		MaxSpeed:           r.MaxSpeed,

		HasHeartrate: r.HasHeartrate,

		StartDate:      parseTime(r.StartDate),
		StartDateLocal: parseTime(r.StartDateLocal),
		UTCOffset:      r.UTCOffset,
		Timezone:       r.Timezone,

		Trainer: r.Trainer,
		Commute: r.Commute,
		Manual:  r.Manual,
	}

	a.AverageCadence = optional(r.AverageCadence)
	if r.HasHeartrate {
		a.AverageHeartrate = optional(r.AverageHeartrate)
		a.MaxHeartrate = optional(r.MaxHeartrate)
	}
	a.AverageWatts = optional(r.AverageWatts)
	a.MaxWatts = optional(r.MaxWatts)
	a.WeightedAverageWatts = optional(r.WeightedAverageWatts)
	a.Kilojoules = optional(r.Kilojoules)
	a.ElevHigh = optional(r.ElevHigh)
	a.ElevLow = optional(r.ElevLow)

	if len(r.StartLatLng) == 2 {
		a.StartLat = &r.StartLatLng[0]
		a.StartLng = &r.StartLatLng[1]
	}
	if len(r.EndLatLng) == 2 {
		a.EndLat = &r.EndLatLng[0]
		a.EndLng = &r.EndLatLng[1]
	}

	a.LocationCity = optionalString(r.LocationCity)
	a.LocationState = optionalString(r.LocationState)
	a.LocationCountry = optionalString(r.LocationCountry)

	return a
}

// parseTime parses the provider's RFC 3339 timestamps. start_date_local is
// wall time with a Z suffix, so parsing as UTC yields the local epoch the
// aggregation queries expect.
func parseTime(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// optional maps the provider's zero value for an omitted field to nil
func optional(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
