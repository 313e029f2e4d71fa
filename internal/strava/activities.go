package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"fittrack/internal/metrics"
)

// Activity is an activity summary as returned by the list endpoint
type Activity struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	SportType string `json:"sport_type"`

	Distance           float64 `json:"distance"`
	MovingTime         int64   `json:"moving_time"`
	ElapsedTime        int64   `json:"elapsed_time"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
	AverageSpeed       float64 `json:"average_speed"`
	MaxSpeed           float64 `json:"max_speed"`
	AverageCadence     float64 `json:"average_cadence"`

	HasHeartrate     bool    `json:"has_heartrate"`
	AverageHeartrate float64 `json:"average_heartrate"`
	MaxHeartrate     float64 `json:"max_heartrate"`

	AverageWatts         float64 `json:"average_watts"`
	MaxWatts             float64 `json:"max_watts"`
	WeightedAverageWatts float64 `json:"weighted_average_watts"`
	Kilojoules           float64 `json:"kilojoules"`

	ElevHigh float64 `json:"elev_high"`
	ElevLow  float64 `json:"elev_low"`

	StartDate      string  `json:"start_date"`
	StartDateLocal string  `json:"start_date_local"`
	UTCOffset      float64 `json:"utc_offset"`
	Timezone       string  `json:"timezone"`

	StartLatLng []float64 `json:"start_latlng"`
	EndLatLng   []float64 `json:"end_latlng"`

	LocationCity    string `json:"location_city"`
	LocationState   string `json:"location_state"`
	LocationCountry string `json:"location_country"`

	Trainer bool `json:"trainer"`
	Commute bool `json:"commute"`
	Manual  bool `json:"manual"`
}

// ListActivities fetches a page of the athlete's activities, most recent first
func (c *Client) ListActivities(ctx context.Context, accessToken string, page, perPage int) ([]Activity, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 200 // Strava max
	}

	params := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}

	respBody, err := c.get(ctx, metrics.OpListActivities, "/athlete/activities?"+params.Encode(), accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	var activities []Activity
	if err := json.Unmarshal(respBody, &activities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal activities: %w", err)
	}

	return activities, nil
}
