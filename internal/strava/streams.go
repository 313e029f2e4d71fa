package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"fittrack/internal/metrics"
)

// streamKeys is the fixed set of series requested for every activity
const streamKeys = "latlng,time,altitude,heartrate,watts,temp"

// GetStreams fetches an activity's time series keyed by stream type.
// The payload is returned raw so callers control serialization.
func (c *Client) GetStreams(ctx context.Context, accessToken string, activityID int64) (json.RawMessage, error) {
	params := url.Values{
		"keys":        {streamKeys},
		"key_by_type": {"true"},
	}

	path := fmt.Sprintf("/activities/%d/streams?%s", activityID, params.Encode())
	respBody, err := c.get(ctx, metrics.OpGetStreams, path, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get streams for activity %d: %w", activityID, err)
	}

	return json.RawMessage(respBody), nil
}

// ExportGPX downloads an activity's GPX export as text
func (c *Client) ExportGPX(ctx context.Context, accessToken string, activityID int64) (string, error) {
	path := fmt.Sprintf("/activities/%d/export_gpx", activityID)
	respBody, err := c.get(ctx, metrics.OpExportGPX, path, accessToken)
	if err != nil {
		return "", fmt.Errorf("failed to export gpx for activity %d: %w", activityID, err)
	}

	return string(respBody), nil
}
