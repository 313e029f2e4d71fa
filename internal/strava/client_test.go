package strava

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("client-id", "client-secret", slog.Default())
	client.SetBaseURL(server.URL)
	client.SetTokenURL(server.URL + "/oauth/token")
	return client
}

func TestExchangeCode(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if body["grant_type"] != "authorization_code" || body["code"] != "the-code" {
			t.Errorf("Unexpected request body: %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"access_token": "at1",
			"refresh_token": "rt1",
			"expires_at": 1800000000,
			"expires_in": 21600,
			"athlete": {"id": 777, "username": "runner"},
			"scope": "read,activity:read_all"
		}`))
	}))

	resp, err := client.ExchangeCode(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("Failed to exchange code: %v", err)
	}

	if resp.AccessToken != "at1" || resp.RefreshToken != "rt1" {
		t.Errorf("Unexpected tokens: %+v", resp)
	}
	if resp.ExpiresAt != 1800000000 {
		t.Errorf("Expected absolute expiry, got %d", resp.ExpiresAt)
	}

	var athlete struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Athlete, &athlete); err != nil || athlete.ID != 777 {
		t.Errorf("Expected athlete payload, got %s", resp.Athlete)
	}
}

func TestRefreshTokenError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "Bad Request"}`))
	}))

	_, err := client.RefreshToken(context.Background(), "stale")
	if err == nil {
		t.Fatal("Expected error")
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected HTTPError, got %T", err)
	}
	if httpErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", httpErr.StatusCode)
	}
}

func TestListActivities(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/athlete/activities" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token1" {
			t.Errorf("Unexpected auth header %q", got)
		}
		if r.URL.Query().Get("per_page") != "50" {
			t.Errorf("Unexpected per_page %s", r.URL.Query().Get("per_page"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 101, "name": "Morning Run", "sport_type": "Run", "distance": 5000.5,
			 "moving_time": 1800, "has_heartrate": true, "average_heartrate": 148.2,
			 "start_date": "2026-08-01T06:00:00Z", "start_latlng": [47.1, 11.2]},
			{"id": 102, "name": "Ride", "sport_type": "Ride", "distance": 30000}
		]`))
	}))

	activities, err := client.ListActivities(context.Background(), "token1", 1, 50)
	if err != nil {
		t.Fatalf("Failed to list activities: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("Expected 2 activities, got %d", len(activities))
	}

	a := activities[0]
	if a.ID != 101 || a.Name != "Morning Run" || a.Distance != 5000.5 {
		t.Errorf("Unexpected activity: %+v", a)
	}
	if !a.HasHeartrate || a.AverageHeartrate != 148.2 {
		t.Errorf("Expected heartrate fields, got %+v", a)
	}
	if len(a.StartLatLng) != 2 || a.StartLatLng[0] != 47.1 {
		t.Errorf("Expected start latlng, got %v", a.StartLatLng)
	}
}

func TestGetStreams(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activities/101/streams" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("key_by_type") != "true" {
			t.Error("Expected key_by_type=true")
		}
		if !strings.Contains(query.Get("keys"), "heartrate") {
			t.Errorf("Expected heartrate in keys, got %s", query.Get("keys"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"time": {"data": [0, 1]}, "altitude": {"data": [500, 501]}}`))
	}))

	raw, err := client.GetStreams(context.Background(), "token1", 101)
	if err != nil {
		t.Fatalf("Failed to get streams: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Expected valid JSON payload: %v", err)
	}
	if _, ok := payload["altitude"]; !ok {
		t.Error("Expected altitude stream in payload")
	}
}

func TestExportGPX(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activities/101/export_gpx" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`<gpx version="1.1"></gpx>`))
	}))

	gpx, err := client.ExportGPX(context.Background(), "token1", 101)
	if err != nil {
		t.Fatalf("Failed to export gpx: %v", err)
	}
	if !strings.HasPrefix(gpx, "<gpx") {
		t.Errorf("Expected gpx document, got %q", gpx)
	}
}

func TestGetNotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Record Not Found"}`))
	}))

	_, err := client.ExportGPX(context.Background(), "token1", 999)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", httpErr.StatusCode)
	}
}

func TestAuthCodeURL(t *testing.T) {
	client := NewClient("client-id", "client-secret", slog.Default())

	u := client.AuthCodeURL("https://example.com/callback", "state123")
	if !strings.Contains(u, "client_id=client-id") {
		t.Errorf("Expected client id in URL, got %s", u)
	}
	if !strings.Contains(u, "state=state123") {
		t.Errorf("Expected state in URL, got %s", u)
	}
	if !strings.Contains(u, "redirect_uri=") {
		t.Errorf("Expected redirect uri in URL, got %s", u)
	}
}
