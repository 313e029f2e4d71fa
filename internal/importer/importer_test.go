package importer

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"fittrack/internal/database"
	"fittrack/internal/strava"
)

func testImporter(t *testing.T, response string) (*Importer, *database.DB) {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	client := strava.NewClient("client-id", "client-secret", slog.Default())
	client.SetBaseURL(server.URL)

	return New(db, client, 50), db
}

func TestImportRecent(t *testing.T) {
	imp, db := testImporter(t, `[
		{"id": 101, "name": "Morning Run", "type": "Run", "sport_type": "Run",
		 "distance": 5000, "moving_time": 1800, "elapsed_time": 1900,
		 "total_elevation_gain": 120, "has_heartrate": true,
		 "average_heartrate": 150.5, "max_heartrate": 172,
		 "start_date": "2026-08-01T06:00:00Z", "start_date_local": "2026-08-01T08:00:00Z",
		 "utc_offset": 7200, "timezone": "(GMT+01:00) Europe/Vienna",
		 "start_latlng": [47.2, 11.3], "end_latlng": [47.3, 11.4]},
		{"id": 102, "name": "Lunch Ride", "type": "Ride", "sport_type": "Ride",
		 "distance": 30000, "moving_time": 4000}
	]`)

	result, err := imp.ImportRecent(context.Background(), "u1", "token")
	if err != nil {
		t.Fatalf("Failed to import: %v", err)
	}
	if result.Upserted != 2 || result.Rejected != 0 {
		t.Errorf("Expected 2 upserted, got %+v", result)
	}

	a, err := db.GetActivity("u1", 101)
	if err != nil {
		t.Fatalf("Failed to get activity: %v", err)
	}
	if a == nil {
		t.Fatal("Expected activity 101 to be stored")
	}
	if a.Name != "Morning Run" || a.Distance != 5000 {
		t.Errorf("Unexpected activity: %+v", a)
	}
	if a.AverageHeartrate == nil || *a.AverageHeartrate != 150.5 {
		t.Errorf("Expected average heartrate 150.5, got %v", a.AverageHeartrate)
	}
	if a.StartDate != 1785564000 {
		t.Errorf("Expected parsed start date, got %d", a.StartDate)
	}
	if a.StartLat == nil || *a.StartLat != 47.2 {
		t.Errorf("Expected start latitude, got %v", a.StartLat)
	}
	if a.Source != database.SourceStrava {
		t.Errorf("Expected strava source, got %s", a.Source)
	}

	// Optional fields absent from the ride stay null
	ride, err := db.GetActivity("u1", 102)
	if err != nil || ride == nil {
		t.Fatalf("Expected activity 102: %v", err)
	}
	if ride.AverageHeartrate != nil || ride.StartLat != nil {
		t.Errorf("Expected absent optionals to be nil, got %+v", ride)
	}
}

func TestImportRejectsRecordsWithoutID(t *testing.T) {
	imp, db := testImporter(t, `[
		{"id": 101, "name": "Run", "sport_type": "Run", "distance": 5000, "moving_time": 1800},
		{"name": "Broken", "sport_type": "Run", "distance": 1000, "moving_time": 600},
		{"id": 103, "name": "Ride", "sport_type": "Ride", "distance": 20000, "moving_time": 3600}
	]`)

	result, err := imp.ImportRecent(context.Background(), "u1", "token")
	if err != nil {
		t.Fatalf("Failed to import: %v", err)
	}

	// The malformed record is counted and skipped, not fatal
	if result.Upserted != 2 {
		t.Errorf("Expected 2 upserted, got %d", result.Upserted)
	}
	if result.Rejected != 1 {
		t.Errorf("Expected 1 rejected, got %d", result.Rejected)
	}

	activities, err := db.ListActivitiesByUser("u1", 0, 0)
	if err != nil {
		t.Fatalf("Failed to list activities: %v", err)
	}
	if len(activities) != 2 {
		t.Errorf("Expected 2 stored activities, got %d", len(activities))
	}
}

func TestImportReimportIsIdempotent(t *testing.T) {
	imp, db := testImporter(t, `[
		{"id": 101, "name": "Run", "sport_type": "Run", "distance": 5000, "moving_time": 1800}
	]`)

	for i := 0; i < 2; i++ {
		if _, err := imp.ImportRecent(context.Background(), "u1", "token"); err != nil {
			t.Fatalf("Failed to import: %v", err)
		}
	}

	activities, err := db.ListActivitiesByUser("u1", 0, 0)
	if err != nil {
		t.Fatalf("Failed to list activities: %v", err)
	}
	if len(activities) != 1 {
		t.Errorf("Expected 1 activity after reimport, got %d", len(activities))
	}
}

func TestImportProviderError(t *testing.T) {
	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := strava.NewClient("client-id", "client-secret", slog.Default())
	client.SetBaseURL(server.URL)

	imp := New(db, client, 50)
	if _, err := imp.ImportRecent(context.Background(), "u1", "bad-token"); err == nil {
		t.Fatal("Expected error from provider failure")
	}
}
