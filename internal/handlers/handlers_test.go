package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"fittrack/internal/auth"
	"fittrack/internal/database"
)

func testRouter(t *testing.T) (*chi.Mux, *database.DB) {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	activitiesHandler := NewActivitiesHandler(db)
	healthMetricsHandler := NewHealthMetricsHandler(db)
	aggregatesHandler := NewAggregatesHandler(db)
	healthHandler := NewHealthHandler(db)

	r := chi.NewRouter()
	r.Get("/api/activities", activitiesHandler.List)
	r.Post("/api/activities", activitiesHandler.Create)
	r.Get("/api/activities/{id}", activitiesHandler.Get)
	r.Get("/api/health-metrics/max-heartrate", healthMetricsHandler.GetMaxHeartrate)
	r.Post("/api/health-metrics/max-heartrate", healthMetricsHandler.SetMaxHeartrate)
	r.Get("/api/aggregates/weekly", aggregatesHandler.Weekly)
	r.Get("/health", healthHandler.Check)

	return r, db
}

func doRequest(router *chi.Mux, method, path, userID, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	rec := doRequest(router, "GET", "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestActivitiesEndpoints(t *testing.T) {
	router, db := testRouter(t)

	err := db.UpsertActivities([]*database.Activity{
		{ActivityID: 101, Source: database.SourceStrava, UserID: "u1", Name: "Run", SportType: "Run", Distance: 5000, MovingTime: 1800, StartDate: 1700000000},
	})
	if err != nil {
		t.Fatalf("Failed to seed activity: %v", err)
	}

	t.Run("List", func(t *testing.T) {
		rec := doRequest(router, "GET", "/api/activities", "u1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
		}

		var activities []map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &activities); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(activities) != 1 {
			t.Errorf("Expected 1 activity, got %d", len(activities))
		}
	})

	t.Run("ListEmptyForOtherUser", func(t *testing.T) {
		rec := doRequest(router, "GET", "/api/activities", "u2", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("Expected empty array, got %s", got)
		}
	})

	t.Run("Get", func(t *testing.T) {
		rec := doRequest(router, "GET", "/api/activities/101", "u1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		rec := doRequest(router, "GET", "/api/activities/999", "u1", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("GetInvalidID", func(t *testing.T) {
		rec := doRequest(router, "GET", "/api/activities/abc", "u1", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("CreateManual", func(t *testing.T) {
		rec := doRequest(router, "POST", "/api/activities", "u1", `{
			"name": "Gym Session",
			"sport_type": "Workout",
			"moving_time": 3600,
			"distance": 0,
			"start_date": "2026-08-10T18:00:00Z"
		}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("CreateValidation", func(t *testing.T) {
		cases := []string{
			`{"sport_type": "Workout", "moving_time": 3600}`,            // no name
			`{"name": "X", "moving_time": 3600}`,                        // no sport type
			`{"name": "X", "sport_type": "Run", "moving_time": 0}`,      // no duration
			`{"name": "X", "sport_type": "Run", "moving_time": 60, "distance": -5}`,
			`not json`,
		}
		for _, body := range cases {
			rec := doRequest(router, "POST", "/api/activities", "u1", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400 for %s, got %d", body, rec.Code)
			}
		}
	})
}

func TestHealthMetricsEndpoints(t *testing.T) {
	router, _ := testRouter(t)

	t.Run("GetBeforeSet", func(t *testing.T) {
		rec := doRequest(router, "GET", "/api/health-metrics/max-heartrate", "u1", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		rec := doRequest(router, "POST", "/api/health-metrics/max-heartrate", "u1", `{"value": 185, "effective_date": "2026-08-01"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
		}

		rec = doRequest(router, "GET", "/api/health-metrics/max-heartrate", "u1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp["value"] != 185.0 {
			t.Errorf("Expected value 185, got %v", resp["value"])
		}
	})

	t.Run("SetValidation", func(t *testing.T) {
		for _, body := range []string{
			`{"value": 20}`,
			`{"value": 400}`,
			`{"value": 180, "effective_date": "bad-date"}`,
		} {
			rec := doRequest(router, "POST", "/api/health-metrics/max-heartrate", "u1", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400 for %s, got %d", body, rec.Code)
			}
		}
	})
}

func TestWeeklyAggregatesEndpoint(t *testing.T) {
	router, db := testRouter(t)

	err := db.UpsertActivities([]*database.Activity{
		{ActivityID: 101, Source: database.SourceStrava, UserID: "u1", Name: "Run", SportType: "Run", Distance: 5000, MovingTime: 1800, StartDate: 1700000000, StartDateLocal: 1700000000},
		{ActivityID: 102, Source: database.SourceStrava, UserID: "u1", Name: "Ride", SportType: "Ride", Distance: 20000, MovingTime: 3600, StartDate: 1700003600, StartDateLocal: 1700003600},
	})
	if err != nil {
		t.Fatalf("Failed to seed activities: %v", err)
	}

	rec := doRequest(router, "GET", "/api/aggregates/weekly", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var weeks []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &weeks); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(weeks) != 1 {
		t.Fatalf("Expected 1 week, got %d", len(weeks))
	}
	if weeks[0]["activity_count"] != 2.0 {
		t.Errorf("Expected 2 activities, got %v", weeks[0]["activity_count"])
	}
	if weeks[0]["total_distance"] != 25000.0 {
		t.Errorf("Expected total distance 25000, got %v", weeks[0]["total_distance"])
	}
}
