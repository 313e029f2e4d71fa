package syncer

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fittrack/internal/apperror"
	"fittrack/internal/content"
	"fittrack/internal/database"
	"fittrack/internal/fetcher"
	"fittrack/internal/importer"
	"fittrack/internal/oauth"
	"fittrack/internal/strava"
)

func testRunner(t *testing.T, handler http.Handler) (*Runner, *database.DB) {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := strava.NewClient("client-id", "client-secret", slog.Default())
	client.SetBaseURL(server.URL)
	client.SetTokenURL(server.URL + "/oauth/token")

	store := content.NewStore(t.TempDir())
	oauthMgr := oauth.NewManager(db, client)
	imp := importer.New(db, client, 50)
	f := fetcher.New(db, client, store)

	return NewRunner(db, oauthMgr, imp, f), db
}

func connectUser(t *testing.T, db *database.DB, userID string) {
	t.Helper()

	err := db.UpsertConnection(&database.Connection{
		UserID:       userID,
		Provider:     "strava",
		AccessToken:  "token",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("Failed to connect user: %v", err)
	}
}

func waitForRun(t *testing.T, r *Runner, runID string) *Status {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status := r.Status(runID)
		if status == nil {
			t.Fatal("Run disappeared")
		}
		if status.Phase == PhaseDone || status.Phase == PhaseError {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Run did not finish in time")
	return nil
}

// syncProvider fakes the provider endpoints a full run touches
func syncProvider(t *testing.T, failStreams map[int64]bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/athlete/activities":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{"id": 101, "name": "Run A", "sport_type": "Run", "distance": 5000, "moving_time": 1800, "start_date": "2026-08-01T06:00:00Z", "start_date_local": "2026-08-01T08:00:00Z"},
				{"id": 102, "name": "Run B", "sport_type": "Run", "distance": 6000, "moving_time": 2000, "start_date": "2026-08-02T06:00:00Z", "start_date_local": "2026-08-02T08:00:00Z"},
				{"id": 103, "name": "Run C", "sport_type": "Run", "distance": 7000, "moving_time": 2200, "start_date": "2026-08-03T06:00:00Z", "start_date_local": "2026-08-03T08:00:00Z"}
			]`))
		case strings.HasSuffix(r.URL.Path, "/streams"):
			var id int64
			if _, err := fmt.Sscanf(r.URL.Path, "/activities/%d/streams", &id); err != nil {
				t.Errorf("Unexpected streams path %s", r.URL.Path)
			}
			if failStreams[id] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"time":{"data":[0,10]},"altitude":{"data":[500,510]}}`))
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestSyncRunHappyPath(t *testing.T) {
	r, db := testRunner(t, syncProvider(t, nil))
	connectUser(t, db, "u1")

	status, err := r.Start("u1")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	if status.RunID == "" || status.Phase == "" {
		t.Fatalf("Expected initial status, got %+v", status)
	}

	final := waitForRun(t, r, status.RunID)
	if final.Phase != PhaseDone {
		t.Fatalf("Expected done, got %+v", final)
	}
	if final.Upserted != 3 || final.Rejected != 0 {
		t.Errorf("Expected 3 upserted, got %+v", final)
	}
	if final.Processed != 3 || final.Failed != 0 {
		t.Errorf("Expected 3 streams processed, got %+v", final)
	}
	if final.FinishedAt == nil {
		t.Error("Expected finished timestamp")
	}

	// All stream gaps are closed
	missing, err := db.ListMissingStreams("u1", 0)
	if err != nil {
		t.Fatalf("Failed to list missing streams: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("Expected no missing streams, got %v", missing)
	}

	// The lease is released
	acquired, err := db.AcquireSyncLease("u1", time.Minute)
	if err != nil || !acquired {
		t.Errorf("Expected lease released after run: acquired=%v err=%v", acquired, err)
	}
}

func TestSyncRunIsolatesItemFailures(t *testing.T) {
	r, db := testRunner(t, syncProvider(t, map[int64]bool{102: true}))
	connectUser(t, db, "u1")

	status, err := r.Start("u1")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	final := waitForRun(t, r, status.RunID)

	// One failing item does not error the run
	if final.Phase != PhaseDone {
		t.Fatalf("Expected done, got %+v", final)
	}
	if final.Processed != 2 || final.Failed != 1 {
		t.Errorf("Expected 2 processed and 1 failed, got %+v", final)
	}

	// The failed activity's gap stays open for the next run
	missing, err := db.ListMissingStreams("u1", 0)
	if err != nil {
		t.Fatalf("Failed to list missing streams: %v", err)
	}
	if len(missing) != 1 || missing[0] != 102 {
		t.Errorf("Expected activity 102 still missing, got %v", missing)
	}
}

func TestSyncRunNotConnected(t *testing.T) {
	r, db := testRunner(t, syncProvider(t, nil))

	status, err := r.Start("u1")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	final := waitForRun(t, r, status.RunID)
	if final.Phase != PhaseError {
		t.Fatalf("Expected error phase, got %+v", final)
	}
	if !strings.Contains(final.Error, "not connected") {
		t.Errorf("Expected not connected error, got %q", final.Error)
	}

	// The lease is released even on failure
	acquired, err := db.AcquireSyncLease("u1", time.Minute)
	if err != nil || !acquired {
		t.Errorf("Expected lease released after failed run: acquired=%v err=%v", acquired, err)
	}
}

func TestSyncRunRejectsConcurrentStart(t *testing.T) {
	r, db := testRunner(t, syncProvider(t, nil))
	connectUser(t, db, "u1")

	// Hold the lease as if a run were live
	acquired, err := db.AcquireSyncLease("u1", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("Failed to pre-acquire lease: %v", err)
	}

	_, err = r.Start("u1")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Expected conflict error, got %v", err)
	}
}

func TestFinishedRunsAreEvicted(t *testing.T) {
	r, db := testRunner(t, syncProvider(t, nil))
	connectUser(t, db, "u1")

	status, err := r.Start("u1")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	waitForRun(t, r, status.RunID)

	// Age the finished run past the retention window
	r.mu.Lock()
	old := time.Now().Add(-finishedRunTTL - time.Minute)
	r.runs[status.RunID].FinishedAt = &old
	r.mu.Unlock()

	next, err := r.Start("u1")
	if err != nil {
		t.Fatalf("Failed to start second run: %v", err)
	}
	defer waitForRun(t, r, next.RunID)

	if got := r.Status(status.RunID); got != nil {
		t.Errorf("Expected aged run evicted, got %+v", got)
	}
	if r.Status(next.RunID) == nil {
		t.Error("Expected live run to survive eviction")
	}
}

func TestStatusUnknownRun(t *testing.T) {
	r, _ := testRunner(t, syncProvider(t, nil))

	if status := r.Status("bogus"); status != nil {
		t.Errorf("Expected nil for unknown run, got %+v", status)
	}
}
