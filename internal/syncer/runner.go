package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"fittrack/internal/apperror"
	"fittrack/internal/database"
	"fittrack/internal/fetcher"
	"fittrack/internal/importer"
	"fittrack/internal/metrics"
	"fittrack/internal/oauth"
)

// Run phases, in order. A run ends in done or error.
const (
	PhaseMetadata = "metadata"
	PhaseDetail   = "detail"
	PhaseDone     = "done"
	PhaseError    = "error"
)

// leaseTTL bounds how long a crashed run can block its user
const leaseTTL = 15 * time.Minute

// finishedRunTTL is how long a finished run stays pollable before its status
// is evicted from the registry
const finishedRunTTL = time.Hour

// Status is a point-in-time snapshot of one sync run
type Status struct {
	RunID  string `json:"run_id"`
	UserID string `json:"user_id"`
	Phase  string `json:"phase"`

	Upserted  int `json:"upserted"`
	Rejected  int `json:"rejected"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`

	Error string `json:"error,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Runner orchestrates sync runs: import recent activity summaries, then fill
// stream gaps one activity at a time. At most one run per user is live.
type Runner struct {
	db       *database.DB
	oauth    *oauth.Manager
	importer *importer.Importer
	fetcher  *fetcher.Fetcher
	logger   *slog.Logger

	mu   sync.Mutex
	runs map[string]*Status
}

// NewRunner creates a sync runner
func NewRunner(db *database.DB, oauthMgr *oauth.Manager, imp *importer.Importer, f *fetcher.Fetcher) *Runner {
	return &Runner{
		db:       db,
		oauth:    oauthMgr,
		importer: imp,
		fetcher:  f,
		logger:   slog.Default(),
		runs:     make(map[string]*Status),
	}
}

// Start begins a sync run for the user and returns its initial status.
// A second start while a run is live fails with a conflict; the caller should
// poll the existing run instead.
func (r *Runner) Start(userID string) (*Status, error) {
	acquired, err := r.db.AcquireSyncLease(userID, leaseTTL)
	if err != nil {
		return nil, apperror.Wrap(apperror.ErrPersistenceFailed, err)
	}
	if !acquired {
		return nil, apperror.New(apperror.ErrConflict, "sync already running for user")
	}

	status := &Status{
		RunID:     xid.New().String(),
		UserID:    userID,
		Phase:     PhaseMetadata,
		StartedAt: time.Now(),
	}

	r.mu.Lock()
	r.evictFinished(time.Now())
	r.runs[status.RunID] = status
	r.mu.Unlock()

	// The run outlives the HTTP request that started it
	go r.run(context.Background(), status.RunID, userID)

	return r.snapshot(status.RunID), nil
}

// Status returns a snapshot of a run, or nil when the run id is unknown
func (r *Runner) Status(runID string) *Status {
	return r.snapshot(runID)
}

func (r *Runner) run(ctx context.Context, runID, userID string) {
	start := time.Now()
	defer r.db.ReleaseSyncLease(userID)

	r.logger.Info("Sync run started", "run_id", runID, "user_id", userID)

	token, err := r.oauth.ValidAccessToken(ctx, userID)
	if err != nil {
		r.finish(runID, start, err)
		return
	}

	result, err := r.importer.ImportRecent(ctx, userID, token)
	if err != nil {
		r.finish(runID, start, err)
		return
	}

	r.update(runID, func(s *Status) {
		s.Upserted = result.Upserted
		s.Rejected = result.Rejected
		s.Phase = PhaseDetail
	})

	missing, err := r.db.ListMissingStreams(userID, 0)
	if err != nil {
		r.finish(runID, start, apperror.Wrap(apperror.ErrPersistenceFailed, err))
		return
	}

	// Strictly sequential: the provider rate limit budget is shared and a
	// burst of parallel downloads would exhaust it
	for _, activityID := range missing {
		if _, _, err := r.fetcher.FetchStream(ctx, userID, token, activityID); err != nil {
			r.logger.Error("Stream fetch failed", "run_id", runID, "activity_id", activityID, "error", err)
			r.update(runID, func(s *Status) { s.Failed++ })
			continue
		}
		r.update(runID, func(s *Status) { s.Processed++ })
	}

	r.finish(runID, start, nil)
}

// finish marks a run done or errored. One fetch failure does not error the
// run; only a phase-level failure does.
func (r *Runner) finish(runID string, start time.Time, err error) {
	now := time.Now()
	result := metrics.ResultSuccess

	r.update(runID, func(s *Status) {
		s.FinishedAt = &now
		if err != nil {
			s.Phase = PhaseError
			s.Error = err.Error()
		} else {
			s.Phase = PhaseDone
		}
	})

	if err != nil {
		result = metrics.ResultError
		r.logger.Error("Sync run failed", "run_id", runID, "error", err)
	} else {
		r.logger.Info("Sync run finished", "run_id", runID, "duration_ms", now.Sub(start).Milliseconds())
	}

	metrics.SyncRunsTotal.WithLabelValues(result).Inc()
	metrics.SyncRunDuration.Observe(now.Sub(start).Seconds())
}

func (r *Runner) update(runID string, fn func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.runs[runID]; ok {
		fn(s)
	}
}

// evictFinished drops runs that finished more than finishedRunTTL ago so the
// registry does not grow for the life of the process. Caller holds r.mu.
func (r *Runner) evictFinished(now time.Time) {
	for id, s := range r.runs {
		if s.FinishedAt != nil && now.Sub(*s.FinishedAt) > finishedRunTTL {
			delete(r.runs, id)
		}
	}
}

func (r *Runner) snapshot(runID string) *Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.runs[runID]
	if !ok {
		return nil
	}
	copied := *s
	return &copied
}
