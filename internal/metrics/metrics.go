package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// Detail kinds
	KindTrack  = "track"
	KindStream = "stream"

	// Results
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"

	// HTTP endpoints
	EndpointOAuthStart    = "oauth_start"
	EndpointOAuthCallback = "oauth_callback"
	EndpointSyncStart     = "sync_start"
	EndpointSyncStatus    = "sync_status"
	EndpointActivities    = "activities"
	EndpointDetails       = "details"
	EndpointHealthMetrics = "health_metrics"
	EndpointAggregates    = "aggregates"
	EndpointHealth        = "health"

	// Strava API operations
	OpExchangeCode   = "exchange_code"
	OpRefreshToken   = "refresh_token"
	OpListActivities = "list_activities"
	OpGetStreams     = "get_streams"
	OpExportGPX      = "export_gpx"

	// Database operations
	DBOpUpsertConnection       = "upsert_connection"
	DBOpGetConnection          = "get_connection"
	DBOpUpdateConnectionTokens = "update_connection_tokens"
	DBOpUpsertActivities       = "upsert_activities"
	DBOpInsertManualActivity   = "insert_manual_activity"
	DBOpGetActivity            = "get_activity"
	DBOpListActivities         = "list_activities"
	DBOpUpsertTrackDetail      = "upsert_track_detail"
	DBOpUpsertStreamDetail     = "upsert_stream_detail"
	DBOpUpdateDerivedMetrics   = "update_derived_metrics"
	DBOpGetActivityDetail      = "get_activity_detail"
	DBOpListMissingTracks      = "list_missing_tracks"
	DBOpListMissingStreams     = "list_missing_streams"
	DBOpUpsertHealthMetric     = "upsert_health_metric"
	DBOpGetHealthMetric        = "get_health_metric"
	DBOpListHealthMetrics      = "list_health_metrics"
	DBOpListWeeklyAggregates   = "list_weekly_aggregates"
	DBOpAcquireSyncLease       = "acquire_sync_lease"
	DBOpReleaseSyncLease       = "release_sync_lease"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Strava API Metrics
var (
	StravaAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_api_requests_total",
			Help: "Total number of Strava API requests",
		},
		[]string{"operation", "status_code"},
	)

	StravaAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strava_api_request_duration_seconds",
			Help:    "Strava API request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation", "status_code"},
	)
)

// Database Metrics
var (
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	DBOperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation"},
	)
)

// Sync Metrics
var (
	ActivitiesImportedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activities_imported_total",
			Help: "Total number of activity summaries upserted from the provider",
		},
	)

	ActivitiesRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activities_rejected_total",
			Help: "Total number of provider records rejected during import",
		},
	)

	DetailFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detail_fetches_total",
			Help: "Total number of activity detail downloads by kind and result",
		},
		[]string{"kind", "result"},
	)

	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync runs by final result",
		},
		[]string{"result"},
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "End-to-end sync run duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	MissingDetailsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "missing_details",
			Help: "Number of activities with no downloaded detail payload by kind",
		},
		[]string{"kind"},
	)
)
