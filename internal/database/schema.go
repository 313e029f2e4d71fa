package database

// Schema contains all SQL statements for creating tables and indexes
const Schema = `
-- User connections: one row per (user, provider) pair holding OAuth credentials
CREATE TABLE IF NOT EXISTS user_connections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,

    user_id TEXT NOT NULL,
    provider TEXT NOT NULL,

    -- OAuth tokens
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    expires_at INTEGER NOT NULL,  -- Unix timestamp

    -- Provider metadata
    athlete_id INTEGER,
    scope TEXT,

    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_user_connections_user_provider
    ON user_connections(user_id, provider);

-- Activity summaries: one row per (source, provider-assigned activity id)
CREATE TABLE IF NOT EXISTS activities (
    activity_id INTEGER NOT NULL,
    source TEXT NOT NULL DEFAULT 'strava',
    user_id TEXT NOT NULL,

    name TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT '',
    sport_type TEXT NOT NULL DEFAULT '',

    distance REAL NOT NULL DEFAULT 0,
    moving_time INTEGER NOT NULL DEFAULT 0,
    elapsed_time INTEGER NOT NULL DEFAULT 0,
    total_elevation_gain REAL NOT NULL DEFAULT 0,
    average_speed REAL NOT NULL DEFAULT 0,
    max_speed REAL NOT NULL DEFAULT 0,
    average_cadence REAL,

    has_heartrate BOOLEAN NOT NULL DEFAULT 0,
    average_heartrate REAL,
    max_heartrate REAL,

    average_watts REAL,
    max_watts REAL,
    weighted_average_watts REAL,
    kilojoules REAL,

    elev_high REAL,
    elev_low REAL,

    -- Timestamps: UTC, local wall time, and the offset between them
    start_date INTEGER NOT NULL DEFAULT 0,
    start_date_local INTEGER NOT NULL DEFAULT 0,
    utc_offset REAL NOT NULL DEFAULT 0,
    timezone TEXT NOT NULL DEFAULT '',

    start_lat REAL,
    start_lng REAL,
    end_lat REAL,
    end_lng REAL,

    location_city TEXT,
    location_state TEXT,
    location_country TEXT,

    trainer BOOLEAN NOT NULL DEFAULT 0,
    commute BOOLEAN NOT NULL DEFAULT 0,
    manual BOOLEAN NOT NULL DEFAULT 0,

    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,

    PRIMARY KEY (source, activity_id)
);

CREATE INDEX IF NOT EXISTS idx_activities_user_id ON activities(user_id);
CREATE INDEX IF NOT EXISTS idx_activities_user_start ON activities(user_id, start_date DESC);

-- Activity detail rows: per (activity, user) references to downloaded payloads.
-- No foreign key to activities: a detail row may legitimately arrive before its
-- summary during an out-of-order sync.
CREATE TABLE IF NOT EXISTS activity_data (
    activity_id INTEGER NOT NULL,
    user_id TEXT NOT NULL,

    gpx_path TEXT,
    gpx_downloaded_at INTEGER,
    gpx_checksum_sha256 TEXT,
    stream_path TEXT,
    stream_downloaded_at INTEGER,
    stream_checksum_sha256 TEXT,

    -- Derived metrics
    analyzed_at INTEGER,
    uphill_heartrate REAL,
    downhill_heartrate REAL,

    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,

    PRIMARY KEY (activity_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_activity_data_user ON activity_data(user_id);

-- Health metrics: point-in-time user measurements (e.g. max_heartrate)
CREATE TABLE IF NOT EXISTS user_health_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,

    user_id TEXT NOT NULL,
    metric_name TEXT NOT NULL,
    metric_value REAL NOT NULL,
    effective_date TEXT NOT NULL,  -- yyyy-mm-dd

    created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_health_metrics_unique
    ON user_health_metrics(user_id, metric_name, effective_date);

-- Sync leases: per-user mutual exclusion so overlapping sync requests are
-- rejected instead of racing on the connection row and gap list
CREATE TABLE IF NOT EXISTS sync_leases (
    user_id TEXT PRIMARY KEY,
    acquired_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);
`
