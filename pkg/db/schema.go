package db

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;

-- Runs: one row per update invocation
CREATE TABLE IF NOT EXISTS runs (
    run_id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    config_path TEXT NOT NULL,
    readme_path TEXT NOT NULL,
    section_title TEXT NOT NULL,
    plugin_count INTEGER NOT NULL,
    success_count INTEGER DEFAULT 0,
    failed_count INTEGER DEFAULT 0,
    dry_run BOOLEAN DEFAULT 0
);

-- Plugin snapshots: fetched statistics per plugin per run
CREATE TABLE IF NOT EXISTS plugin_snapshots (
    snapshot_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL,
    plugin_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    success BOOLEAN NOT NULL,
    name TEXT,
    installs INTEGER,
    forks INTEGER,
    error_message TEXT,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snapshots_run ON plugin_snapshots(run_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_plugin ON plugin_snapshots(plugin_id);

-- Image artifacts: files written by the image downloader
CREATE TABLE IF NOT EXISTS image_artifacts (
    artifact_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL,
    plugin_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    source_url TEXT NOT NULL,
    file_path TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    size_bytes INTEGER,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_artifacts_run ON image_artifacts(run_id);
CREATE INDEX IF NOT EXISTS idx_artifacts_plugin ON image_artifacts(plugin_id);
`
