package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dtnitsch/plugin-stats/models"
)

// Run represents one update invocation
type Run struct {
	RunID        int64     `yaml:"run_id"`
	StartedAt    time.Time `yaml:"started_at"`
	ConfigPath   string    `yaml:"config_path"`
	ReadmePath   string    `yaml:"readme_path"`
	SectionTitle string    `yaml:"section_title"`
	PluginCount  int       `yaml:"plugin_count"`
	SuccessCount int       `yaml:"success_count"`
	FailedCount  int       `yaml:"failed_count"`
	DryRun       bool      `yaml:"dry_run"`
}

// Snapshot is the outcome for one plugin within a run
type Snapshot struct {
	RunID        int64     `yaml:"run_id"`
	RunStartedAt time.Time `yaml:"run_started_at,omitempty"`
	PluginID     string    `yaml:"plugin_id"`
	Position     int       `yaml:"position"`
	Success      bool      `yaml:"success"`
	Name         string    `yaml:"name,omitempty"`
	Installs     int64     `yaml:"installs"`
	Forks        int64     `yaml:"forks"`
	ErrorMessage string    `yaml:"error,omitempty"`
}

// CreateRun inserts a new run and returns its ID
func (db *DB) CreateRun(configPath, readmePath, sectionTitle string, pluginCount int, dryRun bool) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO runs (config_path, readme_path, section_title, plugin_count, dry_run)
		VALUES (?, ?, ?, ?, ?)
	`, configPath, readmePath, sectionTitle, pluginCount, dryRun)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	return runID, nil
}

// FinishRun stores the final success and failed counts for a run
func (db *DB) FinishRun(runID int64, successCount, failedCount int) error {
	_, err := db.Exec(`
		UPDATE runs
		SET success_count = ?, failed_count = ?
		WHERE run_id = ?
	`, successCount, failedCount, runID)
	if err != nil {
		return fmt.Errorf("failed to update run stats: %w", err)
	}
	return nil
}

// RecordSnapshot stores the fetch outcome for one plugin. A nil record is a failure.
func (db *DB) RecordSnapshot(runID int64, position int, pluginID string, record *models.PluginRecord, fetchErr error) error {
	var (
		name            sql.NullString
		installs, forks sql.NullInt64
		errMsg          sql.NullString
	)
	success := record != nil
	if success {
		name = NewNullString(record.Name)
		installs = sql.NullInt64{Int64: record.Stats.Installs, Valid: true}
		forks = sql.NullInt64{Int64: record.Stats.Forks, Valid: true}
	} else if fetchErr != nil {
		errMsg = NewNullString(fetchErr.Error())
	}

	_, err := db.Exec(`
		INSERT INTO plugin_snapshots (run_id, plugin_id, position, success, name, installs, forks, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, pluginID, position, success, name, installs, forks, errMsg)
	if err != nil {
		return fmt.Errorf("failed to record snapshot for %s: %w", pluginID, err)
	}
	return nil
}

// RecordImageArtifact stores metadata about an image written to disk
func (db *DB) RecordImageArtifact(runID int64, a models.ImageArtifact) error {
	_, err := db.Exec(`
		INSERT INTO image_artifacts (run_id, plugin_id, kind, source_url, file_path, content_hash, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, a.PluginID, string(a.Kind), a.SourceURL, a.FilePath, a.ContentHash, a.SizeBytes)
	if err != nil {
		return fmt.Errorf("failed to record image artifact: %w", err)
	}
	return nil
}

// GetRun retrieves a run by its ID
func (db *DB) GetRun(runID int64) (*Run, error) {
	var r Run
	err := db.QueryRow(`
		SELECT run_id, started_at, config_path, readme_path, section_title,
		       plugin_count, success_count, failed_count, dry_run
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(&r.RunID, &r.StartedAt, &r.ConfigPath, &r.ReadmePath, &r.SectionTitle,
		&r.PluginCount, &r.SuccessCount, &r.FailedCount, &r.DryRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &r, nil
}

// ListRuns retrieves runs, most recent first
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT run_id, started_at, config_path, readme_path, section_title,
		       plugin_count, success_count, failed_count, dry_run
		FROM runs
		ORDER BY run_id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.ConfigPath, &r.ReadmePath, &r.SectionTitle,
			&r.PluginCount, &r.SuccessCount, &r.FailedCount, &r.DryRun); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunSnapshots retrieves plugin snapshots for a run in config order
func (db *DB) GetRunSnapshots(runID int64) ([]Snapshot, error) {
	return db.querySnapshots(`
		SELECT s.run_id, r.started_at, s.plugin_id, s.position, s.success,
		       s.name, s.installs, s.forks, s.error_message
		FROM plugin_snapshots s
		JOIN runs r ON r.run_id = s.run_id
		WHERE s.run_id = ?
		ORDER BY s.position
	`, runID)
}

// PluginHistory retrieves successful snapshots for one plugin, most recent first
func (db *DB) PluginHistory(pluginID string, limit int) ([]Snapshot, error) {
	query := `
		SELECT s.run_id, r.started_at, s.plugin_id, s.position, s.success,
		       s.name, s.installs, s.forks, s.error_message
		FROM plugin_snapshots s
		JOIN runs r ON r.run_id = s.run_id
		WHERE s.plugin_id = ? AND s.success = 1
		ORDER BY s.run_id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return db.querySnapshots(query, pluginID)
}

// CountImageArtifacts returns how many images a run wrote
func (db *DB) CountImageArtifacts(runID int64) (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM image_artifacts WHERE run_id = ?", runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count image artifacts: %w", err)
	}
	return n, nil
}

func (db *DB) querySnapshots(query string, args ...interface{}) ([]Snapshot, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			s               Snapshot
			name, errMsg    sql.NullString
			installs, forks sql.NullInt64
		)
		if err := rows.Scan(&s.RunID, &s.RunStartedAt, &s.PluginID, &s.Position, &s.Success,
			&name, &installs, &forks, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Name = name.String
		s.Installs = installs.Int64
		s.Forks = forks.Int64
		s.ErrorMessage = errMsg.String
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// NewNullString returns an invalid NullString for empty input
func NewNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
