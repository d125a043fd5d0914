package datastore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// RunDB wraps the SQL database connection and provides methods for
// interacting with update run history.
type RunDB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// UpdateRunEntry represents a record in the update_runs table.
type UpdateRunEntry struct {
	ID              int64
	RunStartTime    time.Time
	RunEndTime      sql.NullTime
	Status          string
	Trigger         string
	ManifestVersion sql.NullString
	FilesPlanned    int
	FilesApplied    int
	RequiresRestart bool
	ErrorSummary    sql.NullString
}

// NewRunDB initializes a new RunDB connection and ensures the schema is set up.
func NewRunDB(dataSourceName string, logger zerolog.Logger) (*RunDB, error) {
	logger.Info().Str("db_path", dataSourceName).Msg("Initializing update run database connection")

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run database directory %s: %w", dbDir, err)
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", dataSourceName, err)
	}

	db := &RunDB{
		db:     dbInstance,
		logger: logger.With().Str("component", "RunDB").Logger(),
	}

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (d *RunDB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// InitSchema creates the update_runs table if it doesn't already exist.
func (d *RunDB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS update_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_start_time DATETIME NOT NULL,
		run_end_time DATETIME,
		status TEXT NOT NULL,
		run_trigger TEXT NOT NULL,
		manifest_version TEXT,
		files_planned INTEGER DEFAULT 0,
		files_applied INTEGER DEFAULT 0,
		requires_restart INTEGER DEFAULT 0,
		error_summary TEXT
	);
	`
	if _, err := d.db.Exec(query); err != nil {
		d.logger.Error().Err(err).Msg("Failed to initialize run database schema")
		return err
	}
	return nil
}

// RecordRunStart inserts a new record with status "started" and returns
// the ID of the newly inserted row.
func (d *RunDB) RecordRunStart(trigger string, startTime time.Time) (int64, error) {
	query := `INSERT INTO update_runs (run_start_time, status, run_trigger) VALUES (?, ?, ?)`
	result, err := d.db.Exec(query, startTime, "started", trigger)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run start record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	d.logger.Debug().Int64("run_id", id).Str("trigger", trigger).Msg("Recorded update run start")
	return id, nil
}

// CompleteRun updates an existing run record with its final outcome.
func (d *RunDB) CompleteRun(runID int64, endTime time.Time, status string, manifestVersion string, filesPlanned, filesApplied int, requiresRestart bool, errorSummary string) error {
	query := `UPDATE update_runs SET run_end_time = ?, status = ?, manifest_version = ?, files_planned = ?, files_applied = ?, requires_restart = ?, error_summary = ? WHERE id = ?`
	_, err := d.db.Exec(query,
		endTime,
		status,
		sql.NullString{String: manifestVersion, Valid: manifestVersion != ""},
		filesPlanned,
		filesApplied,
		requiresRestart,
		sql.NullString{String: errorSummary, Valid: errorSummary != ""},
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run completion for ID %d: %w", runID, err)
	}
	d.logger.Info().Int64("run_id", runID).Str("status", status).Msg("Recorded update run completion")
	return nil
}

// GetLastSuccessTime retrieves the start time of the most recent run that
// applied cleanly (completed or restart_required).
func (d *RunDB) GetLastSuccessTime() (*time.Time, error) {
	query := `SELECT run_start_time FROM update_runs WHERE status IN ('completed', 'restart_required') ORDER BY run_start_time DESC LIMIT 1`
	var startTime time.Time
	err := d.db.QueryRow(query).Scan(&startTime)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to query last successful run time: %w", err)
	}
	return &startTime, nil
}

// ListRecentRuns returns the most recent runs, newest first.
func (d *RunDB) ListRecentRuns(limit int) ([]UpdateRunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, run_start_time, run_end_time, status, run_trigger, manifest_version, files_planned, files_applied, requires_restart, error_summary
	FROM update_runs ORDER BY run_start_time DESC, id DESC LIMIT ?`

	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}
	defer rows.Close()

	var entries []UpdateRunEntry
	for rows.Next() {
		var entry UpdateRunEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.RunStartTime,
			&entry.RunEndTime,
			&entry.Status,
			&entry.Trigger,
			&entry.ManifestVersion,
			&entry.FilesPlanned,
			&entry.FilesApplied,
			&entry.RequiresRestart,
			&entry.ErrorSummary,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run entries: %w", err)
	}
	return entries, nil
}
