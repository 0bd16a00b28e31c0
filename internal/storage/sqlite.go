package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lettse/littlemovers/internal/types"
)

// ResultsDB mirrors the cumulative CSV stores into a queryable SQLite
// database. Rows are stamped with the batch run id so multi-batch
// studies can be filtered per run.
type ResultsDB struct {
	db    *sql.DB
	runID string
}

// OpenResultsDB opens (creating if needed) the results database at
// dbPath and registers a new run.
func OpenResultsDB(dbPath string) (*ResultsDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	r := &ResultsDB{db: db, runID: uuid.NewString()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`INSERT INTO runs (id, started_at) VALUES (?, ?)`, r.runID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering run: %w", err)
	}
	return r, nil
}

// RunID returns the identifier of the current batch run.
func (r *ResultsDB) RunID() string {
	return r.runID
}

// Close closes the underlying database handle.
func (r *ResultsDB) Close() error {
	return r.db.Close()
}

func (r *ResultsDB) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wear_intervals (
			run_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			wear_start TEXT NOT NULL,
			wear_end TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wear_daily_summary (
			subject_id TEXT NOT NULL,
			date TEXT NOT NULL,
			wear_minutes REAL NOT NULL,
			non_wear_minutes REAL NOT NULL,
			run_id TEXT NOT NULL,
			PRIMARY KEY (subject_id, date, run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS activity_daily_summary (
			subject_id TEXT NOT NULL,
			date TEXT NOT NULL,
			label TEXT NOT NULL,
			minutes REAL NOT NULL,
			run_id TEXT NOT NULL,
			PRIMARY KEY (subject_id, date, label, run_id)
		)`,
	}
	for _, stmt := range schema {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating results schema: %w", err)
		}
	}
	return nil
}

// StoreRun persists one file's worth of pending rows. In replace mode
// keys conflict-update across runs; in append mode every run keeps its
// own rows.
func (r *ResultsDB) StoreRun(intervals []types.WearInterval, wear []types.DailyWearSummary, activity []types.DailyActivitySummary, mode WriteMode) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, iv := range intervals {
		_, err := tx.Exec(`INSERT INTO wear_intervals (run_id, subject_id, wear_start, wear_end) VALUES (?, ?, ?, ?)`,
			r.runID, iv.SubjectID, iv.Start.UTC().Format(timestampLayout), iv.End.UTC().Format(timestampLayout))
		if err != nil {
			return fmt.Errorf("storing wear interval: %w", err)
		}
	}

	wearKey := r.runID
	if mode == ModeReplace {
		// A single synthetic run key makes the primary key collapse
		// duplicates from reruns.
		wearKey = "latest"
	}
	for _, row := range wear {
		_, err := tx.Exec(`INSERT INTO wear_daily_summary (subject_id, date, wear_minutes, non_wear_minutes, run_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (subject_id, date, run_id) DO UPDATE SET
				wear_minutes = excluded.wear_minutes,
				non_wear_minutes = excluded.non_wear_minutes`,
			row.SubjectID, row.Date.Format(dateLayout), row.WearMinutes, row.NonWearMinutes, wearKey)
		if err != nil {
			return fmt.Errorf("storing wear summary: %w", err)
		}
	}

	for _, row := range activity {
		for label, minutes := range row.Minutes {
			_, err := tx.Exec(`INSERT INTO activity_daily_summary (subject_id, date, label, minutes, run_id)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (subject_id, date, label, run_id) DO UPDATE SET
					minutes = excluded.minutes`,
				row.SubjectID, row.Date.Format(dateLayout), label, minutes, wearKey)
			if err != nil {
				return fmt.Errorf("storing activity summary: %w", err)
			}
		}
	}

	return tx.Commit()
}
