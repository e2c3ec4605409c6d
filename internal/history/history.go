// Package history journals optimization runs in a project-local SQLite
// database (.factorytune/history.db). The engine keeps no state between
// runs; history is the CLI recording its own activity.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"factorytune/internal/report"
	"factorytune/pkg/models"
)

// Store wraps the history database connection.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DBPath returns the project-local history database path.
func DBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".factorytune", "history.db")
}

// Open opens and migrates the history database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// OpenProject opens the project-local history database.
func OpenProject(projectRoot string) (*Store, error) {
	return Open(DBPath(projectRoot))
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

// migrate applies all pending schema migrations.
func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
		{2, migrationV2FileResults},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	wall_ms INTEGER NOT NULL DEFAULT 0,
	files INTEGER NOT NULL DEFAULT 0,
	optimized INTEGER NOT NULL DEFAULT 0,
	clean INTEGER NOT NULL DEFAULT 0,
	reverted INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

const migrationV2FileResults = `
CREATE TABLE IF NOT EXISTS file_results (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path TEXT NOT NULL,
	status TEXT NOT NULL,
	granularity TEXT,
	sites INTEGER NOT NULL DEFAULT 0,
	rewrites INTEGER NOT NULL DEFAULT 0,
	applied INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_file_results_run_id ON file_results(run_id);
CREATE INDEX IF NOT EXISTS idx_file_results_path ON file_results(path);
`

// Run is one journaled batch.
type Run struct {
	ID        string
	StartedAt time.Time
	Wall      time.Duration
	Files     int
	Optimized int
	Clean     int
	Reverted  int
	Errors    int
}

// FileResult is one file's outcome inside a run.
type FileResult struct {
	RunID       string
	Path        string
	Status      models.Status
	Granularity models.Granularity
	Sites       int
	Rewrites    int
	Applied     int
	Duration    time.Duration
	Notes       string
}

// Record journals one completed run with its per-file results. The whole
// run goes in atomically.
func (s *Store) Record(ctx context.Context, runID string, reports []models.Report, wall time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := report.Summarize(reports)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, wall_ms, files, optimized, clean, reverted, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, formatTime(time.Now()), wall.Milliseconds(),
		summary.Files, summary.Optimized, summary.Clean, summary.Reverted, summary.Errors)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	for i := range reports {
		r := &reports[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO file_results (run_id, path, status, granularity, sites, rewrites, applied, duration_ms, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, r.Path, string(r.Status), string(r.Granularity),
			len(r.Decisions), r.Rewrites(), r.AppliedRewrites(),
			r.Duration.Milliseconds(), strings.Join(r.Notes, "\n"))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert file result: %w", err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, started_at, wall_ms, files, optimized, clean, reverted, errors
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		var wallMS int64
		if err := rows.Scan(&r.ID, &startedAt, &wallMS, &r.Files, &r.Optimized, &r.Clean, &r.Reverted, &r.Errors); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := parseTime(startedAt); err == nil {
			r.StartedAt = t
		}
		r.Wall = time.Duration(wallMS) * time.Millisecond
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// ResultsForRun returns the per-file results of one run in path order.
func (s *Store) ResultsForRun(ctx context.Context, runID string) ([]FileResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT run_id, path, status, granularity, sites, rewrites, applied, duration_ms, notes
		FROM file_results
		WHERE run_id = ?
		ORDER BY path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query file results: %w", err)
	}
	defer rows.Close()

	var results []FileResult
	for rows.Next() {
		var fr FileResult
		var status, granularity string
		var durationMS int64
		if err := rows.Scan(&fr.RunID, &fr.Path, &status, &granularity, &fr.Sites, &fr.Rewrites, &fr.Applied, &durationMS, &fr.Notes); err != nil {
			return nil, fmt.Errorf("scan file result: %w", err)
		}
		fr.Status = models.Status(status)
		fr.Granularity = models.Granularity(granularity)
		fr.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, fr)
	}

	return results, rows.Err()
}

// Purge deletes runs older than the specified duration, cascading to
// their file results. Returns the number of runs deleted.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := s.conn.ExecContext(ctx, `
		DELETE FROM runs WHERE started_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return count, nil
}

// CountOlderThan returns how many runs started before now minus olderThan.
// Cleanup uses it to preview a purge.
func (s *Store) CountOlderThan(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := formatTime(time.Now().Add(-olderThan))

	var count int
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM runs WHERE started_at < ?
	`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count old runs: %w", err)
	}

	return count, nil
}

// formatTime formats a time.Time for SQLite storage. Nanosecond precision
// keeps run ordering stable for runs started within the same second.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
