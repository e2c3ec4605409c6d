// Package baseline records pristine per-file test runs: whether each spec
// file passed before any optimization was attempted, and how long it took.
package baseline

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// timeoutMultiplier scales the baseline runtime to leave headroom for
	// variance between runs.
	timeoutMultiplier = 4
	// timeoutFloor is the minimum recommended verification timeout. Suite
	// boot dominates short files, so small baselines still get a real budget.
	timeoutFloor = 30 * time.Second
)

// Entry is one file's most recent baseline run.
type Entry struct {
	Path       string
	Passed     bool
	Duration   time.Duration
	RecordedAt time.Time
}

// Store manages baseline results in a project-local SQLite database.
type Store struct {
	db *sql.DB
}

// DBPath returns the project-local baseline database path.
func DBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".factorytune", "baseline.db")
}

// Open opens the baseline database at the given path, creating it and its
// parent directory if needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS baseline_runs (
			path TEXT PRIMARY KEY,
			passed INT NOT NULL,
			duration_ms INT NOT NULL,
			recorded_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenProject opens the project-local baseline database.
func OpenProject(projectRoot string) (*Store, error) {
	return Open(DBPath(projectRoot))
}

// Capture records the outcome of one baseline run, replacing any earlier
// entry for the same path.
func (s *Store) Capture(path string, passed bool, duration time.Duration) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO baseline_runs (path, passed, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?)
	`, path, passed, duration.Milliseconds(), time.Now())
	if err != nil {
		return fmt.Errorf("record baseline: %w", err)
	}
	return nil
}

// Get retrieves the baseline entry for a path. A path with no captured
// baseline returns nil without error.
func (s *Store) Get(path string) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT path, passed, duration_ms, recorded_at
		FROM baseline_runs
		WHERE path = ?
	`, path)

	var e Entry
	var passed int
	var durationMS int64
	err := row.Scan(&e.Path, &passed, &durationMS, &e.RecordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan baseline: %w", err)
	}

	e.Passed = passed != 0
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return &e, nil
}

// All returns every baseline entry in path order.
func (s *Store) All() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT path, passed, duration_ms, recorded_at
		FROM baseline_runs
		ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("query baselines: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var passed int
		var durationMS int64
		if err := rows.Scan(&e.Path, &passed, &durationMS, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		e.Passed = passed != 0
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Red reports whether the file's last baseline run failed. Unknown files
// are not red: a missing baseline never blocks optimization.
func (s *Store) Red(path string) bool {
	e, err := s.Get(path)
	if err != nil || e == nil {
		return false
	}
	return !e.Passed
}

// TimeoutFor recommends a per-file verification timeout derived from the
// file's baseline runtime. ok is false when no usable baseline exists.
func (s *Store) TimeoutFor(path string) (time.Duration, bool) {
	e, err := s.Get(path)
	if err != nil || e == nil || !e.Passed {
		return 0, false
	}
	return RecommendTimeout(e.Duration), true
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecommendTimeout converts a baseline runtime into a verification timeout:
// a multiple of the observed runtime, never below the floor.
func RecommendTimeout(baseline time.Duration) time.Duration {
	recommended := baseline * timeoutMultiplier
	if recommended < timeoutFloor {
		return timeoutFloor
	}
	return recommended
}
