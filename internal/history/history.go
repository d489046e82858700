// Package history records detection and build runs in a local SQLite
// ledger for provenance.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"artdep/internal/config"
	"artdep/internal/util"
)

// FileName is the ledger file name inside the engine state directory.
const FileName = "history.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL,
	head_sha TEXT NOT NULL,
	target_branch TEXT NOT NULL,
	kind TEXT NOT NULL,
	reason TEXT NOT NULL,
	changed_count INTEGER NOT NULL,
	affected_count INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// Run is one recorded engine invocation.
type Run struct {
	ID            int64
	CreatedAt     int64
	HeadSHA       string
	TargetBranch  string
	Kind          string
	Reason        string
	ChangedCount  int
	AffectedCount int
	DurationMs    int64
}

// Store is the SQLite-backed run ledger.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger under repoRoot's state directory.
func Open(repoRoot string) (*Store, error) {
	dir := filepath.Join(repoRoot, config.Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s directory: %w", config.Dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the ledger database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record appends one run to the ledger.
func (s *Store) Record(run Run) error {
	if run.CreatedAt == 0 {
		run.CreatedAt = util.NowMs()
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (created_at, head_sha, target_branch, kind, reason, changed_count, affected_count, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.CreatedAt, run.HeadSHA, run.TargetBranch, run.Kind, run.Reason,
		run.ChangedCount, run.AffectedCount, run.DurationMs)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, created_at, head_sha, target_branch, kind, reason, changed_count, affected_count, duration_ms
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.HeadSHA, &r.TargetBranch, &r.Kind,
			&r.Reason, &r.ChangedCount, &r.AffectedCount, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Count returns the total number of recorded runs.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
