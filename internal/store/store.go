package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Project status values, mirrored by the API's validation.
var ProjectStatuses = []string{"ACTIVE", "COMPLETED", "ON_HOLD", "CANCELLED"}

// Task status values; the board columns.
var TaskStatuses = []string{"TODO", "IN_PROGRESS", "DONE", "BLOCKED"}

// ValidProjectStatus reports whether s is a known project status.
func ValidProjectStatus(s string) bool { return contains(ProjectStatuses, s) }

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool { return contains(TaskStatuses, s) }

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Store wraps the SQLite database holding all tracker data.
type Store struct {
	db  *sql.DB
	now func() time.Time // injectable for deterministic tests
}

// Open opens (creating if necessary) the SQLite database at path and applies
// the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("store: read migrations: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Counts returns the total number of organizations, projects, and tasks.
// Used by the health endpoint.
func (s *Store) Counts(ctx context.Context) (orgs, projects, tasks int, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM organizations),
		       (SELECT COUNT(*) FROM projects),
		       (SELECT COUNT(*) FROM tasks)`)
	if err := row.Scan(&orgs, &projects, &tasks); err != nil {
		return 0, 0, 0, fmt.Errorf("store: counts: %w", err)
	}
	return orgs, projects, tasks, nil
}

// --- time encoding ----------------------------------------------------------

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func decodeTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := decodeTime(s.String)
	return &t
}
