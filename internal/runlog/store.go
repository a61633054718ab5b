// Package runlog keeps a small sqlite journal of completed and failed
// ranking runs, one row per invocation, so coverage tables written to
// external databases can be traced back to their inputs.
package runlog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Entry is one journal row.
type Entry struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	SectorTable string
	Sectors     int
	RankDepth   int
	Mode        string
	Strategy    string
	Rows        int64
	Status      string // ok or failed
	Error       string
}

// Store is an open run journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal database and applies pending schema
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening run log %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating run log %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the journal database.
func (s *Store) Close() error { return s.db.Close() }

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: We don't close m here because it would close the underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Record inserts one journal row. A missing ID is assigned a fresh UUID;
// the assigned ID is returned.
func (s *Store) Record(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, started_at, finished_at, sector_table, sectors,
			rank_depth, mode, strategy, rows_written, status, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StartedAt.UTC().Format(time.RFC3339Nano), e.FinishedAt.UTC().Format(time.RFC3339Nano),
		e.SectorTable, e.Sectors, e.RankDepth, e.Mode, e.Strategy, e.Rows, e.Status, e.Error,
	)
	if err != nil {
		return "", fmt.Errorf("recording run %s: %w", e.ID, err)
	}
	return e.ID, nil
}

// Runs returns the most recent entries, newest first, up to limit.
func (s *Store) Runs(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, sector_table, sectors,
		       rank_depth, mode, strategy, rows_written, status, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var started, finished string
		if err := rows.Scan(&e.ID, &started, &finished, &e.SectorTable, &e.Sectors,
			&e.RankDepth, &e.Mode, &e.Strategy, &e.Rows, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		if e.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %s: bad started_at %q", e.ID, started)
		}
		if e.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("run %s: bad finished_at %q", e.ID, finished)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
