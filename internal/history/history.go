// Package history persists past events locally so preference mining does
// not depend on the calendar backend being reachable.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slotwise/slotwise/internal/calendar"
	"github.com/slotwise/slotwise/internal/core"
)

// Config for database initialization
type Config struct {
	Path     string // Path to database file
	InMemory bool   // Use an in-memory database (for testing)
}

// Store records events in SQLite and serves them back for learning
type Store struct {
	conn *sql.DB
}

// Open opens or creates the history database and runs migrations
func Open(cfg Config) (*Store, error) {
	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't handle concurrent writes well
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS events (
		    ref          TEXT PRIMARY KEY,
		    summary      TEXT NOT NULL DEFAULT '',
		    participants TEXT NOT NULL DEFAULT '[]',
		    start_at     TIMESTAMP NOT NULL,
		    end_at       TIMESTAMP NOT NULL,
		    recorded_at  TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Record upserts an event. Re-recording a moved event overwrites its
// previous window.
func (s *Store) Record(ctx context.Context, ev core.Event) error {
	if ev.Ref == "" {
		return fmt.Errorf("event has no ref")
	}
	participants, _ := json.Marshal(ev.Participants)

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO events (ref, summary, participants, start_at, end_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ref) DO UPDATE SET
		    summary = excluded.summary,
		    participants = excluded.participants,
		    start_at = excluded.start_at,
		    end_at = excluded.end_at,
		    recorded_at = excluded.recorded_at
	`, string(ev.Ref), ev.Summary, string(participants),
		ev.Start.UTC(), ev.End.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Forget removes a cancelled event so it stops feeding the profile
func (s *Store) Forget(ctx context.Context, ref core.EventRef) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM events WHERE ref = ?`, string(ref))
	if err != nil {
		return fmt.Errorf("failed to forget event: %w", err)
	}
	return nil
}

// ListSince returns events starting at or after since, oldest first.
// Satisfies preference.HistorySource.
func (s *Store) ListSince(ctx context.Context, since time.Time) ([]core.Event, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT ref, summary, participants, start_at, end_at
		FROM events
		WHERE start_at >= ?
		ORDER BY start_at ASC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		var ev core.Event
		var ref, participants string
		if err := rows.Scan(&ref, &ev.Summary, &participants, &ev.Start, &ev.End); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Ref = core.EventRef(ref)
		if err := json.Unmarshal([]byte(participants), &ev.Participants); err != nil {
			ev.Participants = nil
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Backfill copies events from the calendar backend into history. Used at
// startup and by the periodic rebuild so learning covers events booked
// outside the assistant.
func (s *Store) Backfill(ctx context.Context, src calendar.Store, window core.Window) (int, error) {
	events, err := src.ListEvents(ctx, window, calendar.Filter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list calendar events: %w", err)
	}

	var n int
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Prune drops events older than the cutoff
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM events WHERE start_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Count returns the number of recorded events
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
