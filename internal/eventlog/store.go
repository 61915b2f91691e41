// Package eventlog records the session timeline: when recordings started,
// stopped, completed, or failed, and with which provider. It is a
// diagnostic aid; writes are best-effort and never fail a session.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Event kinds written by the session controller.
const (
	KindRecordingStarted = "recording_started"
	KindRecordingStopped = "recording_stopped"
	KindCompleted        = "transcription_completed"
	KindFailed           = "transcription_failed"
	KindCancelled        = "recording_cancelled"
)

// Entry is one recorded timeline event.
type Entry struct {
	ID        int64
	SessionID string
	Kind      string
	Provider  string
	Detail    string
	CreatedAt time.Time
}

// Options configures the event log.
type Options struct {
	// Enabled turns persistence on. A disabled log accepts writes and
	// drops them.
	Enabled bool
	// Path of the SQLite database file.
	Path string
	// RetentionDays prunes events older than this; 0 keeps everything.
	RetentionDays int
	// MaxSessions bounds the number of retained sessions; 0 is unbounded.
	MaxSessions int
}

// Store is the SQLite-backed session timeline.
type Store struct {
	db    *sql.DB
	opts  Options
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the event log according to options.
func Open(ctx context.Context, opts Options, log *slog.Logger) (*Store, error) {
	if !opts.Enabled {
		return &Store{opts: opts, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(opts.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", opts.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, opts: opts, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("event log prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    provider TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    provider TEXT,
    detail TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_events_session_created ON events(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginSession ensures a session row exists.
func (s *Store) BeginSession(ctx context.Context, sessionID, provider string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, provider, created_at)
		 VALUES(?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET provider=excluded.provider`,
		sessionID, provider, s.clock().UTC())
	return err
}

// Append writes one timeline event.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	if s.db == nil {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(session_id, kind, provider, detail, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		entry.SessionID, entry.Kind, entry.Provider, entry.Detail, entry.CreatedAt)
	return err
}

// ListSession returns up to limit events for one session, oldest first.
func (s *Store) ListSession(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, kind, provider, detail, created_at
		 FROM events WHERE session_id = ? ORDER BY created_at ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Provider, &e.Detail, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune applies retention: age-based first, then the session-count bound.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.opts.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.opts.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.opts.MaxSessions > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id IN (
			SELECT session_id FROM sessions ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.opts.MaxSessions)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
