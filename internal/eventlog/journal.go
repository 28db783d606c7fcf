// Package eventlog keeps an append-only SQLite journal of successful to-do
// mutations so callers can audit their own history.
//
// The journal is history only: the in-memory store is never rebuilt from it.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todo-backend/internal/model"

	_ "modernc.org/sqlite"
)

type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the journal database at path.
func Open(ctx context.Context, path string, log *slog.Logger) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("eventlog: path is empty")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: %w", err)
	}

	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	// One writer connection; the service serialises writes anyway and this
	// keeps SQLite from returning "database is locked" under request bursts.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("eventlog: %s: %w", p, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, log: log}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			caller TEXT NOT NULL,
			type TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			issued_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_caller ON events(caller, seq);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("eventlog: migrate: %w", err)
		}
	}
	return nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) Append(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("eventlog: marshal payload: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO events(event_id, caller, type, payload_json, issued_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		ev.ID, ev.Caller, string(ev.Type), string(payload), ev.TS.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("eventlog: append: %w", err)
	}
	return nil
}

// List returns up to limit of caller's events, newest first.
func (j *Journal) List(ctx context.Context, caller string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		return []model.Event{}, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT event_id, caller, type, payload_json, issued_at_unixms
		 FROM events WHERE caller = ? ORDER BY seq DESC LIMIT ?`,
		caller, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var (
			ev      model.Event
			typ     string
			payload string
			ms      int64
		)
		if err := rows.Scan(&ev.ID, &ev.Caller, &typ, &payload, &ms); err != nil {
			return nil, fmt.Errorf("eventlog: scan: %w", err)
		}
		ev.Type = model.EventType(typ)
		ev.TS = time.UnixMilli(ms).UTC()
		var p any
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("eventlog: payload %s: %w", ev.ID, err)
		}
		ev.Payload = p
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Observe appends ev; failures are logged and never fail the mutation.
func (j *Journal) Observe(ctx context.Context, ev model.Event) {
	// Detach from request cancellation: the mutation already happened.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := j.Append(ctx, ev); err != nil {
		j.log.WarnContext(ctx, "journal append failed", "event_id", ev.ID, "type", ev.Type, "err", err)
	}
}
