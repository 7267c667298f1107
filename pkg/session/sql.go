// Copyright 2025 Momentum Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/momentumhq/momentum-agent/pkg/protocol"

	_ "github.com/mattn/go-sqlite3"
)

const createSessionEventsSchemaSQL = `
CREATE TABLE IF NOT EXISTS session_events (
    session_key TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    kind TEXT NOT NULL,
    event_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_key, ordinal)
)`

const createSessionEventsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_session_events_key ON session_events(session_key)`

// SQLStore implements Store using SQLite. Concurrency is handled by
// database-level locking: appends and replaces run in transactions.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbPath string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session db: %w", err)
	}

	for _, stmt := range []string{createSessionEventsSchemaSQL, createSessionEventsIndexSQL} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) AppendEvents(ctx context.Context, key string, events []protocol.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(ordinal) FROM session_events WHERE session_key = ?`, key).Scan(&next)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read ordinal: %w", err)
	}
	ordinal := next.Int64 + 1

	for _, event := range events {
		event.Ordinal = ordinal
		raw, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_events (session_key, ordinal, kind, event_json, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			key, ordinal, string(event.Kind), string(raw), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
		ordinal++
	}
	return tx.Commit()
}

func (s *SQLStore) Load(ctx context.Context, key string) ([]protocol.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_json FROM session_events
		WHERE session_key = ? ORDER BY ordinal`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	defer rows.Close()

	var events []protocol.Event
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var event protocol.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *SQLStore) Replace(ctx context.Context, key string, events []protocol.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_events WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	// Trailing events the caller added (the trim notice) carry no ordinal
	// yet; number them after the highest retained ordinal so the log stays
	// strictly increasing.
	var next int64 = 1
	for _, event := range events {
		if event.Ordinal == 0 {
			event.Ordinal = next
		}
		if event.Ordinal >= next {
			next = event.Ordinal + 1
		}
		raw, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_events (session_key, ordinal, kind, event_json, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			key, event.Ordinal, string(event.Kind), string(raw), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_events WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteLastTurn(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var start sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(ordinal) FROM session_events
		WHERE session_key = ? AND kind = ?`,
		key, string(protocol.EventUserTurn)).Scan(&start)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to find last turn: %w", err)
	}
	if !start.Valid {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM session_events
		WHERE session_key = ? AND ordinal >= ?`, key, start.Int64); err != nil {
		return fmt.Errorf("failed to delete last turn: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) Stats(ctx context.Context, key string) (Stats, error) {
	var count int
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(created_at) FROM session_events
		WHERE session_key = ?`, key).Scan(&count, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read session stats: %w", err)
	}
	stats := Stats{EventCount: count}
	if last.Valid {
		stats.LastUpdate = last.Time
	}
	return stats, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

var _ Store = (*SQLStore)(nil)
