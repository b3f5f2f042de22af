package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists audit events in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		run_id       TEXT NOT NULL,
		sequence     INTEGER NOT NULL,
		event_type   TEXT NOT NULL,
		actor        TEXT,
		timestamp    TEXT NOT NULL,
		payload      JSON,
		payload_hash TEXT NOT NULL,
		prev_hash    TEXT NOT NULL,
		hash         TEXT NOT NULL,
		redacted     INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, sequence)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, e *Event) error {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("payload marshal failed: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (run_id, sequence, event_type, actor, timestamp, payload, payload_hash, prev_hash, hash, redacted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Sequence, string(e.Type), e.Actor,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(payloadJSON), e.PayloadHash, e.PrevHash, e.Hash, boolToInt(e.Redacted),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, runID string, seq uint64) (*Event, error) {
	row := s.db.QueryRowContext(ctx, selectEventSQLite+" WHERE run_id = ? AND sequence = ?", runID, seq)
	return scanEvent(row)
}

func (s *SQLiteStore) List(ctx context.Context, runID string, from, to uint64) ([]Event, error) {
	if from == 0 {
		from = 1
	}
	query := selectEventSQLite + " WHERE run_id = ? AND sequence >= ?"
	args := []any{runID, from}
	if to > 0 {
		query += " AND sequence <= ?"
		args = append(args, to)
	}
	query += " ORDER BY sequence ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Head(ctx context.Context, runID string) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		selectEventSQLite+" WHERE run_id = ? ORDER BY sequence DESC LIMIT 1", runID)
	e, err := scanEvent(row)
	if err == ErrEventNotFound {
		return nil, nil
	}
	return e, err
}

func (s *SQLiteStore) MarkRedacted(ctx context.Context, runID string, seq uint64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE audit_events SET redacted = 1 WHERE run_id = ? AND sequence = ?",
		runID, seq)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

const selectEventSQLite = `SELECT run_id, sequence, event_type, actor, timestamp, payload, payload_hash, prev_hash, hash, redacted FROM audit_events`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e           Event
		eventType   string
		actor       sql.NullString
		timestamp   string
		payloadJSON sql.NullString
		redacted    int
	)
	err := row.Scan(&e.RunID, &e.Sequence, &eventType, &actor, &timestamp,
		&payloadJSON, &e.PayloadHash, &e.PrevHash, &e.Hash, &redacted)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Type = EventType(eventType)
	e.Actor = actor.String
	e.Redacted = redacted != 0
	e.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("timestamp parse failed: %w", err)
	}
	if payloadJSON.Valid && payloadJSON.String != "" && payloadJSON.String != "null" {
		if uerr := json.Unmarshal([]byte(payloadJSON.String), &e.Payload); uerr != nil {
			return nil, fmt.Errorf("payload unmarshal failed: %w", uerr)
		}
	}
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
