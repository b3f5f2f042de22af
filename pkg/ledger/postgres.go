package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists audit events in PostgreSQL for shared deployments.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Timestamps persist as RFC3339Nano text, never a native timestamp type:
// the event hash covers the nanosecond-precision string, and TIMESTAMPTZ
// truncates to microseconds on write.
func (s *PostgresStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		run_id       TEXT NOT NULL,
		sequence     BIGINT NOT NULL,
		event_type   TEXT NOT NULL,
		actor        TEXT,
		timestamp    TEXT NOT NULL,
		payload      JSONB,
		payload_hash TEXT NOT NULL,
		prev_hash    TEXT NOT NULL,
		hash         TEXT NOT NULL,
		redacted     BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (run_id, sequence)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, e *Event) error {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("payload marshal failed: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (run_id, sequence, event_type, actor, timestamp, payload, payload_hash, prev_hash, hash, redacted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.RunID, e.Sequence, string(e.Type), e.Actor,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(payloadJSON), e.PayloadHash, e.PrevHash, e.Hash, e.Redacted,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, runID string, seq uint64) (*Event, error) {
	row := s.db.QueryRowContext(ctx, selectEventPostgres+" WHERE run_id = $1 AND sequence = $2", runID, seq)
	return scanEventPG(row)
}

func (s *PostgresStore) List(ctx context.Context, runID string, from, to uint64) ([]Event, error) {
	if from == 0 {
		from = 1
	}
	query := selectEventPostgres + " WHERE run_id = $1 AND sequence >= $2"
	args := []any{runID, from}
	if to > 0 {
		query += " AND sequence <= $3"
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
		e, err := scanEventPG(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) Head(ctx context.Context, runID string) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		selectEventPostgres+" WHERE run_id = $1 ORDER BY sequence DESC LIMIT 1", runID)
	e, err := scanEventPG(row)
	if err == ErrEventNotFound {
		return nil, nil
	}
	return e, err
}

func (s *PostgresStore) MarkRedacted(ctx context.Context, runID string, seq uint64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE audit_events SET redacted = TRUE WHERE run_id = $1 AND sequence = $2",
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

func (s *PostgresStore) Close() error { return s.db.Close() }

const selectEventPostgres = `SELECT run_id, sequence, event_type, actor, timestamp, payload, payload_hash, prev_hash, hash, redacted FROM audit_events`

func scanEventPG(row rowScanner) (*Event, error) {
	var (
		e           Event
		eventType   string
		actor       sql.NullString
		timestamp   string
		payloadJSON sql.NullString
	)
	err := row.Scan(&e.RunID, &e.Sequence, &eventType, &actor, &timestamp,
		&payloadJSON, &e.PayloadHash, &e.PrevHash, &e.Hash, &e.Redacted)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Type = EventType(eventType)
	e.Actor = actor.String
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
