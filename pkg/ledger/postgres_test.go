package ledger

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS audit_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStore_Append(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	e := &Event{
		Sequence:    1,
		RunID:       "run-1",
		Type:        EventClassification,
		Actor:       "tester",
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
		Payload:     map[string]any{"tier": "high"},
		PayloadHash: "sha256:aaa",
		PrevHash:    GenesisHash,
		Hash:        "sha256:bbb",
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).
		WithArgs("run-1", uint64(1), "classification", "tester",
			"2026-03-01T12:00:00.123456789Z",
			`{"tier":"high"}`, "sha256:aaa", GenesisHash, "sha256:bbb", false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectEventPostgres)).
		WithArgs("run-1", uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{
			"run_id", "sequence", "event_type", "actor", "timestamp",
			"payload", "payload_hash", "prev_hash", "hash", "redacted",
		}))

	_, err := store.Get(context.Background(), "run-1", 9)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestPostgresStore_HeadScansLatest(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	rows := sqlmock.NewRows([]string{
		"run_id", "sequence", "event_type", "actor", "timestamp",
		"payload", "payload_hash", "prev_hash", "hash", "redacted",
	}).AddRow("run-1", 5, "risk_score", "tester", "2026-03-01T12:00:05Z",
		`{"score":76.5}`, "sha256:p", "sha256:prev", "sha256:head", false)

	mock.ExpectQuery(regexp.QuoteMeta(selectEventPostgres)).
		WithArgs("run-1").
		WillReturnRows(rows)

	head, err := store.Head(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, uint64(5), head.Sequence)
	assert.Equal(t, EventRiskScore, head.Type)
	assert.InDelta(t, 76.5, head.Payload["score"].(float64), 1e-9)
}

// A nanosecond-precision timestamp must survive the store round trip
// byte-for-byte: the header hash covers the RFC3339Nano string, so any
// precision loss in persistence re-reads as a broken chain.
func TestPostgresStore_TimestampRoundTripPreservesHash(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	e := &Event{
		Sequence:  1,
		RunID:     "run-1",
		Type:      EventClassification,
		Actor:     "tester",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
		PrevHash:  GenesisHash,
	}
	var err error
	e.PayloadHash, err = canonicalPayloadHash(map[string]any{"tier": "high"})
	require.NoError(t, err)
	e.Hash, err = computeEventHash(e)
	require.NoError(t, err)

	stored := e.Timestamp.UTC().Format(time.RFC3339Nano)
	rows := sqlmock.NewRows([]string{
		"run_id", "sequence", "event_type", "actor", "timestamp",
		"payload", "payload_hash", "prev_hash", "hash", "redacted",
	}).AddRow("run-1", 1, "classification", "tester", stored,
		"null", e.PayloadHash, GenesisHash, e.Hash, false)

	mock.ExpectQuery(regexp.QuoteMeta(selectEventPostgres)).
		WithArgs("run-1", uint64(1)).
		WillReturnRows(rows)

	loaded, err := store.Get(context.Background(), "run-1", 1)
	require.NoError(t, err)
	assert.True(t, loaded.Timestamp.Equal(e.Timestamp))

	recomputed, err := computeEventHash(loaded)
	require.NoError(t, err)
	assert.Equal(t, e.Hash, recomputed)
}

func TestPostgresStore_RejectsMalformedTimestamp(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	rows := sqlmock.NewRows([]string{
		"run_id", "sequence", "event_type", "actor", "timestamp",
		"payload", "payload_hash", "prev_hash", "hash", "redacted",
	}).AddRow("run-1", 1, "classification", "tester", "yesterday",
		"null", "sha256:p", GenesisHash, "sha256:h", false)

	mock.ExpectQuery(regexp.QuoteMeta(selectEventPostgres)).
		WithArgs("run-1", uint64(1)).
		WillReturnRows(rows)

	_, err := store.Get(context.Background(), "run-1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp parse")
}

func TestPostgresStore_MarkRedactedMissingRow(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE audit_events SET redacted = TRUE")).
		WithArgs("run-1", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkRedacted(context.Background(), "run-1", 3)
	assert.ErrorIs(t, err, ErrEventNotFound)
}
