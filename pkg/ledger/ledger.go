package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Ledger appends hash-chained audit events to a Store. Appends across all
// runs are serialized by an internal mutex so each run's chain grows without
// sequence gaps.
type Ledger struct {
	mu    sync.Mutex
	store Store
	clock func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{store: store, clock: time.Now}
}

// WithClock overrides clock for testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Append chains a new event onto the run and returns it. The event hash
// covers the canonical payload and the previous head hash.
func (l *Ledger) Append(ctx context.Context, runID string, et EventType, actor string, payload map[string]any) (*Event, error) {
	if runID == "" {
		return nil, fmt.Errorf("empty run id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.store.Head(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("head lookup failed: %w", err)
	}
	prevHash := GenesisHash
	var seq uint64 = 1
	if head != nil {
		prevHash = head.Hash
		seq = head.Sequence + 1
	}

	e := &Event{
		Sequence:  seq,
		RunID:     runID,
		Type:      et,
		Actor:     actor,
		Timestamp: l.clock().UTC(),
		Payload:   payload,
		PrevHash:  prevHash,
	}
	if e.PayloadHash, err = canonicalPayloadHash(payload); err != nil {
		return nil, err
	}
	if e.Hash, err = computeEventHash(e); err != nil {
		return nil, err
	}

	if err := l.store.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append failed: %w", err)
	}
	return e, nil
}

// Get returns one event by sequence.
func (l *Ledger) Get(ctx context.Context, runID string, seq uint64) (*Event, error) {
	return l.store.Get(ctx, runID, seq)
}

// List returns events in [from, to]; to == 0 means through the head.
func (l *Ledger) List(ctx context.Context, runID string, from, to uint64) ([]Event, error) {
	return l.store.List(ctx, runID, from, to)
}

// Head returns the latest event, or nil for an empty run.
func (l *Ledger) Head(ctx context.Context, runID string) (*Event, error) {
	return l.store.Head(ctx, runID)
}

// Verify recomputes every hash over the [from, to] range of the run's chain;
// zero bounds widen to genesis and the head respectively. A range starting
// past genesis anchors on the preceding event's stored hash, so a pinned
// prefix verifies independently of appends or corruption beyond it. Redacted
// events keep both their stored payload and their recorded payload hash, so
// the chain stays fully verifiable after redaction. The returned error is a
// *ChainIntegrityError naming the first offending sequence.
func (l *Ledger) Verify(ctx context.Context, runID string, from, to uint64) error {
	if from == 0 {
		from = 1
	}
	events, err := l.store.List(ctx, runID, from, to)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	prevHash := GenesisHash
	prevSeq := from - 1
	if from > 1 && len(events) > 0 {
		anchor, err := l.store.Get(ctx, runID, from-1)
		if err != nil {
			return fmt.Errorf("anchor lookup failed: %w", err)
		}
		prevHash = anchor.Hash
	}
	for i := range events {
		e := &events[i]
		if e.Sequence != prevSeq+1 {
			return &ChainIntegrityError{RunID: runID, Sequence: e.Sequence,
				Reason: fmt.Sprintf("sequence gap after %d", prevSeq)}
		}
		if e.PrevHash != prevHash {
			return &ChainIntegrityError{RunID: runID, Sequence: e.Sequence,
				Reason: fmt.Sprintf("prev hash %s does not match head %s", e.PrevHash, prevHash)}
		}
		payloadHash, err := canonicalPayloadHash(e.Payload)
		if err != nil {
			return &ChainIntegrityError{RunID: runID, Sequence: e.Sequence, Reason: err.Error()}
		}
		if payloadHash != e.PayloadHash {
			return &ChainIntegrityError{RunID: runID, Sequence: e.Sequence, Reason: "payload hash mismatch"}
		}
		hash, err := computeEventHash(e)
		if err != nil {
			return &ChainIntegrityError{RunID: runID, Sequence: e.Sequence, Reason: err.Error()}
		}
		if hash != e.Hash {
			return &ChainIntegrityError{RunID: runID, Sequence: e.Sequence, Reason: "event hash mismatch"}
		}
		prevHash = e.Hash
		prevSeq = e.Sequence
	}
	return nil
}

// Stats summarizes one run's chain without exposing payloads.
type Stats struct {
	RunID         string            `json:"run_id"`
	EventCount    int               `json:"event_count"`
	EventsByType  map[EventType]int `json:"events_by_type"`
	RedactedCount int               `json:"redacted_count"`
	FirstEventAt  time.Time         `json:"first_event_at"`
	LastEventAt   time.Time         `json:"last_event_at"`
	HeadHash      string            `json:"head_hash,omitempty"`
}

// Stats computes per-type event counts and the chain extent for a run.
func (l *Ledger) Stats(ctx context.Context, runID string) (*Stats, error) {
	events, err := l.store.List(ctx, runID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	stats := &Stats{RunID: runID, EventsByType: make(map[EventType]int)}
	for _, e := range events {
		stats.EventCount++
		stats.EventsByType[e.Type]++
		if e.Redacted {
			stats.RedactedCount++
		}
	}
	if len(events) > 0 {
		stats.FirstEventAt = events[0].Timestamp
		last := events[len(events)-1]
		stats.LastEventAt = last.Timestamp
		stats.HeadHash = last.Hash
	}
	return stats, nil
}

// Redact flags an earlier event as logically redacted and appends a redaction
// event recording who withheld what and why. The target event is never
// rewritten; downstream serialization and report evidence treat its payload
// as absent.
func (l *Ledger) Redact(ctx context.Context, runID string, seq uint64, actor, reason string) (*Event, error) {
	target, err := l.store.Get(ctx, runID, seq)
	if err != nil {
		return nil, err
	}
	if target.Type == EventRedaction {
		return nil, fmt.Errorf("sequence %d is a redaction event and cannot be redacted", seq)
	}
	if target.Redacted {
		return nil, fmt.Errorf("sequence %d is already redacted", seq)
	}

	redaction, err := l.Append(ctx, runID, EventRedaction, actor, map[string]any{
		"target_sequence": seq,
		"target_type":     string(target.Type),
		"reason":          reason,
	})
	if err != nil {
		return nil, err
	}
	if err := l.store.MarkRedacted(ctx, runID, seq); err != nil {
		return nil, fmt.Errorf("redaction mark failed: %w", err)
	}
	return redaction, nil
}
