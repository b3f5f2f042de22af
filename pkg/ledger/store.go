package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrEventNotFound is returned for lookups of sequences outside the chain.
var ErrEventNotFound = errors.New("ledger event not found")

// Store persists audit events. Implementations must keep events immutable
// except for MarkRedacted, which flags the event while leaving the stored
// payload and every hash field in place.
type Store interface {
	Append(ctx context.Context, e *Event) error
	Get(ctx context.Context, runID string, seq uint64) (*Event, error)
	// List returns events with from <= sequence <= to in sequence order.
	// to == 0 means up to the head.
	List(ctx context.Context, runID string, from, to uint64) ([]Event, error)
	// Head returns the highest-sequence event, or nil for an empty run.
	Head(ctx context.Context, runID string) (*Event, error)
	MarkRedacted(ctx context.Context, runID string, seq uint64) error
	Close() error
}

// MemoryStore is the in-process Store used by tests and single-shot CLI runs.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]Event)}
}

func (s *MemoryStore) Append(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[e.RunID] = append(s.runs[e.RunID], *e)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, runID string, seq uint64) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.runs[runID]
	if seq == 0 || seq > uint64(len(events)) {
		return nil, ErrEventNotFound
	}
	e := events[seq-1]
	return &e, nil
}

func (s *MemoryStore) List(ctx context.Context, runID string, from, to uint64) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.runs[runID]
	if from == 0 {
		from = 1
	}
	if to == 0 || to > uint64(len(events)) {
		to = uint64(len(events))
	}
	if from > to {
		return nil, nil
	}
	out := make([]Event, to-from+1)
	copy(out, events[from-1:to])
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *MemoryStore) Head(ctx context.Context, runID string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.runs[runID]
	if len(events) == 0 {
		return nil, nil
	}
	e := events[len(events)-1]
	return &e, nil
}

func (s *MemoryStore) MarkRedacted(ctx context.Context, runID string, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.runs[runID]
	if seq == 0 || seq > uint64(len(events)) {
		return ErrEventNotFound
	}
	events[seq-1].Redacted = true
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Tamper overwrites a stored payload in place without recomputing hashes.
// It exists for integrity tests only.
func (s *MemoryStore) Tamper(runID string, seq uint64, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.runs[runID]
	if seq == 0 || seq > uint64(len(events)) {
		return ErrEventNotFound
	}
	events[seq-1].Payload = payload
	return nil
}
