// Package ledger is the tamper-evident audit trail. Every assessment step
// appends a hash-chained event; any later mutation of a stored event breaks
// the chain and is surfaced by Verify.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventProfileSubmitted EventType = "profile_submitted"
	EventClassification   EventType = "classification"
	EventRiskScore        EventType = "risk_score"
	EventBiasAnalysis     EventType = "bias_analysis"
	EventReportGenerated  EventType = "report_generated"
	EventRedaction        EventType = "redaction"
)

// GenesisHash is the prev-hash of the first event in every run chain.
const GenesisHash = "genesis"

// ChainIntegrityError reports the first event at which chain verification
// failed.
type ChainIntegrityError struct {
	RunID    string
	Sequence uint64
	Reason   string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("ledger chain broken for run %s at sequence %d: %s", e.RunID, e.Sequence, e.Reason)
}

// Event is one immutable, hash-chained audit record. PayloadHash covers the
// canonical payload bytes; Hash covers the header including PayloadHash and
// PrevHash. Redaction never rewrites the stored payload, it only flags the
// event so every serialized surface withholds it.
type Event struct {
	Sequence    uint64         `json:"sequence"`
	RunID       string         `json:"run_id"`
	Type        EventType      `json:"type"`
	Actor       string         `json:"actor,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Payload     map[string]any `json:"payload,omitempty"`
	PayloadHash string         `json:"payload_hash"`
	PrevHash    string         `json:"prev_hash"`
	Hash        string         `json:"hash"`
	Redacted    bool           `json:"redacted,omitempty"`
}

// MarshalJSON withholds the payload of logically redacted events. The stored
// payload stays in place so the chain remains recomputable, but it never
// leaves the ledger through an export or API response.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if a.Redacted {
		a.Payload = nil
	}
	return json.Marshal(a)
}

// canonicalPayloadHash hashes the RFC 8785 canonical form of the payload, so
// key order and whitespace never affect the chain.
func canonicalPayloadHash(payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("payload marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("payload canonicalization failed: %w", err)
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}

// eventHeader is the hashed portion of an event. The payload participates
// only through its hash.
type eventHeader struct {
	Sequence    uint64 `json:"sequence"`
	RunID       string `json:"run_id"`
	Type        string `json:"type"`
	Actor       string `json:"actor"`
	Timestamp   string `json:"timestamp"`
	PayloadHash string `json:"payload_hash"`
	PrevHash    string `json:"prev_hash"`
}

func computeEventHash(e *Event) (string, error) {
	raw, err := json.Marshal(eventHeader{
		Sequence:    e.Sequence,
		RunID:       e.RunID,
		Type:        string(e.Type),
		Actor:       e.Actor,
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
		PayloadHash: e.PayloadHash,
		PrevHash:    e.PrevHash,
	})
	if err != nil {
		return "", fmt.Errorf("header marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("header canonicalization failed: %w", err)
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}
