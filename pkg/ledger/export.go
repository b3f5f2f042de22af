package ledger

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// ErrUnsignedExport is returned when export is requested without a signer.
var ErrUnsignedExport = errors.New("ledger: export signer not configured (fail-closed)")

// Signer produces HMAC-SHA256 signatures over export bundles. The signing
// key is derived from a master secret with HKDF so the master never signs
// anything directly.
type Signer struct {
	key []byte
}

const exportKeyInfo = "aegis/audit-export/v1"

func NewSigner(masterSecret []byte) (*Signer, error) {
	if len(masterSecret) < 16 {
		return nil, fmt.Errorf("master secret too short: %d bytes", len(masterSecret))
	}
	r := hkdf.New(sha256.New, masterSecret, nil, []byte(exportKeyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("export key derivation failed: %w", err)
	}
	return &Signer{key: key}, nil
}

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(data []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return hmac.Equal(mac.Sum(nil), expected)
}

// ExportBundle is a verified, signed snapshot of one run's audit chain.
type ExportBundle struct {
	RunID       string `json:"run_id"`
	GeneratedAt string `json:"generated_at"`
	EventCount  int    `json:"event_count"`
	ChainHead   string `json:"chain_head"`
	Checksum    string `json:"checksum"`
	Signature   string `json:"signature"`
	Archive     []byte `json:"-"`
}

// Exporter builds evidence packs from a ledger.
type Exporter struct {
	ledger *Ledger
	signer *Signer
	clock  func() time.Time
}

func NewExporter(l *Ledger, signer *Signer) *Exporter {
	return &Exporter{ledger: l, signer: signer, clock: time.Now}
}

// WithClock overrides clock for testing.
func (e *Exporter) WithClock(clock func() time.Time) *Exporter {
	e.clock = clock
	return e
}

// Export verifies the run's chain, then packages its events and a manifest
// into a zip signed over the archive bytes. A broken chain aborts the
// export; evidence packs never carry unverified data.
func (e *Exporter) Export(ctx context.Context, runID string) (*ExportBundle, error) {
	if e.signer == nil {
		return nil, ErrUnsignedExport
	}
	if err := e.ledger.Verify(ctx, runID, 0, 0); err != nil {
		return nil, err
	}

	events, err := e.ledger.List(ctx, runID, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("run %s has no events to export", runID)
	}
	head := events[len(events)-1].Hash
	generatedAt := e.clock().UTC()

	stats, err := e.ledger.Stats(ctx, runID)
	if err != nil {
		return nil, err
	}

	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, err
	}
	manifestJSON, err := json.MarshalIndent(map[string]any{
		"run_id":         runID,
		"generated_at":   generatedAt.Format(time.RFC3339),
		"event_count":    len(events),
		"chain_head":     head,
		"events_by_type": stats.EventsByType,
		"redacted_count": stats.RedactedCount,
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, file := range []struct {
		name string
		body []byte
	}{
		{"events.json", eventsJSON},
		{"manifest.json", manifestJSON},
	} {
		f, err := w.Create(file.name)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(file.body); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	archive := buf.Bytes()
	sum := sha256.Sum256(archive)

	return &ExportBundle{
		RunID:       runID,
		GeneratedAt: generatedAt.Format(time.RFC3339),
		EventCount:  len(events),
		ChainHead:   head,
		Checksum:    "sha256:" + hex.EncodeToString(sum[:]),
		Signature:   e.signer.Sign(archive),
		Archive:     archive,
	}, nil
}
