package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/aletheia-ai/aegis/pkg/bias"
	"github.com/aletheia-ai/aegis/pkg/classifier"
	"github.com/aletheia-ai/aegis/pkg/ledger"
	"github.com/aletheia-ai/aegis/pkg/profile"
	"github.com/aletheia-ai/aegis/pkg/scoring"
)

// certificationThreshold is the minimum compliance score for certification
// readiness; critical gaps veto readiness regardless of score.
const certificationThreshold = 85.0

// UnverifiedLedgerError is returned when report generation is requested over
// a run whose audit chain fails verification.
type UnverifiedLedgerError struct {
	RunID string
	Err   error
}

func (e *UnverifiedLedgerError) Error() string {
	return fmt.Sprintf("cannot report over unverified ledger for run %s: %v", e.RunID, e.Err)
}

func (e *UnverifiedLedgerError) Unwrap() error { return e.Err }

// Evidence is the assessment state reconstructed from a run's audit events.
// Redacted events contribute nothing, so a redacted bias analysis reads as
// missing evidence and surfaces as a compliance gap.
type Evidence struct {
	Profile        *profile.AISystemProfile
	Classification *classifier.ClassificationResult
	RiskScore      *scoring.RiskScore
	Bias           *bias.BiasAnalysis
	AsOfSequence   uint64
	AsOfTimestamp  time.Time
	ChainHead      string
}

// RequirementResult is one evaluated framework obligation.
type RequirementResult struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Status   RequirementStatus `json:"status"`
	Critical bool              `json:"critical"`
}

// Report is a compliance report for one framework over one assessment run.
// Its timestamps derive from the ledger, never the wall clock, so the same
// ledger state always yields byte-identical canonical output.
type Report struct {
	RunID              string              `json:"run_id"`
	Framework          Framework           `json:"framework"`
	FrameworkName      string              `json:"framework_name"`
	Authority          string              `json:"authority"`
	AsOfSequence       uint64              `json:"as_of_sequence"`
	AsOfTimestamp      time.Time           `json:"as_of_timestamp"`
	ChainHead          string              `json:"chain_head"`
	Requirements       []RequirementResult `json:"requirements"`
	Gaps               []string            `json:"gaps,omitempty"`
	CriticalGaps       []string            `json:"critical_gaps,omitempty"`
	ComplianceScore    float64             `json:"compliance_score"`
	CertificationReady bool                `json:"certification_ready"`
	FineExposure       FineExposure        `json:"fine_exposure"`
	EvidenceComplete   bool                `json:"evidence_complete"`
}

// Aggregator builds compliance reports from the audit ledger.
type Aggregator struct {
	ledger *ledger.Ledger
}

func NewAggregator(l *ledger.Ledger) *Aggregator {
	return &Aggregator{ledger: l}
}

// Generate verifies the run's chain through asOfSeq (0 means the head),
// reconstructs the evidence over that prefix, and evaluates the framework's
// obligations. Appends or corruption beyond the pinned sequence never affect
// an already-consistent historical report.
func (a *Aggregator) Generate(ctx context.Context, runID string, fw Framework, asOfSeq uint64) (*Report, error) {
	spec, ok := frameworkCatalog[fw]
	if !ok {
		return nil, &UnknownFrameworkError{Framework: fw}
	}

	if err := a.ledger.Verify(ctx, runID, 0, asOfSeq); err != nil {
		return nil, &UnverifiedLedgerError{RunID: runID, Err: err}
	}

	events, err := a.ledger.List(ctx, runID, 0, asOfSeq)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("run %s has no events at sequence %d", runID, asOfSeq)
	}

	ev, err := collectEvidence(events)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:         runID,
		Framework:     fw,
		FrameworkName: spec.Name,
		Authority:     spec.Authority,
		AsOfSequence:  ev.AsOfSequence,
		AsOfTimestamp: ev.AsOfTimestamp,
		ChainHead:     ev.ChainHead,
		EvidenceComplete: ev.Profile != nil && ev.Classification != nil &&
			ev.RiskScore != nil && ev.Bias != nil,
	}

	applicable, satisfied := 0, 0
	for _, req := range spec.Requirements {
		result := RequirementResult{ID: req.ID, Title: req.Title, Critical: req.Critical}
		if req.Applies != nil && !req.Applies(ev) {
			result.Status = StatusNotApplicable
		} else {
			applicable++
			if req.Satisfied(ev) {
				satisfied++
				result.Status = StatusSatisfied
			} else {
				result.Status = StatusGap
				report.Gaps = append(report.Gaps, req.ID)
				if req.Critical {
					report.CriticalGaps = append(report.CriticalGaps, req.ID)
				}
			}
		}
		report.Requirements = append(report.Requirements, result)
	}

	if applicable > 0 {
		report.ComplianceScore = 100 * float64(satisfied) / float64(applicable)
	} else {
		report.ComplianceScore = 100
	}
	report.CertificationReady = report.ComplianceScore >= certificationThreshold &&
		len(report.CriticalGaps) == 0
	report.FineExposure = spec.FineExposure(ev, len(report.Gaps))

	return report, nil
}

// Canonical returns the RFC 8785 canonical JSON encoding of the report and
// its hash. Equal reports canonicalize to equal bytes.
func (r *Report) Canonical() ([]byte, string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, "", fmt.Errorf("report canonicalization failed: %w", err)
	}
	h := sha256.Sum256(canonical)
	return canonical, "sha256:" + hex.EncodeToString(h[:]), nil
}

// collectEvidence replays the event payloads, keeping the latest non-redacted
// instance of each evidence kind.
func collectEvidence(events []ledger.Event) (*Evidence, error) {
	head := events[len(events)-1]
	ev := &Evidence{
		AsOfSequence:  head.Sequence,
		AsOfTimestamp: head.Timestamp,
		ChainHead:     head.Hash,
	}

	for _, e := range events {
		if e.Redacted || e.Payload == nil {
			continue
		}
		var err error
		switch e.Type {
		case ledger.EventProfileSubmitted:
			err = decodePayload(e.Payload, &ev.Profile)
		case ledger.EventClassification:
			err = decodePayload(e.Payload, &ev.Classification)
		case ledger.EventRiskScore:
			err = decodePayload(e.Payload, &ev.RiskScore)
		case ledger.EventBiasAnalysis:
			err = decodePayload(e.Payload, &ev.Bias)
		}
		if err != nil {
			return nil, fmt.Errorf("evidence decode failed at sequence %d: %w", e.Sequence, err)
		}
	}
	return ev, nil
}

func decodePayload(payload map[string]any, dst any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
