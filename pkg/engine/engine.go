// Package engine orchestrates assessment runs: classification, scoring,
// fairness analysis, and the audit events that make each step reviewable.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aletheia-ai/aegis/pkg/bias"
	"github.com/aletheia-ai/aegis/pkg/classifier"
	"github.com/aletheia-ai/aegis/pkg/ledger"
	"github.com/aletheia-ai/aegis/pkg/report"
	"github.com/aletheia-ai/aegis/pkg/scoring"
)

// defaultSignificance is the significance level used when a submission does
// not set one.
const defaultSignificance = 0.05

// ErrRunNotFound is returned for lookups of unknown run IDs.
var ErrRunNotFound = fmt.Errorf("assessment run not found")

// Engine wires the assessment pipeline together. It is safe for concurrent
// submissions; each run has its own ledger chain.
type Engine struct {
	classifier *classifier.Classifier
	ruleSet    *classifier.RuleSet
	weights    scoring.WeightConfig
	biasCfg    bias.Config
	ledger     *ledger.Ledger
	aggregator *report.Aggregator
	logger     *slog.Logger
	tracker    Tracker
	clock      func() time.Time

	mu   sync.RWMutex
	runs map[string]*Run
}

// Tracker instruments one assessment run. It returns the context to run the
// pipeline under and a completion callback invoked with the run's outcome.
type Tracker func(ctx context.Context, profileID string) (context.Context, func(error))

// Options carries the engine's tunable configuration. Zero values fall back
// to the built-in defaults.
type Options struct {
	RuleSet *classifier.RuleSet
	Weights scoring.WeightConfig
	BiasCfg bias.Config
	Logger  *slog.Logger
	Tracker Tracker
}

func New(l *ledger.Ledger, opts Options) (*Engine, error) {
	cls, err := classifier.New()
	if err != nil {
		return nil, err
	}
	if opts.RuleSet == nil {
		opts.RuleSet = classifier.DefaultRuleSet()
	}
	if opts.Weights == nil {
		opts.Weights = scoring.DefaultWeights()
	}
	if opts.BiasCfg.MinGroupSize == 0 {
		opts.BiasCfg = bias.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		classifier: cls,
		ruleSet:    opts.RuleSet,
		weights:    opts.Weights,
		biasCfg:    opts.BiasCfg,
		ledger:     l,
		aggregator: report.NewAggregator(l),
		logger:     opts.Logger,
		tracker:    opts.Tracker,
		clock:      time.Now,
		runs:       make(map[string]*Run),
	}, nil
}

// WithClock overrides clock for testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Submit runs the full assessment pipeline for one profile. Each completed
// step is appended to the run's audit chain before the next begins, so a
// failed run still leaves a verifiable partial trail.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (run *Run, err error) {
	if req.Profile == nil {
		return nil, fmt.Errorf("nil profile")
	}
	if e.tracker != nil {
		var done func(error)
		ctx, done = e.tracker(ctx, req.Profile.ID)
		defer func() { done(err) }()
	}
	if err := req.Profile.Validate(); err != nil {
		return nil, err
	}

	run = &Run{
		ID:             uuid.NewString(),
		ProfileID:      req.Profile.ID,
		ProfileVersion: req.Profile.Version,
		CreatedAt:      e.clock().UTC(),
		Profile:        req.Profile,
	}
	log := e.logger.With("run_id", run.ID, "profile_id", run.ProfileID)

	if err := e.append(ctx, run.ID, ledger.EventProfileSubmitted, req.Actor, req.Profile); err != nil {
		return nil, err
	}

	classification, err := e.classifier.Classify(req.Profile, e.ruleSet)
	if err != nil {
		return e.fail(ctx, run, req.Actor, fmt.Errorf("classification failed: %w", err))
	}
	run.Classification = classification
	if err := e.append(ctx, run.ID, ledger.EventClassification, req.Actor, classification); err != nil {
		return nil, err
	}
	log.Info("profile classified",
		"tier", classification.Tier,
		"rule_set_version", classification.RuleSetVersion,
		"matched_rules", len(classification.Matched))

	score, err := scoring.Score(req.Profile, classification, e.weights)
	if err != nil {
		return e.fail(ctx, run, req.Actor, fmt.Errorf("scoring failed: %w", err))
	}
	run.RiskScore = score
	if err := e.append(ctx, run.ID, ledger.EventRiskScore, req.Actor, score); err != nil {
		return nil, err
	}
	log.Info("risk scored", "score", score.Score, "confidence", score.Confidence)

	if len(req.Outcomes) > 0 {
		metrics := req.FairnessMetrics
		if len(metrics) == 0 {
			metrics = []string{bias.MetricDemographicParity, bias.MetricEqualOpportunity}
		}
		level := req.SignificanceLevel
		if level == 0 {
			level = defaultSignificance
		}
		analysis, err := bias.Analyze(req.Outcomes, req.ProtectedAttributes, metrics, level, e.biasCfg)
		if err != nil {
			return e.fail(ctx, run, req.Actor, fmt.Errorf("bias analysis failed: %w", err))
		}
		run.Bias = analysis
		if err := e.append(ctx, run.ID, ledger.EventBiasAnalysis, req.Actor, analysis); err != nil {
			return nil, err
		}
		log.Info("bias analyzed",
			"overall_bias_score", analysis.OverallBiasScore,
			"affected_groups", len(analysis.AffectedGroups))
	}

	run.Status = RunStatusCompleted
	e.storeRun(run)
	return run, nil
}

// Report generates a framework compliance report over the run's audit chain
// and records the generation itself as an audit event.
func (e *Engine) Report(ctx context.Context, runID string, fw report.Framework, asOfSeq uint64) (*report.Report, error) {
	if _, err := e.GetRun(runID); err != nil {
		return nil, err
	}
	rep, err := e.aggregator.Generate(ctx, runID, fw, asOfSeq)
	if err != nil {
		return nil, err
	}
	_, hash, err := rep.Canonical()
	if err != nil {
		return nil, err
	}
	if _, err := e.ledger.Append(ctx, runID, ledger.EventReportGenerated, "", map[string]any{
		"framework":        string(fw),
		"report_hash":      hash,
		"compliance_score": rep.ComplianceScore,
		"as_of_sequence":   rep.AsOfSequence,
	}); err != nil {
		return nil, err
	}
	return rep, nil
}

// Redact drops the payload of an audit event and records who removed it and
// why. The run's chain remains verifiable afterwards.
func (e *Engine) Redact(ctx context.Context, runID string, seq uint64, actor, reason string) (*ledger.Event, error) {
	if _, err := e.GetRun(runID); err != nil {
		return nil, err
	}
	ev, err := e.ledger.Redact(ctx, runID, seq, actor, reason)
	if err != nil {
		return nil, err
	}
	e.logger.Info("audit event redacted", "run_id", runID, "sequence", seq, "actor", actor)
	return ev, nil
}

// Verify checks the run's audit chain end to end.
func (e *Engine) Verify(ctx context.Context, runID string) error {
	if _, err := e.GetRun(runID); err != nil {
		return err
	}
	return e.ledger.Verify(ctx, runID, 0, 0)
}

// AuditTrail returns the run's events in [from, to]; to == 0 means the head.
func (e *Engine) AuditTrail(ctx context.Context, runID string, from, to uint64) ([]ledger.Event, error) {
	if _, err := e.GetRun(runID); err != nil {
		return nil, err
	}
	return e.ledger.List(ctx, runID, from, to)
}

// AuditStats summarizes the run's chain: per-type event counts, redactions,
// and head hash.
func (e *Engine) AuditStats(ctx context.Context, runID string) (*ledger.Stats, error) {
	if _, err := e.GetRun(runID); err != nil {
		return nil, err
	}
	return e.ledger.Stats(ctx, runID)
}

// GetRun returns a run by ID.
func (e *Engine) GetRun(runID string) (*Run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	run, ok := e.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (e *Engine) ListRuns() []*Run {
	e.mu.RLock()
	defer e.mu.RUnlock()
	runs := make([]*Run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs
}

// RuleSetVersion reports the active classification rule set version.
func (e *Engine) RuleSetVersion() string {
	return e.ruleSet.Version
}

func (e *Engine) fail(ctx context.Context, run *Run, actor string, cause error) (*Run, error) {
	run.Status = RunStatusFailed
	run.Error = cause.Error()
	e.storeRun(run)
	e.logger.Error("assessment run failed", "run_id", run.ID, "error", cause)
	return nil, cause
}

func (e *Engine) storeRun(run *Run) {
	e.mu.Lock()
	e.runs[run.ID] = run
	e.mu.Unlock()
}

// append records a pipeline result as an audit event. Structs are flattened
// through JSON into the map payload shape the ledger hashes canonically.
func (e *Engine) append(ctx context.Context, runID string, et ledger.EventType, actor string, result any) error {
	payload, err := toPayload(result)
	if err != nil {
		return fmt.Errorf("audit payload for %s: %w", et, err)
	}
	if _, err := e.ledger.Append(ctx, runID, et, actor, payload); err != nil {
		return fmt.Errorf("audit append for %s: %w", et, err)
	}
	return nil
}

func toPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
