package classifier

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/aletheia-ai/aegis/pkg/profile"
)

// RuleMatch records one rule that fired, in evaluation order.
type RuleMatch struct {
	RuleID   string `json:"rule_id"`
	Tier     Tier   `json:"tier"`
	Priority int    `json:"priority"`
}

// TraceEntry records the evaluation of a single rule, matched or not, so a
// classification can be audited after the fact.
type TraceEntry struct {
	RuleID  string `json:"rule_id"`
	Matched bool   `json:"matched"`
}

// ClassificationResult is the outcome of classifying one profile version
// against one rule set version.
type ClassificationResult struct {
	ProfileID      string `json:"profile_id"`
	ProfileVersion int    `json:"profile_version"`
	RuleSetVersion string `json:"rule_set_version"`
	Tier           Tier   `json:"tier"`
	// Matched lists every rule that fired, ordered by priority then ID.
	Matched []RuleMatch  `json:"matched_rules"`
	Trace   []TraceEntry `json:"trace"`

	Requirements          []string `json:"requirements"`
	MitigationMeasures    []string `json:"mitigation_measures"`
	DocumentationRequired []string `json:"documentation_required"`
	TimelineMonths        int      `json:"timeline_months"`
}

// Classifier compiles and evaluates rule predicates. Programs are cached per
// predicate; evaluation itself is pure, so a Classifier is safe for
// concurrent use across independent profiles.
type Classifier struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// New creates a classifier with a CEL environment exposing the profile.
func New() (*Classifier, error) {
	env, err := cel.NewEnv(
		cel.Variable("profile", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Classifier{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Classify evaluates every rule in the set against the profile. The first
// matched rule (in priority order) selects the tier, except that any match
// targeting the unacceptable tier is absorbing and wins regardless of order.
// A profile matching no rule is minimal risk.
func (c *Classifier) Classify(p *profile.AISystemProfile, rs *RuleSet) (*ClassificationResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, fmt.Errorf("nil rule set")
	}

	input := map[string]any{"profile": p.Attributes()}

	var (
		matched []RuleMatch
		trace   = make([]TraceEntry, 0, len(rs.Rules))
	)
	for _, rule := range rs.Rules {
		hit, err := c.evaluate(rule.Predicate, input)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		trace = append(trace, TraceEntry{RuleID: rule.ID, Matched: hit})
		if hit {
			matched = append(matched, RuleMatch{RuleID: rule.ID, Tier: rule.Tier, Priority: rule.Priority})
		}
	}

	tier := resolveTier(matched)

	result := &ClassificationResult{
		ProfileID:      p.ID,
		ProfileVersion: p.Version,
		RuleSetVersion: rs.Version,
		Tier:           tier,
		Matched:        matched,
		Trace:          trace,

		Requirements:          requirementsForTier(tier),
		MitigationMeasures:    mitigationsForTier(tier),
		DocumentationRequired: documentationForTier(tier),
		TimelineMonths:        timelineMonths(tier, p.Sector),
	}
	return result, nil
}

// resolveTier applies the absorption rule: unacceptable wins outright,
// otherwise the first match in evaluation order decides.
func resolveTier(matched []RuleMatch) Tier {
	for _, m := range matched {
		if m.Tier == TierUnacceptable {
			return TierUnacceptable
		}
	}
	if len(matched) > 0 {
		return matched[0].Tier
	}
	return TierMinimal
}

func (c *Classifier) evaluate(expr string, input map[string]any) (bool, error) {
	c.mu.RLock()
	prg, hit := c.cache[expr]
	c.mu.RUnlock()

	if !hit {
		c.mu.Lock()
		if prg, hit = c.cache[expr]; !hit {
			ast, issues := c.env.Compile(expr)
			if issues != nil && issues.Err() != nil {
				c.mu.Unlock()
				return false, fmt.Errorf("compile: %w", issues.Err())
			}
			p, err := c.env.Program(ast,
				cel.InterruptCheckFrequency(100),
				cel.CostLimit(10000),
			)
			if err != nil {
				c.mu.Unlock()
				return false, fmt.Errorf("program: %w", err)
			}
			c.cache[expr] = p
			prg = p
		}
		c.mu.Unlock()
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("predicate result is not bool")
	}
	return val, nil
}
