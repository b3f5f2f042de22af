package classifier

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Rule is a single predicate→tier mapping. Predicates are CEL expressions
// over a `profile` variable holding the flattened profile attributes.
type Rule struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Predicate   string `json:"predicate" yaml:"predicate"`
	Tier        Tier   `json:"tier" yaml:"tier"`
	// Priority orders evaluation; lower values are considered first.
	// Rules sharing a priority and tier are reported together as ties.
	Priority int `json:"priority" yaml:"priority"`
}

// RuleSet is a versioned, ordered collection of rules. Versions are semver
// so callers can compare rule set revisions.
type RuleSet struct {
	Version string `json:"version" yaml:"version"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// NewRuleSet validates the version and rules and returns a rule set with
// rules in evaluation order (priority, then ID for a stable tiebreak).
func NewRuleSet(version string, rules []Rule) (*RuleSet, error) {
	if _, err := semver.NewVersion(version); err != nil {
		return nil, fmt.Errorf("rule set version %q is not semver: %w", version, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rule set %s has no rules", version)
	}

	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule set %s contains a rule without an ID", version)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("rule set %s: duplicate rule ID %s", version, r.ID)
		}
		seen[r.ID] = true
		if !r.Tier.Valid() {
			return nil, fmt.Errorf("rule %s targets unknown tier %q", r.ID, r.Tier)
		}
		if r.Predicate == "" {
			return nil, fmt.Errorf("rule %s has an empty predicate", r.ID)
		}
	}

	ordered := append([]Rule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	return &RuleSet{Version: version, Rules: ordered}, nil
}

// LoadRuleSet parses a YAML rule set document.
func LoadRuleSet(raw []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("rule set parse failed: %w", err)
	}
	return NewRuleSet(rs.Version, rs.Rules)
}

// Newer reports whether the rule set's version is strictly newer than other.
func (rs *RuleSet) Newer(other *RuleSet) bool {
	a, errA := semver.NewVersion(rs.Version)
	b, errB := semver.NewVersion(other.Version)
	if errA != nil || errB != nil {
		return false
	}
	return a.GreaterThan(b)
}
