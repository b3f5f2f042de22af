package config

import (
	"fmt"
	"os"

	"github.com/aletheia-ai/aegis/pkg/classifier"
	"github.com/aletheia-ai/aegis/pkg/scoring"
)

// LoadRuleSet reads a classification rule set from a YAML file. An empty
// path selects the built-in rule set.
func LoadRuleSet(path string) (*classifier.RuleSet, error) {
	if path == "" {
		return classifier.DefaultRuleSet(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rule set %q: %w", path, err)
	}
	rs, err := classifier.LoadRuleSet(data)
	if err != nil {
		return nil, fmt.Errorf("parse rule set %q: %w", path, err)
	}
	return rs, nil
}

// LoadWeights reads a factor weight configuration from a YAML file. An empty
// path selects the built-in weights.
func LoadWeights(path string) (scoring.WeightConfig, error) {
	if path == "" {
		return scoring.DefaultWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load weights %q: %w", path, err)
	}
	cfg, err := scoring.LoadWeights(data)
	if err != nil {
		return nil, fmt.Errorf("parse weights %q: %w", path, err)
	}
	return cfg, nil
}
