package scoring

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aletheia-ai/aegis/pkg/classifier"
)

// WeightConfig maps each tier to its factor weights. Weights are relative;
// sub-scores are combined as a weighted mean, so they need not sum to one.
type WeightConfig map[classifier.Tier]map[string]float64

// DefaultWeights returns the built-in weighting. Every tier shares the same
// relative emphasis; the tier itself contributes through the score band, not
// the weights.
func DefaultWeights() WeightConfig {
	weights := map[string]float64{
		FactorDataSensitivity:  0.35,
		FactorDecisionAutonomy: 0.30,
		FactorPopulationReach:  0.35,
	}
	cfg := make(WeightConfig, 4)
	for _, t := range []classifier.Tier{
		classifier.TierUnacceptable,
		classifier.TierHigh,
		classifier.TierLimited,
		classifier.TierMinimal,
	} {
		perTier := make(map[string]float64, len(weights))
		for k, v := range weights {
			perTier[k] = v
		}
		cfg[t] = perTier
	}
	return cfg
}

// LoadWeights parses a YAML weight configuration of the shape
// {tier: {factor_name: weight}} and validates it.
func LoadWeights(raw []byte) (WeightConfig, error) {
	var doc map[string]map[string]float64
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("weight config parse failed: %w", err)
	}

	cfg := make(WeightConfig, len(doc))
	for tierName, weights := range doc {
		tier, err := classifier.ParseTier(tierName)
		if err != nil {
			return nil, fmt.Errorf("weight config: %w", err)
		}
		total := 0.0
		for factor, w := range weights {
			if w < 0 {
				return nil, fmt.Errorf("weight config: tier %s factor %s has negative weight", tierName, factor)
			}
			total += w
		}
		if total == 0 {
			return nil, fmt.Errorf("weight config: tier %s has zero total weight", tierName)
		}
		cfg[tier] = weights
	}
	return cfg, nil
}
