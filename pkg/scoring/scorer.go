// Package scoring derives a numeric risk score in [0,100] from a classified
// profile. The scorer is a pure function: identical (profile, classification,
// weight config) inputs always produce the identical score and breakdown.
package scoring

import (
	"fmt"
	"math"

	"github.com/aletheia-ai/aegis/pkg/classifier"
	"github.com/aletheia-ai/aegis/pkg/profile"
)

// ContributionTierBase names the band-floor contribution in breakdowns.
const ContributionTierBase = "tier_base"

// UnknownTierError reports a classification tier absent from the weight
// configuration.
type UnknownTierError struct {
	Tier classifier.Tier
}

func (e *UnknownTierError) Error() string {
	return fmt.Sprintf("no factor weights configured for tier %q", e.Tier)
}

// RiskScore is the weighted multi-factor risk assessment for one profile.
type RiskScore struct {
	ProfileID      string          `json:"profile_id"`
	ProfileVersion int             `json:"profile_version"`
	Tier           classifier.Tier `json:"tier"`
	// Score is in [0,100]; the sum of Contributions equals it within 1e-6.
	Score         float64            `json:"score"`
	FactorScores  map[string]float64 `json:"factor_scores"`
	Contributions map[string]float64 `json:"contributions"`
	Confidence    float64            `json:"confidence"`
}

// tierBand is the score interval a tier maps into. Bands do not overlap, so
// the score is monotonic non-decreasing in tier severity regardless of the
// factor values.
func tierBand(t classifier.Tier) (floor, ceil float64) {
	switch t {
	case classifier.TierUnacceptable:
		return 85, 100
	case classifier.TierHigh:
		return 50, 85
	case classifier.TierLimited:
		return 25, 50
	default:
		return 0, 25
	}
}

// Score computes the risk score for a classified profile. The tier selects
// both the weight set and the score band; normalized factor sub-scores place
// the result within the band.
func Score(p *profile.AISystemProfile, c *classifier.ClassificationResult, cfg WeightConfig) (*RiskScore, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("nil classification")
	}
	if !c.Tier.Valid() {
		return nil, &UnknownTierError{Tier: c.Tier}
	}
	weights, ok := cfg[c.Tier]
	if !ok {
		return nil, &UnknownTierError{Tier: c.Tier}
	}

	scores := factorScores(p)

	totalWeight := 0.0
	for factor, w := range weights {
		if _, known := scores[factor]; !known {
			return nil, fmt.Errorf("weight configured for unknown factor %q", factor)
		}
		totalWeight += w
	}
	if totalWeight <= 0 {
		return nil, fmt.Errorf("tier %s has zero total factor weight", c.Tier)
	}

	floor, ceil := tierBand(c.Tier)
	span := ceil - floor

	contributions := map[string]float64{ContributionTierBase: floor}
	total := floor
	for factor, w := range weights {
		contribution := span * (w / totalWeight) * scores[factor]
		contributions[factor] = contribution
		total += contribution
	}

	return &RiskScore{
		ProfileID:      p.ID,
		ProfileVersion: p.Version,
		Tier:           c.Tier,
		Score:          clamp(total, 0, 100),
		FactorScores:   scores,
		Contributions:  contributions,
		Confidence:     confidence(p, scores),
	}, nil
}

// confidence estimates how much to trust the score, from input completeness
// and cross-factor agreement. Bounded to [0.3, 1.0] so a sparse profile
// still yields a usable signal.
func confidence(p *profile.AISystemProfile, scores map[string]float64) float64 {
	completeness := []bool{
		p.Name != "",
		p.HumanOversight != "",
		len(p.UseCases) > 0,
		len(p.DataTypes) > 0,
		p.DeploymentContext != "",
	}
	present := 0
	for _, ok := range completeness {
		if ok {
			present++
		}
	}
	base := float64(present) / float64(len(completeness))

	if len(scores) > 1 {
		mean := 0.0
		for _, s := range scores {
			mean += s
		}
		mean /= float64(len(scores))
		variance := 0.0
		for _, s := range scores {
			variance += (s - mean) * (s - mean)
		}
		variance /= float64(len(scores))
		base *= math.Max(0.5, 1.0-variance)
	}

	return clamp(base, 0.3, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
