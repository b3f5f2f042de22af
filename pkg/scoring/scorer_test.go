package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aletheia-ai/aegis/pkg/classifier"
	"github.com/aletheia-ai/aegis/pkg/profile"
	"github.com/aletheia-ai/aegis/pkg/scoring"
)

func highRiskProfile() *profile.AISystemProfile {
	return &profile.AISystemProfile{
		ID:                "sys-001",
		Version:           1,
		Purpose:           "credit_scoring",
		Sector:            "financial_services",
		InteractionMode:   profile.InteractionDirectCustomer,
		DecisionImpact:    profile.ImpactAutomatedDecision,
		DataTypes:         []string{"personal_data", "financial_data"},
		DeploymentContext: "production",
		HumanOversight:    profile.OversightMinimal,
	}
}

func classification(t classifier.Tier) *classifier.ClassificationResult {
	return &classifier.ClassificationResult{
		ProfileID:      "sys-001",
		ProfileVersion: 1,
		RuleSetVersion: classifier.DefaultRuleSetVersion,
		Tier:           t,
	}
}

func TestScore_HighTierLandsInBand(t *testing.T) {
	score, err := scoring.Score(highRiskProfile(), classification(classifier.TierHigh), scoring.DefaultWeights())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, score.Score, 60.0)
	assert.LessOrEqual(t, score.Score, 85.0)
	assert.Equal(t, classifier.TierHigh, score.Tier)
	assert.InDelta(t, 1.0, score.FactorScores[scoring.FactorDataSensitivity], 1e-9)
}

func TestScore_ContributionsSumToScore(t *testing.T) {
	for _, tier := range []classifier.Tier{
		classifier.TierMinimal, classifier.TierLimited, classifier.TierHigh, classifier.TierUnacceptable,
	} {
		score, err := scoring.Score(highRiskProfile(), classification(tier), scoring.DefaultWeights())
		require.NoError(t, err)

		total := 0.0
		for _, c := range score.Contributions {
			total += c
		}
		assert.InDelta(t, score.Score, total, 1e-6, "tier %s", tier)
		assert.Contains(t, score.Contributions, scoring.ContributionTierBase)
	}
}

func TestScore_MonotonicInTierSeverity(t *testing.T) {
	p := highRiskProfile()
	var prev float64 = -1
	for _, tier := range []classifier.Tier{
		classifier.TierMinimal, classifier.TierLimited, classifier.TierHigh, classifier.TierUnacceptable,
	} {
		score, err := scoring.Score(p, classification(tier), scoring.DefaultWeights())
		require.NoError(t, err)
		assert.Greater(t, score.Score, prev, "tier %s must outrank less severe tiers", tier)
		prev = score.Score
	}
}

func TestScore_MonotonicInFactor(t *testing.T) {
	low := highRiskProfile()
	low.DataTypes = []string{"telemetry", "telemetry_aggregate"}

	high := highRiskProfile()
	high.DataTypes = []string{"personal_data", "health_data"}

	cls := classification(classifier.TierHigh)
	cfg := scoring.DefaultWeights()

	scoreLow, err := scoring.Score(low, cls, cfg)
	require.NoError(t, err)
	scoreHigh, err := scoring.Score(high, cls, cfg)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, scoreHigh.Score, scoreLow.Score)
}

func TestScore_UnknownTier(t *testing.T) {
	_, err := scoring.Score(highRiskProfile(), classification(classifier.Tier("apocalyptic")), scoring.DefaultWeights())
	require.Error(t, err)

	var unknown *scoring.UnknownTierError
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, classifier.Tier("apocalyptic"), unknown.Tier)
}

func TestScore_TierMissingFromConfig(t *testing.T) {
	cfg := scoring.WeightConfig{
		classifier.TierHigh: {scoring.FactorDataSensitivity: 1},
	}
	_, err := scoring.Score(highRiskProfile(), classification(classifier.TierLimited), cfg)

	var unknown *scoring.UnknownTierError
	assert.ErrorAs(t, err, &unknown)
}

func TestScore_ConfidenceBounded(t *testing.T) {
	sparse := &profile.AISystemProfile{
		ID:                "sys-002",
		Purpose:           "triage",
		Sector:            "retail",
		InteractionMode:   profile.InteractionInternal,
		DecisionImpact:    profile.ImpactAdvisory,
		DataTypes:         []string{"text_data"},
		DeploymentContext: "internal",
	}
	score, err := scoring.Score(sparse, classification(classifier.TierMinimal), scoring.DefaultWeights())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score.Confidence, 0.3)
	assert.LessOrEqual(t, score.Confidence, 1.0)

	full, err := scoring.Score(highRiskProfile(), classification(classifier.TierHigh), scoring.DefaultWeights())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, full.Confidence, score.Confidence)
}

func TestLoadWeights_Valid(t *testing.T) {
	doc := []byte(`
high:
  data_sensitivity: 0.5
  decision_autonomy: 0.3
  population_reach: 0.2
`)
	cfg, err := scoring.LoadWeights(doc)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfg[classifier.TierHigh][scoring.FactorDataSensitivity], 1e-9)
}

func TestLoadWeights_RejectsNegative(t *testing.T) {
	_, err := scoring.LoadWeights([]byte("high:\n  data_sensitivity: -1\n"))
	require.Error(t, err)
}

func TestLoadWeights_RejectsUnknownTier(t *testing.T) {
	_, err := scoring.LoadWeights([]byte("catastrophic:\n  data_sensitivity: 1\n"))
	require.Error(t, err)
}
