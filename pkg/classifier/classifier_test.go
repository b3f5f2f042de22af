package classifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aletheia-ai/aegis/pkg/classifier"
	"github.com/aletheia-ai/aegis/pkg/profile"
)

func newClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	c, err := classifier.New()
	require.NoError(t, err)
	return c
}

func baseProfile() *profile.AISystemProfile {
	return &profile.AISystemProfile{
		ID:                "sys-001",
		Version:           1,
		Purpose:           "document_summarization",
		Sector:            "retail",
		InteractionMode:   profile.InteractionInternal,
		DecisionImpact:    profile.ImpactAdvisory,
		DataTypes:         []string{"text_data"},
		DeploymentContext: "internal",
	}
}

func TestClassify_NoMatchIsMinimal(t *testing.T) {
	c := newClassifier(t)
	result, err := c.Classify(baseProfile(), classifier.DefaultRuleSet())
	require.NoError(t, err)

	assert.Equal(t, classifier.TierMinimal, result.Tier)
	assert.Empty(t, result.Matched)
	assert.Len(t, result.Trace, len(classifier.DefaultRuleSet().Rules))
}

func TestClassify_SocialScoringIsUnacceptable(t *testing.T) {
	c := newClassifier(t)
	p := baseProfile()
	p.Purpose = "citizen social_scoring platform"

	result, err := c.Classify(p, classifier.DefaultRuleSet())
	require.NoError(t, err)
	assert.Equal(t, classifier.TierUnacceptable, result.Tier)
	assert.Zero(t, result.TimelineMonths)
	assert.Contains(t, result.Requirements, "immediate_prohibition")
}

func TestClassify_RegulatedSectorIsHigh(t *testing.T) {
	c := newClassifier(t)
	p := baseProfile()
	p.Sector = "financial_services"
	p.InteractionMode = profile.InteractionDirectCustomer
	p.DecisionImpact = profile.ImpactAutomatedDecision
	p.DataTypes = []string{"personal_data", "financial_data"}
	p.DeploymentContext = "production"

	result, err := c.Classify(p, classifier.DefaultRuleSet())
	require.NoError(t, err)

	assert.Equal(t, classifier.TierHigh, result.Tier)
	// High-risk rules outrank the transparency rules that also match.
	require.NotEmpty(t, result.Matched)
	assert.Equal(t, "high.decision-impact", result.Matched[0].RuleID)
	assert.Contains(t, result.Requirements, "risk_management_system")
	assert.Equal(t, 24, result.TimelineMonths)
}

func TestClassify_UnacceptableAbsorbsOtherMatches(t *testing.T) {
	c := newClassifier(t)
	p := baseProfile()
	// Matches the high-risk sector rule AND a prohibited practice.
	p.Sector = "law_enforcement"
	p.DataTypes = []string{"biometric"}
	p.DeploymentContext = "public_space"
	p.RealTime = true

	result, err := c.Classify(p, classifier.DefaultRuleSet())
	require.NoError(t, err)
	assert.Equal(t, classifier.TierUnacceptable, result.Tier)
	assert.Greater(t, len(result.Matched), 1)
}

func TestClassify_ChatbotIsLimited(t *testing.T) {
	c := newClassifier(t)
	p := baseProfile()
	p.Purpose = "customer support chat"
	p.InteractionMode = profile.InteractionDirect
	p.DeploymentContext = "production"

	result, err := c.Classify(p, classifier.DefaultRuleSet())
	require.NoError(t, err)
	assert.Equal(t, classifier.TierLimited, result.Tier)
	assert.Equal(t, 12, result.TimelineMonths)
}

func TestClassify_LawEnforcementTimelineExtended(t *testing.T) {
	c := newClassifier(t)
	p := baseProfile()
	p.Sector = "law_enforcement"

	result, err := c.Classify(p, classifier.DefaultRuleSet())
	require.NoError(t, err)
	assert.Equal(t, classifier.TierHigh, result.Tier)
	assert.Equal(t, 30, result.TimelineMonths)
}

func TestClassify_IncompleteProfileFails(t *testing.T) {
	c := newClassifier(t)
	_, err := c.Classify(&profile.AISystemProfile{ID: "sys-x"}, classifier.DefaultRuleSet())
	require.Error(t, err)

	var incomplete *profile.IncompleteProfileError
	assert.ErrorAs(t, err, &incomplete)
}

func TestClassify_Deterministic(t *testing.T) {
	c := newClassifier(t)
	p := baseProfile()
	p.Sector = "healthcare"

	first, err := c.Classify(p, classifier.DefaultRuleSet())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := c.Classify(p, classifier.DefaultRuleSet())
		require.NoError(t, err)
		assert.Equal(t, first.Tier, again.Tier)
		assert.Equal(t, first.Matched, again.Matched)
		assert.Equal(t, first.Trace, again.Trace)
	}
}

func TestNewRuleSet_RejectsDuplicateIDs(t *testing.T) {
	_, err := classifier.NewRuleSet("1.0.0", []classifier.Rule{
		{ID: "r1", Predicate: "true", Tier: classifier.TierLimited},
		{ID: "r1", Predicate: "false", Tier: classifier.TierHigh},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNewRuleSet_RejectsBadVersion(t *testing.T) {
	_, err := classifier.NewRuleSet("not-semver", []classifier.Rule{
		{ID: "r1", Predicate: "true", Tier: classifier.TierLimited},
	})
	require.Error(t, err)
}

func TestLoadRuleSet_YAML(t *testing.T) {
	doc := []byte(`
version: "2.0.0"
rules:
  - id: custom.always-high
    predicate: 'profile.sector == "mining"'
    tier: high
    priority: 5
`)
	rs, err := classifier.LoadRuleSet(doc)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", rs.Version)
	require.Len(t, rs.Rules, 1)

	older := classifier.DefaultRuleSet()
	assert.True(t, rs.Newer(older))
}

func TestClassify_BadPredicateSurfacesRuleID(t *testing.T) {
	rs, err := classifier.NewRuleSet("1.0.0", []classifier.Rule{
		{ID: "broken.rule", Predicate: `profile.sector +`, Tier: classifier.TierHigh},
	})
	require.NoError(t, err)

	c := newClassifier(t)
	_, err = c.Classify(baseProfile(), rs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.rule")
}
