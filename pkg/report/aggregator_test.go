package report_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aletheia-ai/aegis/pkg/bias"
	"github.com/aletheia-ai/aegis/pkg/classifier"
	"github.com/aletheia-ai/aegis/pkg/ledger"
	"github.com/aletheia-ai/aegis/pkg/profile"
	"github.com/aletheia-ai/aegis/pkg/report"
	"github.com/aletheia-ai/aegis/pkg/scoring"
)

func mustPayload(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	return payload
}

func fixedClock() func() time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

type runFixture struct {
	profile        *profile.AISystemProfile
	classification *classifier.ClassificationResult
	score          *scoring.RiskScore
	bias           *bias.BiasAnalysis
}

func highRiskFixture() runFixture {
	return runFixture{
		profile: &profile.AISystemProfile{
			ID:                "sys-001",
			Version:           1,
			Purpose:           "credit_scoring",
			Sector:            "financial_services",
			InteractionMode:   profile.InteractionDirectCustomer,
			DecisionImpact:    profile.ImpactAutomatedDecision,
			DataTypes:         []string{"personal_data", "financial_data"},
			DeploymentContext: "production",
			HumanOversight:    profile.OversightModerate,
		},
		classification: &classifier.ClassificationResult{
			ProfileID:             "sys-001",
			ProfileVersion:        1,
			RuleSetVersion:        classifier.DefaultRuleSetVersion,
			Tier:                  classifier.TierHigh,
			MitigationMeasures:    []string{"Implement comprehensive risk management system"},
			DocumentationRequired: []string{"Technical documentation"},
		},
		score: &scoring.RiskScore{
			ProfileID:      "sys-001",
			ProfileVersion: 1,
			Tier:           classifier.TierHigh,
			Score:          76.5,
			FactorScores: map[string]float64{
				scoring.FactorDataSensitivity:  1.0,
				scoring.FactorDecisionAutonomy: 0.6,
				scoring.FactorPopulationReach:  0.8,
			},
			Confidence: 0.8,
		},
		bias: &bias.BiasAnalysis{
			OverallBiasScore:  0.04,
			SignificanceLevel: 0.05,
			SampleSize:        200,
		},
	}
}

func seedRun(t *testing.T, l *ledger.Ledger, runID string, f runFixture) {
	t.Helper()
	ctx := context.Background()
	_, err := l.Append(ctx, runID, ledger.EventProfileSubmitted, "tester", mustPayload(t, f.profile))
	require.NoError(t, err)
	_, err = l.Append(ctx, runID, ledger.EventClassification, "tester", mustPayload(t, f.classification))
	require.NoError(t, err)
	_, err = l.Append(ctx, runID, ledger.EventRiskScore, "tester", mustPayload(t, f.score))
	require.NoError(t, err)
	_, err = l.Append(ctx, runID, ledger.EventBiasAnalysis, "tester", mustPayload(t, f.bias))
	require.NoError(t, err)
}

func requirementStatus(t *testing.T, rep *report.Report, id string) report.RequirementStatus {
	t.Helper()
	for _, r := range rep.Requirements {
		if r.ID == id {
			return r.Status
		}
	}
	t.Fatalf("requirement %s not in report", id)
	return ""
}

func TestGenerate_EUAIAct_CompliantHighRiskRun(t *testing.T) {
	l := ledger.New(ledger.NewMemoryStore()).WithClock(fixedClock())
	seedRun(t, l, "run-1", highRiskFixture())

	rep, err := report.NewAggregator(l).Generate(context.Background(), "run-1", report.FrameworkEUAIAct, 0)
	require.NoError(t, err)

	assert.True(t, rep.EvidenceComplete)
	assert.Equal(t, report.StatusSatisfied, requirementStatus(t, rep, "eu-ai-act.prohibited-practices"))
	assert.Equal(t, report.StatusSatisfied, requirementStatus(t, rep, "eu-ai-act.data-governance"))
	assert.Equal(t, report.StatusSatisfied, requirementStatus(t, rep, "eu-ai-act.human-oversight"))
	assert.Empty(t, rep.Gaps)
	assert.InDelta(t, 100, rep.ComplianceScore, 1e-9)
	assert.True(t, rep.CertificationReady)
	assert.Zero(t, rep.FineExposure.MaxFineEUR)
}

func TestGenerate_EUAIAct_GapsBlockCertification(t *testing.T) {
	f := highRiskFixture()
	f.profile.HumanOversight = profile.OversightMinimal
	f.bias.OverallBiasScore = 0.15

	l := ledger.New(ledger.NewMemoryStore()).WithClock(fixedClock())
	seedRun(t, l, "run-1", f)

	rep, err := report.NewAggregator(l).Generate(context.Background(), "run-1", report.FrameworkEUAIAct, 0)
	require.NoError(t, err)

	assert.Equal(t, report.StatusGap, requirementStatus(t, rep, "eu-ai-act.data-governance"))
	assert.Equal(t, report.StatusGap, requirementStatus(t, rep, "eu-ai-act.human-oversight"))
	assert.Contains(t, rep.CriticalGaps, "eu-ai-act.data-governance")
	assert.False(t, rep.CertificationReady)
	assert.Less(t, rep.ComplianceScore, 85.0)

	// High-risk obligations unmet: worst case Art. 9-15 penalty band.
	assert.Equal(t, int64(15_000_000), rep.FineExposure.MaxFineEUR)
	assert.InDelta(t, 3, rep.FineExposure.RevenuePercent, 1e-9)
}

func TestGenerate_ProhibitedPracticeFineExposure(t *testing.T) {
	f := highRiskFixture()
	f.classification.Tier = classifier.TierUnacceptable

	l := ledger.New(ledger.NewMemoryStore()).WithClock(fixedClock())
	seedRun(t, l, "run-1", f)

	rep, err := report.NewAggregator(l).Generate(context.Background(), "run-1", report.FrameworkEUAIAct, 0)
	require.NoError(t, err)

	assert.Equal(t, report.StatusGap, requirementStatus(t, rep, "eu-ai-act.prohibited-practices"))
	assert.False(t, rep.CertificationReady)
	assert.Equal(t, int64(35_000_000), rep.FineExposure.MaxFineEUR)
	assert.InDelta(t, 7, rep.FineExposure.RevenuePercent, 1e-9)
}

func TestGenerate_GDPR_DataMinimizationGap(t *testing.T) {
	l := ledger.New(ledger.NewMemoryStore()).WithClock(fixedClock())
	seedRun(t, l, "run-1", highRiskFixture())

	rep, err := report.NewAggregator(l).Generate(context.Background(), "run-1", report.FrameworkGDPR, 0)
	require.NoError(t, err)

	// Every declared data type is sensitive, so minimization reads as a gap.
	assert.Equal(t, report.StatusGap, requirementStatus(t, rep, "gdpr.data-minimization"))
	assert.Equal(t, report.StatusSatisfied, requirementStatus(t, rep, "gdpr.automated-decision-safeguards"))
	assert.Equal(t, int64(20_000_000), rep.FineExposure.MaxFineEUR)
}

func TestGenerate_VoluntaryFrameworksCarryNoFine(t *testing.T) {
	l := ledger.New(ledger.NewMemoryStore()).WithClock(fixedClock())
	seedRun(t, l, "run-1", highRiskFixture())

	for _, fw := range []report.Framework{report.FrameworkISO42001, report.FrameworkNISTAIRM} {
		rep, err := report.NewAggregator(l).Generate(context.Background(), "run-1", fw, 0)
		require.NoError(t, err)
		assert.Zero(t, rep.FineExposure.MaxFineEUR, "framework %s", fw)
	}
}

func TestGenerate_IdempotentCanonicalBytes(t *testing.T) {
	l := ledger.New(ledger.NewMemoryStore()).WithClock(fixedClock())
	seedRun(t, l, "run-1", highRiskFixture())
	agg := report.NewAggregator(l)

	first, err := agg.Generate(context.Background(), "run-1", report.FrameworkEUAIAct, 0)
	require.NoError(t, err)
	second, err := agg.Generate(context.Background(), "run-1", report.FrameworkEUAIAct, 0)
	require.NoError(t, err)

	bytes1, hash1, err := first.Canonical()
	require.NoError(t, err)
	bytes2, hash2, err := second.Canonical()
	require.NoError(t, err)

	assert.Equal(t, bytes1, bytes2)
	assert.Equal(t, hash1, hash2)
}

func TestGenerate_AsOfSequencePinsEvidence(t *testing.T) {
	f := highRiskFixture()
	l := ledger.New(ledger.NewMemoryStore()).WithClock(fixedClock())
	seedRun(t, l, "run-1", f)
	agg := report.NewAggregator(l)

	// Pin before the bias analysis event: evidence incomplete, and the
	// data-governance obligation cannot be shown satisfied.
	rep, err := agg.Generate(context.Background(), "run-1", report.FrameworkEUAIAct, 3)
	require.NoError(t, err)
	assert.False(t, rep.EvidenceComplete)
	assert.Equal(t, uint64(3), rep.AsOfSequence)
	assert.Equal(t, report.StatusGap, requirementStatus(t, rep, "eu-ai-act.data-governance"))
}

func TestGenerate_PinnedReportSurvivesLaterCorruption(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	l := ledger.New(store).WithClock(fixedClock())
	seedRun(t, l, "run-1", highRiskFixture())
	agg := report.NewAggregator(l)

	require.NoError(t, store.Tamper("run-1", 4, map[string]any{"overall_bias_score": 0.9}))

	// A report pinned before the corruption only verifies its prefix.
	rep, err := agg.Generate(ctx, "run-1", report.FrameworkEUAIAct, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rep.AsOfSequence)
	assert.False(t, rep.EvidenceComplete)

	_, err = agg.Generate(ctx, "run-1", report.FrameworkEUAIAct, 0)
	var unverified *report.UnverifiedLedgerError
	require.ErrorAs(t, err, &unverified)
}

func TestGenerate_RedactedEvidenceBecomesGap(t *testing.T) {
	l := ledger.New(ledger.NewMemoryStore()).WithClock(fixedClock())
	seedRun(t, l, "run-1", highRiskFixture())

	_, err := l.Redact(context.Background(), "run-1", 4, "dpo", "erasure request")
	require.NoError(t, err)

	rep, err := report.NewAggregator(l).Generate(context.Background(), "run-1", report.FrameworkEUAIAct, 0)
	require.NoError(t, err)

	assert.False(t, rep.EvidenceComplete)
	assert.Equal(t, report.StatusGap, requirementStatus(t, rep, "eu-ai-act.data-governance"))
}

func TestGenerate_UnverifiedLedgerRefused(t *testing.T) {
	store := ledger.NewMemoryStore()
	l := ledger.New(store).WithClock(fixedClock())
	seedRun(t, l, "run-1", highRiskFixture())
	require.NoError(t, store.Tamper("run-1", 2, map[string]any{"tier": "minimal"}))

	_, err := report.NewAggregator(l).Generate(context.Background(), "run-1", report.FrameworkEUAIAct, 0)
	require.Error(t, err)

	var unverified *report.UnverifiedLedgerError
	require.True(t, errors.As(err, &unverified))

	var chainErr *ledger.ChainIntegrityError
	assert.True(t, errors.As(err, &chainErr))
	assert.Equal(t, uint64(2), chainErr.Sequence)
}

func TestGenerate_UnknownFramework(t *testing.T) {
	l := ledger.New(ledger.NewMemoryStore()).WithClock(fixedClock())
	seedRun(t, l, "run-1", highRiskFixture())

	_, err := report.NewAggregator(l).Generate(context.Background(), "run-1", report.Framework("sox"), 0)
	var unknown *report.UnknownFrameworkError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, report.Framework("sox"), unknown.Framework)
}
