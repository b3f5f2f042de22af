package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aletheia-ai/aegis/pkg/bias"
	"github.com/aletheia-ai/aegis/pkg/classifier"
	"github.com/aletheia-ai/aegis/pkg/engine"
	"github.com/aletheia-ai/aegis/pkg/ledger"
	"github.com/aletheia-ai/aegis/pkg/profile"
	"github.com/aletheia-ai/aegis/pkg/report"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(ledger.New(ledger.NewMemoryStore()), engine.Options{})
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return e.WithClock(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	})
}

func creditScoringProfile() *profile.AISystemProfile {
	return &profile.AISystemProfile{
		ID:                "sys-credit",
		Version:           1,
		Purpose:           "credit_scoring",
		Sector:            "financial_services",
		InteractionMode:   profile.InteractionDirectCustomer,
		DecisionImpact:    profile.ImpactAutomatedDecision,
		DataTypes:         []string{"personal_data", "financial_data"},
		DeploymentContext: "production",
		HumanOversight:    profile.OversightModerate,
	}
}

// loanOutcomes approves 60% of one gender and 50% of the other, 40 subjects
// each, all eligible. Large enough for significance testing.
func loanOutcomes() []bias.OutcomeRecord {
	outcomes := make([]bias.OutcomeRecord, 0, 80)
	for i := 0; i < 40; i++ {
		outcomes = append(outcomes, bias.OutcomeRecord{
			Positive:   i < 24,
			Eligible:   true,
			Attributes: map[string]string{"gender": "female"},
		})
		outcomes = append(outcomes, bias.OutcomeRecord{
			Positive:   i < 20,
			Eligible:   true,
			Attributes: map[string]string{"gender": "male"},
		})
	}
	return outcomes
}

func TestSubmit_CompletesWithoutOutcomes(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	run, err := e.Submit(ctx, engine.SubmitRequest{
		Profile: creditScoringProfile(),
		Actor:   "analyst",
	})
	require.NoError(t, err)

	assert.Equal(t, engine.RunStatusCompleted, run.Status)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "sys-credit", run.ProfileID)
	require.NotNil(t, run.Classification)
	assert.Equal(t, classifier.TierHigh, run.Classification.Tier)
	require.NotNil(t, run.RiskScore)
	assert.Nil(t, run.Bias)

	trail, err := e.AuditTrail(ctx, run.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, ledger.EventProfileSubmitted, trail[0].Type)
	assert.Equal(t, ledger.EventClassification, trail[1].Type)
	assert.Equal(t, ledger.EventRiskScore, trail[2].Type)
	assert.Equal(t, "analyst", trail[0].Actor)

	require.NoError(t, e.Verify(ctx, run.ID))
}

func TestSubmit_RecordsBiasAnalysis(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	run, err := e.Submit(ctx, engine.SubmitRequest{
		Profile:             creditScoringProfile(),
		Actor:               "analyst",
		Outcomes:            loanOutcomes(),
		ProtectedAttributes: []string{"gender"},
	})
	require.NoError(t, err)

	require.NotNil(t, run.Bias)
	assert.Equal(t, 80, run.Bias.SampleSize)
	assert.InDelta(t, 0.05, run.Bias.SignificanceLevel, 1e-9)

	trail, err := e.AuditTrail(ctx, run.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, trail, 4)
	assert.Equal(t, ledger.EventBiasAnalysis, trail[3].Type)
}

func TestSubmit_RejectsNilProfile(t *testing.T) {
	e := newEngine(t)
	_, err := e.Submit(context.Background(), engine.SubmitRequest{})
	assert.Error(t, err)
	assert.Empty(t, e.ListRuns())
}

func TestSubmit_RejectsIncompleteProfile(t *testing.T) {
	e := newEngine(t)
	p := creditScoringProfile()
	p.Sector = ""
	p.Purpose = ""

	_, err := e.Submit(context.Background(), engine.SubmitRequest{Profile: p})
	var incomplete *profile.IncompleteProfileError
	require.ErrorAs(t, err, &incomplete)
	assert.ElementsMatch(t, []string{"sector", "purpose"}, incomplete.Missing)
	assert.Empty(t, e.ListRuns())
}

func TestSubmit_TrackerObservesOutcome(t *testing.T) {
	ctx := context.Background()

	var tracked []string
	var outcomes []error
	tracker := func(ctx context.Context, profileID string) (context.Context, func(error)) {
		tracked = append(tracked, profileID)
		return ctx, func(err error) { outcomes = append(outcomes, err) }
	}

	e, err := engine.New(ledger.New(ledger.NewMemoryStore()), engine.Options{Tracker: tracker})
	require.NoError(t, err)

	_, err = e.Submit(ctx, engine.SubmitRequest{Profile: creditScoringProfile(), Actor: "analyst"})
	require.NoError(t, err)

	incomplete := creditScoringProfile()
	incomplete.Purpose = ""
	_, err = e.Submit(ctx, engine.SubmitRequest{Profile: incomplete, Actor: "analyst"})
	require.Error(t, err)

	require.Equal(t, []string{"sys-credit", "sys-credit"}, tracked)
	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0])
	assert.Error(t, outcomes[1])
}

func TestReport_AppendsGenerationEvent(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	run, err := e.Submit(ctx, engine.SubmitRequest{
		Profile:             creditScoringProfile(),
		Actor:               "analyst",
		Outcomes:            loanOutcomes(),
		ProtectedAttributes: []string{"gender"},
	})
	require.NoError(t, err)

	rep, err := e.Report(ctx, run.ID, report.FrameworkEUAIAct, 0)
	require.NoError(t, err)
	assert.Equal(t, report.FrameworkEUAIAct, rep.Framework)
	assert.Equal(t, uint64(4), rep.AsOfSequence)

	trail, err := e.AuditTrail(ctx, run.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, trail, 5)
	head := trail[4]
	assert.Equal(t, ledger.EventReportGenerated, head.Type)
	assert.Equal(t, "eu_ai_act", head.Payload["framework"])
	assert.Contains(t, head.Payload["report_hash"], "sha256:")
	assert.EqualValues(t, 4, head.Payload["as_of_sequence"])

	require.NoError(t, e.Verify(ctx, run.ID))
}

func TestReport_UnknownRun(t *testing.T) {
	e := newEngine(t)
	_, err := e.Report(context.Background(), "no-such-run", report.FrameworkGDPR, 0)
	assert.ErrorIs(t, err, engine.ErrRunNotFound)
}

func TestRedact_KeepsRunVerifiable(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	run, err := e.Submit(ctx, engine.SubmitRequest{
		Profile:             creditScoringProfile(),
		Actor:               "analyst",
		Outcomes:            loanOutcomes(),
		ProtectedAttributes: []string{"gender"},
	})
	require.NoError(t, err)

	// Sequence 4 is the bias analysis, the event carrying outcome data.
	redaction, err := e.Redact(ctx, run.ID, 4, "dpo", "erasure request")
	require.NoError(t, err)
	assert.Equal(t, ledger.EventRedaction, redaction.Type)

	trail, err := e.AuditTrail(ctx, run.ID, 4, 4)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.True(t, trail[0].Redacted)

	require.NoError(t, e.Verify(ctx, run.ID))
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	var ids []string
	for i := 0; i < 3; i++ {
		p := creditScoringProfile()
		p.ID = fmt.Sprintf("sys-%d", i)
		run, err := e.Submit(ctx, engine.SubmitRequest{Profile: p, Actor: "analyst"})
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs := e.ListRuns()
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)
	assert.True(t, !runs[0].CreatedAt.Before(runs[1].CreatedAt))
}

func TestGetRun_Unknown(t *testing.T) {
	e := newEngine(t)
	_, err := e.GetRun("missing")
	assert.True(t, errors.Is(err, engine.ErrRunNotFound))
}

func TestSubmit_ConcurrentRunsStayIsolated(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	const workers = 8
	var wg sync.WaitGroup
	runIDs := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := creditScoringProfile()
			p.ID = fmt.Sprintf("sys-%d", i)
			run, err := e.Submit(ctx, engine.SubmitRequest{Profile: p, Actor: "analyst"})
			if err != nil {
				errs[i] = err
				return
			}
			runIDs[i] = run.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NoError(t, e.Verify(ctx, runIDs[i]))

		trail, err := e.AuditTrail(ctx, runIDs[i], 0, 0)
		require.NoError(t, err)
		assert.Len(t, trail, 3)
	}
	assert.Len(t, e.ListRuns(), workers)
}

func TestRuleSetVersion(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, classifier.DefaultRuleSetVersion, e.RuleSetVersion())
}
