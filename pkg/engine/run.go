package engine

import (
	"time"

	"github.com/aletheia-ai/aegis/pkg/bias"
	"github.com/aletheia-ai/aegis/pkg/classifier"
	"github.com/aletheia-ai/aegis/pkg/profile"
	"github.com/aletheia-ai/aegis/pkg/scoring"
)

// RunStatus tracks an assessment run's lifecycle.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one complete assessment of one profile version. Every result
// attached here is also recorded as a hash-chained audit event.
type Run struct {
	ID             string                           `json:"id"`
	ProfileID      string                           `json:"profile_id"`
	ProfileVersion int                              `json:"profile_version"`
	Status         RunStatus                        `json:"status"`
	CreatedAt      time.Time                        `json:"created_at"`
	Profile        *profile.AISystemProfile         `json:"profile,omitempty"`
	Classification *classifier.ClassificationResult `json:"classification,omitempty"`
	RiskScore      *scoring.RiskScore               `json:"risk_score,omitempty"`
	Bias           *bias.BiasAnalysis               `json:"bias,omitempty"`
	Error          string                           `json:"error,omitempty"`
}

// SubmitRequest is the input to one assessment run. Outcomes are optional;
// without them the run skips the fairness analysis and downstream reports
// record the missing evidence as gaps.
type SubmitRequest struct {
	Profile             *profile.AISystemProfile `json:"profile"`
	Actor               string                   `json:"actor,omitempty"`
	Outcomes            []bias.OutcomeRecord     `json:"outcomes,omitempty"`
	ProtectedAttributes []string                 `json:"protected_attributes,omitempty"`
	FairnessMetrics     []string                 `json:"fairness_metrics,omitempty"`
	SignificanceLevel   float64                  `json:"significance_level,omitempty"`
}
