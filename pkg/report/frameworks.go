// Package report turns a run's audited assessment evidence into per-framework
// compliance reports. Framework obligations live in declarative tables so new
// frameworks are added without touching the aggregation flow.
package report

import (
	"fmt"

	"github.com/aletheia-ai/aegis/pkg/classifier"
	"github.com/aletheia-ai/aegis/pkg/profile"
	"github.com/aletheia-ai/aegis/pkg/scoring"
)

// Framework identifies a supported compliance framework.
type Framework string

const (
	FrameworkEUAIAct  Framework = "eu_ai_act"
	FrameworkGDPR     Framework = "gdpr"
	FrameworkISO42001 Framework = "iso_42001"
	FrameworkNISTAIRM Framework = "nist_ai_rmf"
)

// UnknownFrameworkError reports a framework outside the catalog.
type UnknownFrameworkError struct {
	Framework Framework
}

func (e *UnknownFrameworkError) Error() string {
	return fmt.Sprintf("unknown compliance framework %q", e.Framework)
}

// RequirementStatus is the evaluated state of one obligation.
type RequirementStatus string

const (
	StatusSatisfied     RequirementStatus = "satisfied"
	StatusGap           RequirementStatus = "gap"
	StatusNotApplicable RequirementStatus = "not_applicable"
)

// requirement is one framework obligation. Applies scopes it to the system
// under assessment; Satisfied judges it against the collected evidence. A nil
// Applies means the obligation is unconditional.
type requirement struct {
	ID        string
	Title     string
	Critical  bool
	Applies   func(*Evidence) bool
	Satisfied func(*Evidence) bool
}

// FineExposure is the maximum regulatory penalty the assessed posture risks.
type FineExposure struct {
	MaxFineEUR     int64   `json:"max_fine_eur"`
	RevenuePercent float64 `json:"revenue_percent"`
	Basis          string  `json:"basis,omitempty"`
}

type frameworkSpec struct {
	Name         string
	Authority    string
	Requirements []requirement
	// FineExposure maps the evaluated posture to the worst-case penalty.
	// Voluntary frameworks return a zero exposure.
	FineExposure func(ev *Evidence, gaps int) FineExposure
}

func hasPersonalData(ev *Evidence) bool {
	if ev.Profile == nil {
		return false
	}
	for _, dt := range ev.Profile.DataTypes {
		switch dt {
		case "personal_data", "health_data", "biometric", "financial_data", "location_data":
			return true
		}
	}
	return false
}

func isHighOrWorse(ev *Evidence) bool {
	return ev.Classification != nil &&
		ev.Classification.Tier.Severity() >= classifier.TierHigh.Severity()
}

var frameworkCatalog = map[Framework]frameworkSpec{
	FrameworkEUAIAct: {
		Name:      "EU Artificial Intelligence Act",
		Authority: "European Commission / national market surveillance authorities",
		Requirements: []requirement{
			{
				ID: "eu-ai-act.prohibited-practices", Title: "No prohibited AI practices (Art. 5)",
				Critical: true,
				Satisfied: func(ev *Evidence) bool {
					return ev.Classification != nil && ev.Classification.Tier != classifier.TierUnacceptable
				},
			},
			{
				ID: "eu-ai-act.risk-management", Title: "Risk management system established (Art. 9)",
				Critical: true,
				Applies:  isHighOrWorse,
				Satisfied: func(ev *Evidence) bool {
					return ev.RiskScore != nil
				},
			},
			{
				ID: "eu-ai-act.data-governance", Title: "Data governance and bias controls (Art. 10)",
				Critical: true,
				Applies:  isHighOrWorse,
				Satisfied: func(ev *Evidence) bool {
					return ev.Bias != nil && ev.Bias.OverallBiasScore <= 0.1
				},
			},
			{
				ID: "eu-ai-act.human-oversight", Title: "Effective human oversight (Art. 14)",
				Applies: isHighOrWorse,
				Satisfied: func(ev *Evidence) bool {
					if ev.Profile == nil {
						return false
					}
					return ev.Profile.HumanOversight == profile.OversightFull ||
						ev.Profile.HumanOversight == profile.OversightModerate
				},
			},
			{
				ID: "eu-ai-act.accuracy-robustness", Title: "Accuracy and robustness evidence (Art. 15)",
				Applies: isHighOrWorse,
				Satisfied: func(ev *Evidence) bool {
					return ev.RiskScore != nil && ev.RiskScore.Confidence >= 0.6
				},
			},
			{
				ID: "eu-ai-act.record-keeping", Title: "Automatic logging and record keeping (Art. 12)",
				Satisfied: func(ev *Evidence) bool {
					return ev.Classification != nil && ev.RiskScore != nil
				},
			},
			{
				ID: "eu-ai-act.transparency", Title: "Transparency obligations for interactive systems (Art. 50)",
				Applies: func(ev *Evidence) bool {
					return ev.Profile != nil &&
						(ev.Profile.InteractionMode == profile.InteractionDirect ||
							ev.Profile.InteractionMode == profile.InteractionDirectCustomer)
				},
				Satisfied: func(ev *Evidence) bool {
					return ev.Classification != nil && len(ev.Classification.DocumentationRequired) > 0
				},
			},
		},
		FineExposure: func(ev *Evidence, gaps int) FineExposure {
			if ev.Classification != nil && ev.Classification.Tier == classifier.TierUnacceptable {
				return FineExposure{MaxFineEUR: 35_000_000, RevenuePercent: 7,
					Basis: "prohibited practice under Art. 5"}
			}
			if gaps > 0 && isHighOrWorse(ev) {
				return FineExposure{MaxFineEUR: 15_000_000, RevenuePercent: 3,
					Basis: "high-risk obligations under Arts. 9-15"}
			}
			return FineExposure{}
		},
	},
	FrameworkGDPR: {
		Name:      "General Data Protection Regulation",
		Authority: "national data protection authorities / EDPB",
		Requirements: []requirement{
			{
				ID: "gdpr.lawful-basis", Title: "Lawful basis for processing (Art. 6)",
				Critical: true,
				Applies:  hasPersonalData,
				Satisfied: func(ev *Evidence) bool {
					return ev.Profile != nil && ev.Profile.Purpose != ""
				},
			},
			{
				ID: "gdpr.dpia", Title: "Data protection impact assessment (Art. 35)",
				Critical: true,
				Applies: func(ev *Evidence) bool {
					return hasPersonalData(ev) && isHighOrWorse(ev)
				},
				Satisfied: func(ev *Evidence) bool {
					return ev.RiskScore != nil && ev.Bias != nil
				},
			},
			{
				ID: "gdpr.automated-decision-safeguards", Title: "Safeguards for automated decisions (Art. 22)",
				Critical: true,
				Applies: func(ev *Evidence) bool {
					return ev.Profile != nil &&
						(ev.Profile.DecisionImpact == profile.ImpactAutomatedDecision ||
							ev.Profile.DecisionImpact == profile.ImpactLegal)
				},
				Satisfied: func(ev *Evidence) bool {
					return ev.Profile.HumanOversight != "" && ev.Profile.HumanOversight != profile.OversightNone
				},
			},
			{
				ID: "gdpr.data-minimization", Title: "Data minimization (Art. 5(1)(c))",
				Applies: hasPersonalData,
				Satisfied: func(ev *Evidence) bool {
					return ev.RiskScore != nil &&
						ev.RiskScore.FactorScores[scoring.FactorDataSensitivity] <= 0.8
				},
			},
		},
		FineExposure: func(ev *Evidence, gaps int) FineExposure {
			if gaps > 0 && hasPersonalData(ev) {
				return FineExposure{MaxFineEUR: 20_000_000, RevenuePercent: 4,
					Basis: "infringement of processing principles"}
			}
			return FineExposure{}
		},
	},
	FrameworkISO42001: {
		Name:      "ISO/IEC 42001 AI Management System",
		Authority: "accredited certification bodies",
		Requirements: []requirement{
			{
				ID: "iso-42001.ai-policy", Title: "AI policy and role assignment (Clause 5)",
				Satisfied: func(ev *Evidence) bool {
					return ev.Profile != nil && ev.Classification != nil
				},
			},
			{
				ID: "iso-42001.risk-assessment", Title: "AI risk assessment process (Clause 6.1)",
				Critical: true,
				Satisfied: func(ev *Evidence) bool {
					return ev.RiskScore != nil
				},
			},
			{
				ID: "iso-42001.impact-assessment", Title: "AI system impact assessment (Clause 6.1.4)",
				Critical: true,
				Applies:  isHighOrWorse,
				Satisfied: func(ev *Evidence) bool {
					return ev.Bias != nil
				},
			},
			{
				ID: "iso-42001.operational-control", Title: "Operational planning and control (Clause 8)",
				Satisfied: func(ev *Evidence) bool {
					return ev.Classification != nil && len(ev.Classification.MitigationMeasures) > 0
				},
			},
		},
		FineExposure: func(*Evidence, int) FineExposure { return FineExposure{} },
	},
	FrameworkNISTAIRM: {
		Name:      "NIST AI Risk Management Framework",
		Authority: "voluntary framework (NIST)",
		Requirements: []requirement{
			{
				ID: "nist-ai-rmf.govern", Title: "Govern: accountability structures in place",
				Satisfied: func(ev *Evidence) bool {
					return ev.Profile != nil && ev.Profile.HumanOversight != ""
				},
			},
			{
				ID: "nist-ai-rmf.map", Title: "Map: context and risk categorization established",
				Satisfied: func(ev *Evidence) bool {
					return ev.Classification != nil
				},
			},
			{
				ID: "nist-ai-rmf.measure", Title: "Measure: risks analyzed and tracked",
				Critical: true,
				Satisfied: func(ev *Evidence) bool {
					return ev.RiskScore != nil && ev.Bias != nil
				},
			},
			{
				ID: "nist-ai-rmf.manage", Title: "Manage: risks prioritized and mitigated",
				Applies: isHighOrWorse,
				Satisfied: func(ev *Evidence) bool {
					return ev.Classification != nil && len(ev.Classification.MitigationMeasures) > 0
				},
			},
		},
		FineExposure: func(*Evidence, int) FineExposure { return FineExposure{} },
	},
}

// Frameworks lists the supported framework identifiers in stable order.
func Frameworks() []Framework {
	return []Framework{FrameworkEUAIAct, FrameworkGDPR, FrameworkISO42001, FrameworkNISTAIRM}
}
