package scoring

import (
	"github.com/aletheia-ai/aegis/pkg/profile"
)

// Factor names used in weight configs and contribution breakdowns.
const (
	FactorDataSensitivity  = "data_sensitivity"
	FactorDecisionAutonomy = "decision_autonomy"
	FactorPopulationReach  = "population_reach"
)

// sensitiveDataTypes are the declared data types that raise the
// data-sensitivity sub-score.
var sensitiveDataTypes = map[string]bool{
	"personal_data":  true,
	"financial_data": true,
	"health_data":    true,
	"biometric":      true,
	"credentials":    true,
	"location_data":  true,
}

// dataSensitivity is the fraction of declared data types that are sensitive.
func dataSensitivity(p *profile.AISystemProfile) float64 {
	if len(p.DataTypes) == 0 {
		return 0
	}
	sensitive := 0
	for _, dt := range p.DataTypes {
		if sensitiveDataTypes[dt] {
			sensitive++
		}
	}
	return float64(sensitive) / float64(len(p.DataTypes))
}

// decisionAutonomy scores how consequential and unsupervised the system's
// decisions are: impact sets the base, human oversight attenuates it.
func decisionAutonomy(p *profile.AISystemProfile) float64 {
	var base float64
	switch p.DecisionImpact {
	case profile.ImpactAutomatedDecision, profile.ImpactLegal:
		base = 1.0
	case profile.ImpactSignificant:
		base = 0.8
	case profile.ImpactServiceDelivery:
		base = 0.5
	case profile.ImpactAdvisory:
		base = 0.2
	default:
		base = 0.5
	}

	switch p.HumanOversight {
	case profile.OversightFull:
		return base * 0.4
	case profile.OversightModerate:
		return base * 0.6
	case profile.OversightMinimal:
		return base * 0.9
	default: // none declared, or explicitly none
		return base
	}
}

// populationReach scores deployment breadth from context and interaction mode.
func populationReach(p *profile.AISystemProfile) float64 {
	var reach float64
	switch p.DeploymentContext {
	case "public_space":
		reach = 1.0
	case "production", "private_platform":
		reach = 0.7
	case "internal", "pilot":
		reach = 0.3
	default:
		reach = 0.5
	}

	switch p.InteractionMode {
	case profile.InteractionDirect, profile.InteractionDirectCustomer:
		if reach < 0.8 {
			reach = 0.8
		}
	case profile.InteractionInternal:
		if reach > 0.5 {
			reach = 0.5
		}
	}
	return reach
}

// factorScores evaluates every sub-score. All values are in [0,1].
func factorScores(p *profile.AISystemProfile) map[string]float64 {
	return map[string]float64{
		FactorDataSensitivity:  dataSensitivity(p),
		FactorDecisionAutonomy: decisionAutonomy(p),
		FactorPopulationReach:  populationReach(p),
	}
}
