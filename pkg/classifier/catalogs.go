package classifier

// Per-tier compliance obligation catalogs. These feed the classification
// result so downstream reports can cite concrete obligations rather than
// just a tier label.

func requirementsForTier(t Tier) []string {
	switch t {
	case TierUnacceptable:
		return []string{
			"immediate_prohibition",
			"system_decommission",
			"legal_review_required",
		}
	case TierHigh:
		return []string{
			"risk_management_system",
			"data_governance_measures",
			"technical_documentation",
			"record_keeping_system",
			"transparency_obligations",
			"human_oversight_measures",
			"accuracy_robustness_cybersecurity",
			"quality_management_system",
			"conformity_assessment",
			"ce_marking",
			"registration_eu_database",
			"post_market_monitoring",
		}
	case TierLimited:
		return []string{
			"transparency_obligations",
			"user_information_requirements",
			"human_interaction_disclosure",
		}
	default:
		return []string{
			"voluntary_codes_conduct",
			"best_practices_adherence",
		}
	}
}

func mitigationsForTier(t Tier) []string {
	switch t {
	case TierUnacceptable:
		return []string{"System must be prohibited and decommissioned"}
	case TierHigh:
		return []string{
			"Implement comprehensive risk management system",
			"Establish human oversight protocols",
			"Deploy bias monitoring and mitigation",
			"Create incident response procedures",
			"Implement data governance framework",
		}
	case TierLimited:
		return []string{
			"Implement user disclosure mechanisms",
			"Create transparency reporting",
			"Establish user feedback channels",
		}
	default:
		return nil
	}
}

func documentationForTier(t Tier) []string {
	if t == TierUnacceptable {
		return []string{"Legal review documentation", "Decommission plan"}
	}
	docs := []string{"System description", "Risk assessment"}
	switch t {
	case TierHigh:
		docs = append(docs,
			"Technical documentation",
			"Quality management documentation",
			"Risk management documentation",
			"Data governance documentation",
			"Human oversight procedures",
			"Post-market monitoring plan",
			"Incident response plan",
		)
	case TierLimited:
		docs = append(docs,
			"User information documentation",
			"Transparency measures documentation",
		)
	}
	return docs
}

// timelineMonths returns the compliance timeline. Law-enforcement and
// justice deployments get six extra months for the additional conformity
// steps those sectors require.
func timelineMonths(t Tier, sector string) int {
	var months int
	switch t {
	case TierUnacceptable:
		months = 0
	case TierHigh:
		months = 24
	case TierLimited:
		months = 12
	default:
		months = 6
	}
	if sector == "law_enforcement" || sector == "justice" {
		months += 6
	}
	return months
}
