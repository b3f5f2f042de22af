package classifier

// DefaultRuleSetVersion identifies the built-in rule set revision.
const DefaultRuleSetVersion = "1.2.0"

// DefaultRuleSet returns the built-in EU AI Act rule set. Priorities group
// the rules into bands: prohibited practices (0), high-risk criteria (10),
// transparency triggers (20). Anything unmatched falls through to minimal.
func DefaultRuleSet() *RuleSet {
	rules := []Rule{
		{
			ID:          "prohibit.social-scoring",
			Description: "General-purpose social scoring of natural persons",
			Predicate:   `profile.purpose.contains("social_scoring") || profile.purpose.contains("citizen_scoring")`,
			Tier:        TierUnacceptable,
			Priority:    0,
		},
		{
			ID:          "prohibit.subliminal-manipulation",
			Description: "Subliminal techniques or manipulative exploitation",
			Predicate:   `profile.purpose.contains("subliminal") || profile.purpose.contains("manipulation")`,
			Tier:        TierUnacceptable,
			Priority:    0,
		},
		{
			ID:          "prohibit.realtime-biometric-public",
			Description: "Real-time biometric identification in public spaces",
			Predicate:   `profile.data_types.exists(d, d == "biometric") && profile.deployment_context == "public_space" && profile.real_time`,
			Tier:        TierUnacceptable,
			Priority:    0,
		},
		{
			ID:          "prohibit.emotion-recognition",
			Description: "Emotion recognition in workplace or education settings",
			Predicate:   `profile.use_cases.exists(u, u == "emotion_recognition") && profile.deployment_context in ["workplace", "education"]`,
			Tier:        TierUnacceptable,
			Priority:    0,
		},
		{
			ID:          "high.regulated-sector",
			Description: "Deployment in a regulated high-risk sector",
			Predicate: `profile.sector in ["biometric_identification", "critical_infrastructure", "education", "employment",` +
				` "financial_services", "healthcare", "essential_services", "law_enforcement", "migration", "justice",` +
				` "transportation", "energy", "telecommunications"]`,
			Tier:     TierHigh,
			Priority: 10,
		},
		{
			ID:          "high.decision-impact",
			Description: "Automated decisions with significant or legal effect",
			Predicate:   `profile.decision_impact in ["automated_decision", "significant_impact", "legal_consequences"]`,
			Tier:        TierHigh,
			Priority:    10,
		},
		{
			ID:          "limited.user-facing",
			Description: "Direct user interaction requires transparency disclosure",
			Predicate:   `profile.interaction_mode in ["direct_user_facing", "direct_customer_facing"]`,
			Tier:        TierLimited,
			Priority:    20,
		},
		{
			ID:          "limited.recommender",
			Description: "Recommendation systems carry transparency obligations",
			Predicate:   `profile.purpose.contains("recommendation")`,
			Tier:        TierLimited,
			Priority:    20,
		},
	}

	rs, err := NewRuleSet(DefaultRuleSetVersion, rules)
	if err != nil {
		// The built-in set is validated by tests; a failure here is a
		// programming error, not an input error.
		panic(err)
	}
	return rs
}
