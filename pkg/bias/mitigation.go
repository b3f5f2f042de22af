package bias

import "sort"

// MitigationPlan is the remediation guidance derived from a bias analysis.
type MitigationPlan struct {
	BusinessContext        string   `json:"business_context,omitempty"`
	RegulatoryRequirements []string `json:"regulatory_requirements,omitempty"`
	PriorityActions        []string `json:"priority_actions"`
	MonitoringActions      []string `json:"monitoring_actions"`
}

// BuildMitigationPlan derives concrete remediation actions from the metric
// results. Actions are deduplicated and ordered deterministically so the
// same analysis always yields the same plan.
func BuildMitigationPlan(analysis *BiasAnalysis, businessContext string, regulatoryRequirements []string) *MitigationPlan {
	plan := &MitigationPlan{
		BusinessContext:        businessContext,
		RegulatoryRequirements: append([]string(nil), regulatoryRequirements...),
	}

	priority := make(map[string]bool)
	monitoring := make(map[string]bool)

	for _, aa := range analysis.Attributes {
		for _, mr := range aa.Metrics {
			switch {
			case mr.InsufficientData:
				priority["Collect additional outcome data for attribute "+aa.Attribute+
					" until every group clears the minimum sample size"] = true
			case mr.Significant && mr.Metric == MetricDemographicParity:
				priority["Rebalance training data or reweight samples for attribute "+aa.Attribute] = true
				priority["Audit feature inputs correlated with "+aa.Attribute+" for proxy discrimination"] = true
			case mr.Significant && mr.Metric == MetricEqualOpportunity:
				priority["Recalibrate decision thresholds so qualified candidates are treated equally across "+aa.Attribute] = true
			}
		}
		monitoring["Track "+aa.Attribute+" group outcome rates on every scoring batch"] = true
	}

	if analysis.OverallBiasScore > 0.1 {
		priority["Schedule a human fairness review before the next deployment window"] = true
	}
	monitoring["Re-run the fairness analysis after each model retraining"] = true

	plan.PriorityActions = sortedKeys(priority)
	plan.MonitoringActions = sortedKeys(monitoring)
	return plan
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
