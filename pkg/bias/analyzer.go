// Package bias quantifies fairness properties of an outcome dataset across
// declared protected attributes. Every declared attribute appears in the
// output even when the data is too sparse to compute a gap; sparsity is
// reported, never silently dropped.
package bias

import (
	"errors"
	"fmt"
	"sort"
)

// Supported fairness metric names.
const (
	MetricDemographicParity = "demographic_parity"
	MetricEqualOpportunity  = "equal_opportunity"
)

var supportedMetrics = map[string]bool{
	MetricDemographicParity: true,
	MetricEqualOpportunity:  true,
}

// ErrEmptyDataset is returned when analyze is called with no outcomes.
var ErrEmptyDataset = errors.New("empty outcome dataset")

// InvalidMetricError reports a requested metric outside the supported set.
type InvalidMetricError struct {
	Metric string
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("unsupported fairness metric %q", e.Metric)
}

// OutcomeRecord is one decision with the subject's protected attributes.
// Eligible marks ground-truth qualification and is only consulted by the
// equal-opportunity metric.
type OutcomeRecord struct {
	Positive   bool              `json:"positive"`
	Eligible   bool              `json:"eligible"`
	Attributes map[string]string `json:"attributes"`
}

// Config holds the analyzer knobs the source material leaves open: the
// minimum group size guarding the normal approximation, and the per-metric
// weights for the overall score aggregation.
type Config struct {
	MinGroupSize  int
	MetricWeights map[string]float64
}

// DefaultConfig uses a minimum group size of 30 and equal metric weights.
func DefaultConfig() Config {
	return Config{
		MinGroupSize: 30,
		MetricWeights: map[string]float64{
			MetricDemographicParity: 1,
			MetricEqualOpportunity:  1,
		},
	}
}

// GroupStat summarizes outcomes for one value of a protected attribute.
type GroupStat struct {
	Value            string  `json:"value"`
	SampleSize       int     `json:"sample_size"`
	Positives        int     `json:"positives"`
	PositiveRate     float64 `json:"positive_rate"`
	EligibleSize     int     `json:"eligible_size"`
	TruePositives    int     `json:"true_positives"`
	TruePositiveRate float64 `json:"true_positive_rate"`
	InsufficientData bool    `json:"insufficient_data"`
}

// MetricResult is one fairness metric evaluated over one attribute. For
// binary attributes the gap is signed (first group minus second, groups in
// value order); for more groups it is the max-minus-min spread.
type MetricResult struct {
	Metric           string   `json:"metric"`
	Attribute        string   `json:"attribute"`
	Gap              float64  `json:"gap"`
	Groups           []string `json:"groups,omitempty"`
	ZScore           float64  `json:"z_score"`
	PValue           float64  `json:"p_value"`
	Significant      bool     `json:"significant"`
	InsufficientData bool     `json:"insufficient_data"`
}

// AttributeAnalysis collects group statistics and metric results for one
// declared protected attribute.
type AttributeAnalysis struct {
	Attribute string         `json:"attribute"`
	Groups    []GroupStat    `json:"groups"`
	Metrics   []MetricResult `json:"metrics"`
}

// BiasAnalysis is the full fairness evaluation for one outcome dataset.
type BiasAnalysis struct {
	Attributes        []AttributeAnalysis `json:"attributes"`
	OverallBiasScore  float64             `json:"overall_bias_score"`
	SignificanceLevel float64             `json:"significance_level"`
	SampleSize        int                 `json:"sample_size"`
	// AffectedGroups lists attribute=value pairs implicated in a
	// statistically significant gap.
	AffectedGroups []string `json:"affected_groups,omitempty"`
}

// Analyze partitions outcomes by each protected attribute, computes the
// requested fairness metrics with a two-proportion significance test, and
// aggregates an overall bias score in [0,1].
func Analyze(outcomes []OutcomeRecord, protectedAttributes, metrics []string, significanceLevel float64, cfg Config) (*BiasAnalysis, error) {
	if len(outcomes) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(protectedAttributes) == 0 {
		return nil, fmt.Errorf("no protected attributes declared")
	}
	for _, m := range metrics {
		if !supportedMetrics[m] {
			return nil, &InvalidMetricError{Metric: m}
		}
	}
	if significanceLevel <= 0 || significanceLevel >= 1 {
		return nil, fmt.Errorf("significance level %v outside (0,1)", significanceLevel)
	}
	if cfg.MinGroupSize <= 0 {
		cfg.MinGroupSize = DefaultConfig().MinGroupSize
	}

	attrs := append([]string(nil), protectedAttributes...)
	sort.Strings(attrs)

	analysis := &BiasAnalysis{
		SignificanceLevel: significanceLevel,
		SampleSize:        len(outcomes),
	}

	affected := make(map[string]bool)
	var weightedGaps, weightTotal float64

	for _, attr := range attrs {
		groups := groupStats(outcomes, attr, cfg.MinGroupSize)
		aa := AttributeAnalysis{Attribute: attr, Groups: groups}

		for _, metric := range metrics {
			result := evaluateMetric(metric, attr, groups, significanceLevel)
			aa.Metrics = append(aa.Metrics, result)

			if !result.InsufficientData {
				w := cfg.MetricWeights[metric]
				if w == 0 {
					w = 1
				}
				gap := result.Gap
				if gap < 0 {
					gap = -gap
				}
				weightedGaps += w * gap
				weightTotal += w
			}
			if result.Significant {
				for _, g := range result.Groups {
					affected[attr+"="+g] = true
				}
			}
		}
		analysis.Attributes = append(analysis.Attributes, aa)
	}

	if weightTotal > 0 {
		score := weightedGaps / weightTotal
		if score > 1 {
			score = 1
		}
		analysis.OverallBiasScore = score
	}

	for g := range affected {
		analysis.AffectedGroups = append(analysis.AffectedGroups, g)
	}
	sort.Strings(analysis.AffectedGroups)

	return analysis, nil
}

// groupStats partitions the outcomes by one attribute's values. Records
// missing the attribute entirely are not counted toward any group.
func groupStats(outcomes []OutcomeRecord, attr string, minGroupSize int) []GroupStat {
	byValue := make(map[string]*GroupStat)
	for _, rec := range outcomes {
		value, ok := rec.Attributes[attr]
		if !ok {
			continue
		}
		gs, ok := byValue[value]
		if !ok {
			gs = &GroupStat{Value: value}
			byValue[value] = gs
		}
		gs.SampleSize++
		if rec.Positive {
			gs.Positives++
		}
		if rec.Eligible {
			gs.EligibleSize++
			if rec.Positive {
				gs.TruePositives++
			}
		}
	}

	values := make([]string, 0, len(byValue))
	for v := range byValue {
		values = append(values, v)
	}
	sort.Strings(values)

	groups := make([]GroupStat, 0, len(values))
	for _, v := range values {
		gs := byValue[v]
		if gs.SampleSize > 0 {
			gs.PositiveRate = float64(gs.Positives) / float64(gs.SampleSize)
		}
		if gs.EligibleSize > 0 {
			gs.TruePositiveRate = float64(gs.TruePositives) / float64(gs.EligibleSize)
		}
		gs.InsufficientData = gs.SampleSize < minGroupSize
		groups = append(groups, *gs)
	}
	return groups
}

// evaluateMetric computes one gap with its significance test. Groups below
// the minimum sample size are excluded from the computation but remain
// visible in the attribute's group statistics.
func evaluateMetric(metric, attr string, groups []GroupStat, significanceLevel float64) MetricResult {
	result := MetricResult{Metric: metric, Attribute: attr}

	type sample struct {
		value     string
		successes int
		trials    int
	}
	var samples []sample
	for _, g := range groups {
		if g.InsufficientData {
			continue
		}
		switch metric {
		case MetricEqualOpportunity:
			// Gap over actually-eligible records only; adequacy is
			// judged on the eligible subsample.
			if g.EligibleSize == 0 {
				continue
			}
			samples = append(samples, sample{g.Value, g.TruePositives, g.EligibleSize})
		default:
			samples = append(samples, sample{g.Value, g.Positives, g.SampleSize})
		}
	}

	if len(samples) < 2 {
		result.InsufficientData = true
		return result
	}

	// Binary attribute: signed difference in value order. More groups:
	// spread between the extreme rates.
	first, second := samples[0], samples[1]
	if len(samples) > 2 {
		hi, lo := samples[0], samples[0]
		for _, s := range samples[1:] {
			if rate(s.successes, s.trials) > rate(hi.successes, hi.trials) {
				hi = s
			}
			if rate(s.successes, s.trials) < rate(lo.successes, lo.trials) {
				lo = s
			}
		}
		first, second = hi, lo
	}

	result.Groups = []string{first.value, second.value}
	result.Gap = rate(first.successes, first.trials) - rate(second.successes, second.trials)

	z, p := twoProportionTest(first.successes, first.trials, second.successes, second.trials)
	result.ZScore = z
	result.PValue = p
	result.Significant = p < significanceLevel

	return result
}

func rate(successes, trials int) float64 {
	if trials == 0 {
		return 0
	}
	return float64(successes) / float64(trials)
}
