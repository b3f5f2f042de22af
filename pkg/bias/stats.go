package bias

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// twoProportionTest runs a pooled two-proportion z-test between two groups
// and returns the z statistic and two-sided p-value. Degenerate pools (all
// successes or all failures) have zero variance and report p = 1.
func twoProportionTest(successes1, trials1, successes2, trials2 int) (z, p float64) {
	if trials1 == 0 || trials2 == 0 {
		return 0, 1
	}

	n1, n2 := float64(trials1), float64(trials2)
	p1 := float64(successes1) / n1
	p2 := float64(successes2) / n2

	pooled := (float64(successes1) + float64(successes2)) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		return 0, 1
	}

	z = (p1 - p2) / se
	p = 2 * distuv.UnitNormal.Survival(math.Abs(z))
	return z, p
}
