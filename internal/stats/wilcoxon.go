package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

// exactLimit is the largest sample size for which the exact null
// distribution of the signed-rank statistic is enumerated
const exactLimit = 50

// Wilcoxon runs the two-sided Wilcoxon signed-rank test on paired samples.
// Zero differences are discarded. The exact distribution is used for small
// samples without ties, the normal approximation otherwise.
func Wilcoxon(x, y []float64) (Result, error) {
	if len(x) != len(y) || len(x) == 0 {
		return Result{}, types.ErrInsufficientData
	}
	var d []float64
	for i := range x {
		if diff := x[i] - y[i]; diff != 0 {
			d = append(d, diff)
		}
	}
	n := len(d)
	if n == 0 {
		return Result{}, types.ErrInsufficientVariation
	}

	abs := make([]float64, n)
	for i, v := range d {
		abs[i] = math.Abs(v)
	}
	ranks, ties := rank(abs)
	var plus, minus float64
	for i, v := range d {
		if v > 0 {
			plus += ranks[i]
		} else {
			minus += ranks[i]
		}
	}
	t := math.Min(plus, minus)

	if n <= exactLimit && len(ties) == 0 {
		return Result{Statistic: t, P: exactSignedRankP(n, t)}, nil
	}

	nf := float64(n)
	variance := nf * (nf + 1) * (2*nf + 1) / 24
	for _, g := range ties {
		gf := float64(g)
		variance -= (gf*gf*gf - gf) / 48
	}
	if variance <= 0 {
		return Result{}, types.ErrInsufficientVariation
	}
	z := (t - nf*(nf+1)/4) / math.Sqrt(variance)
	p := 2 * distuv.UnitNormal.CDF(-math.Abs(z))
	return Result{Statistic: t, P: math.Min(1, p)}, nil
}

// exactSignedRankP returns the two-sided p-value of statistic t for n
// untied non-zero differences
func exactSignedRankP(n int, t float64) float64 {
	maxSum := n * (n + 1) / 2
	counts := make([]float64, maxSum+1)
	counts[0] = 1
	for r := 1; r <= n; r++ {
		for s := maxSum; s >= r; s-- {
			counts[s] += counts[s-r]
		}
	}
	limit := int(math.Floor(t))
	var below float64
	for s := 0; s <= limit && s <= maxSum; s++ {
		below += counts[s]
	}
	p := 2 * below / math.Pow(2, float64(n))
	return math.Min(1, p)
}
