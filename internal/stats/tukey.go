package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Pair is one Tukey HSD comparison between groups I and J
type Pair struct {
	I, J     int
	MeanDiff float64
	Q        float64
	P        float64
}

// TukeyHSD compares every pair of groups with Tukey's honestly significant
// difference test. Groups may differ in size. The p-values are adjusted for
// the whole family of pairwise comparisons.
func TukeyHSD(groups [][]float64) ([]Pair, error) {
	k := len(groups)
	if k < 2 {
		return nil, types.ErrInsufficientData
	}
	means := make([]float64, k)
	total, ssWithin := 0, 0.0
	for i, g := range groups {
		if len(g) == 0 {
			return nil, types.ErrInsufficientData
		}
		means[i] = stat.Mean(g, nil)
		for _, v := range g {
			ssWithin += (v - means[i]) * (v - means[i])
		}
		total += len(g)
	}
	df := float64(total - k)
	if df < 2 {
		return nil, types.ErrInsufficientData
	}
	mse := ssWithin / df
	if mse <= 0 {
		return nil, types.ErrInsufficientVariation
	}

	var pairs []Pair
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			diff := means[j] - means[i]
			se := math.Sqrt(mse / 2 * (1/float64(len(groups[i])) + 1/float64(len(groups[j]))))
			q := math.Abs(diff) / se
			p := 1 - PTukey(q, float64(k), df)
			pairs = append(pairs, Pair{I: i, J: j, MeanDiff: diff, Q: q, P: math.Max(0, math.Min(1, p))})
		}
	}
	return pairs, nil
}
