package extractor

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// trajectoryMetrics averages per-joint jitter and stability over the joints
// with at least two valid samples. Both are NaN when no joint qualifies.
func trajectoryMetrics(trajectories [][]Point) (jitter, stability float64) {
	var jitters, spreads []float64
	for _, traj := range trajectories {
		j, s, ok := jointMetrics(traj)
		if !ok {
			continue
		}
		jitters = append(jitters, j)
		spreads = append(spreads, s)
	}
	return mean(jitters), mean(spreads)
}

// jointMetrics returns the mean step length between consecutive valid samples
// and the mean of the x and y population standard deviations
func jointMetrics(traj []Point) (jitter, spread float64, ok bool) {
	var xs, ys []float64
	for _, p := range traj {
		if p.Valid {
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
		}
	}
	if len(xs) < 2 {
		return 0, 0, false
	}
	steps := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		steps[i-1] = math.Hypot(xs[i]-xs[i-1], ys[i]-ys[i-1])
	}
	jitter = stat.Mean(steps, nil)
	spread = (math.Sqrt(stat.PopVariance(xs, nil)) + math.Sqrt(stat.PopVariance(ys, nil))) / 2
	return jitter, spread, true
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}
