package stats

import "sort"

// Holm applies the Holm step-down correction to p. It returns the adjusted
// p-values in input order and whether each hypothesis is rejected at alpha.
func Holm(p []float64, alpha float64) (adjusted []float64, reject []bool) {
	m := len(p)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })

	adjusted = make([]float64, m)
	reject = make([]bool, m)
	running := 0.0
	for rank, i := range order {
		v := float64(m-rank) * p[i]
		if v > 1 {
			v = 1
		}
		if v > running {
			running = v
		}
		adjusted[i] = running
		reject[i] = running <= alpha
	}
	return adjusted, reject
}
