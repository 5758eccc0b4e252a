// Package stats implements the hypothesis tests used to compare metric
// series across frame rates.
package stats

import (
	"sort"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Result is the outcome of an omnibus or pairwise test
type Result struct {
	Statistic float64
	P         float64
	DF1       float64
	DF2       float64
}

// rank assigns 1-based ranks to xs, averaging over ties. It also returns
// the size of every tie group with more than one member.
func rank(xs []float64) (ranks []float64, ties []int) {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	ranks = make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && xs[idx[j]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		if j-i > 1 {
			ties = append(ties, j-i)
		}
		i = j
	}
	return ranks, ties
}

// balanced checks that data is a non-empty subjects x conditions matrix
func balanced(data [][]float64, minSubjects, minConditions int) (n, k int, err error) {
	n = len(data)
	if n < minSubjects {
		return 0, 0, types.ErrInsufficientData
	}
	k = len(data[0])
	if k < minConditions {
		return 0, 0, types.ErrInsufficientData
	}
	for _, row := range data {
		if len(row) != k {
			return 0, 0, types.ErrInsufficientData
		}
	}
	return n, k, nil
}
