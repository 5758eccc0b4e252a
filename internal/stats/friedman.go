package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Friedman runs the Friedman rank test on data laid out as
// data[subject][condition]. At least three conditions are required.
// The statistic is tie-corrected and referred to a chi-squared
// distribution with k-1 degrees of freedom.
func Friedman(data [][]float64) (Result, error) {
	n, k, err := balanced(data, 1, 3)
	if err != nil {
		return Result{}, err
	}

	sums := make([]float64, k)
	tieTerm := 0.0
	for _, row := range data {
		r, ties := rank(row)
		floats.Add(sums, r)
		for _, t := range ties {
			tt := float64(t)
			tieTerm += tt*tt*tt - tt
		}
	}

	nf, kf := float64(n), float64(k)
	c := 1 - tieTerm/(nf*kf*(kf*kf-1))
	if c <= 0 {
		return Result{}, types.ErrInsufficientVariation
	}
	q := 12/(nf*kf*(kf+1))*floats.Dot(sums, sums) - 3*nf*(kf+1)
	q /= c

	chi := distuv.ChiSquared{K: kf - 1}
	return Result{Statistic: q, P: chi.Survival(q), DF1: kf - 1}, nil
}
