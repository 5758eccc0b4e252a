package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

// RMANOVA runs a one-way repeated-measures analysis of variance on
// data[subject][condition]. At least two subjects and two conditions are
// required.
func RMANOVA(data [][]float64) (Result, error) {
	n, k, err := balanced(data, 2, 2)
	if err != nil {
		return Result{}, err
	}

	nf, kf := float64(n), float64(k)
	grand := 0.0
	subj := make([]float64, n)
	cond := make([]float64, k)
	for i, row := range data {
		for j, v := range row {
			grand += v
			subj[i] += v / kf
			cond[j] += v / nf
		}
	}
	grand /= nf * kf

	var ssTotal, ssCond, ssSubj float64
	for i, row := range data {
		for _, v := range row {
			ssTotal += (v - grand) * (v - grand)
		}
		ssSubj += kf * (subj[i] - grand) * (subj[i] - grand)
	}
	for _, m := range cond {
		ssCond += nf * (m - grand) * (m - grand)
	}
	ssErr := ssTotal - ssCond - ssSubj

	df1 := kf - 1
	df2 := (kf - 1) * (nf - 1)
	const eps = 1e-12
	if ssErr <= eps*math.Max(ssTotal, 1) {
		if ssCond <= eps*math.Max(ssTotal, 1) {
			return Result{}, types.ErrInsufficientVariation
		}
		return Result{Statistic: math.Inf(1), P: 0, DF1: df1, DF2: df2}, nil
	}

	f := (ssCond / df1) / (ssErr / df2)
	dist := distuv.F{D1: df1, D2: df2}
	return Result{Statistic: f, P: 1 - dist.CDF(f), DF1: df1, DF2: df2}, nil
}
