package simulator

import (
	"math"
	"sort"
)

// Decimator keeps frames from a source stream so that the kept frames are
// spread as evenly as the fractional ratio source/target allows.
type Decimator struct {
	ratio float64
	acc   float64
}

// NewDecimator returns a decimator from source fps down to target fps
func NewDecimator(source float64, target int) *Decimator {
	return &Decimator{ratio: source / float64(target)}
}

// Keep advances the accumulator by one source frame and reports whether it is emitted
func (d *Decimator) Keep() bool {
	d.acc++
	if d.acc >= d.ratio {
		d.acc -= d.ratio
		return true
	}
	return false
}

// ExpectedFrames returns the nominal output frame count for total source frames
func ExpectedFrames(total int, source float64, target int) int {
	return int(math.Round(float64(total) * float64(target) / source))
}

// DefaultTargets picks count rates below f0, spaced by max(1, floor(f0/divisor))
func DefaultTargets(f0 float64, count, divisor int) []int {
	step := math.Max(1, math.Floor(f0/float64(divisor)))
	var targets []int
	for i := 1; i <= count; i++ {
		f := f0 - float64(i)*step
		if f > 0 {
			targets = append(targets, int(f))
		}
	}
	return targets
}

// Targets resolves the candidate rates: explicit ones when given, otherwise
// the default heuristic. Rates at or above f0 are dropped, duplicates removed,
// and the result is sorted from highest to lowest.
func Targets(f0 float64, explicit []int, count, divisor int) []int {
	candidates := explicit
	if len(candidates) == 0 {
		candidates = DefaultTargets(f0, count, divisor)
	}
	seen := make(map[int]bool, len(candidates))
	var out []int
	for _, f := range candidates {
		if f <= 0 || float64(f) >= f0 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
