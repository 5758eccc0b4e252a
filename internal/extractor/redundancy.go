package extractor

// SweepThresholds are the similarity cut-offs of the redundancy profile
var SweepThresholds = []float64{1.00, 0.98, 0.95, 0.90, 0.85, 0.80}

// SweepPoint is the number of frames that survive dropping near-duplicates
// at one similarity threshold
type SweepPoint struct {
	Threshold float64
	Kept      int
}

// DupFraction returns the share of consecutive pairs scoring above threshold
func DupFraction(scores []float64, threshold float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	dup := 0
	for _, s := range scores {
		if s > threshold {
			dup++
		}
	}
	return float64(dup) / float64(len(scores))
}

// RedundancyProfile counts, per threshold, the first frame plus every frame
// not similar to its predecessor
func RedundancyProfile(scores []float64, thresholds []float64) []SweepPoint {
	out := make([]SweepPoint, 0, len(thresholds))
	for _, th := range thresholds {
		kept := 1
		for _, s := range scores {
			if s <= th {
				kept++
			}
		}
		out = append(out, SweepPoint{Threshold: th, Kept: kept})
	}
	return out
}
