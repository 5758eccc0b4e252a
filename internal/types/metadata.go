package types

import "math"

// Metric names used across tables, tolerances and reports
const (
	MetricCoverage  = "coverage"
	MetricJitter    = "jitter"
	MetricStability = "stability"
	MetricDupPct    = "dup_pct"
)

// TrackedMetrics lists the metrics compared against the baseline, in report order
var TrackedMetrics = []string{MetricCoverage, MetricJitter, MetricStability, MetricDupPct}

// FrameMetricRecord holds the quality metrics of one analysed clip.
// Jitter and Stability are NaN when no tracked joint had enough detections.
type FrameMetricRecord struct {
	Subject        string  `json:"subject"`
	Clip           string  `json:"clip"`
	FPS            int     `json:"fps"`
	FrameCount     int     `json:"frame_count"`
	DupPct         float64 `json:"dup_pct"`
	MeanSimilarity float64 `json:"mean_similarity"`
	Coverage       float64 `json:"coverage"`
	Jitter         float64 `json:"jitter"`
	Stability      float64 `json:"stability"`
	Baseline       bool    `json:"baseline,omitempty"`
	Delta          *Delta  `json:"delta,omitempty"`
}

// Delta holds a derived record's metrics minus the baseline's
type Delta struct {
	Coverage  float64 `json:"d_coverage"`
	Jitter    float64 `json:"d_jitter"`
	Stability float64 `json:"d_stability"`
	DupPct    float64 `json:"d_dup_pct"`
}

// Value returns the named metric, or false for an unknown name
func (r FrameMetricRecord) Value(metric string) (float64, bool) {
	switch metric {
	case MetricCoverage:
		return r.Coverage, true
	case MetricJitter:
		return r.Jitter, true
	case MetricStability:
		return r.Stability, true
	case MetricDupPct:
		return r.DupPct, true
	}
	return math.NaN(), false
}

// DeltaAgainst computes r minus base for every tracked metric
func (r FrameMetricRecord) DeltaAgainst(base FrameMetricRecord) *Delta {
	return &Delta{
		Coverage:  r.Coverage - base.Coverage,
		Jitter:    r.Jitter - base.Jitter,
		Stability: r.Stability - base.Stability,
		DupPct:    r.DupPct - base.DupPct,
	}
}
