// Package selector picks the lowest frame rate that stays within tolerance
// of the baseline and is statistically indistinguishable from it.
package selector

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/melody-ding/go-fpscheck/internal/comparator"
	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Direction tells which way a metric improves
type Direction int

const (
	LowerIsBetter Direction = iota
	HigherIsBetter
)

// DirectionOf returns the improvement direction of metric
func DirectionOf(metric string) Direction {
	if metric == types.MetricCoverage {
		return HigherIsBetter
	}
	return LowerIsBetter
}

// WithinTolerance applies the directional pass rule to delta. tol is a
// positive magnitude.
func WithinTolerance(metric string, delta, tol float64) bool {
	if math.IsNaN(delta) {
		return false
	}
	if DirectionOf(metric) == HigherIsBetter {
		return delta >= -tol
	}
	return delta <= tol
}

// Config holds the selection policy
type Config struct {
	Metrics    []string
	Tolerances map[string]float64
	// MaxDupPct fails any candidate whose duplicate ratio exceeds it; zero disables
	MaxDupPct float64
}

// ComparisonRow is the verdict for one candidate rate and metric
type ComparisonRow struct {
	FPS             int     `json:"fps"`
	Metric          string  `json:"metric"`
	Value           float64 `json:"value"`
	Delta           float64 `json:"delta"`
	PValue          float64 `json:"p_value"`
	WithinTolerance bool    `json:"within_tolerance"`
	NotSignificant  bool    `json:"not_significant"`
}

// Pass reports whether the row satisfies both rules
func (r ComparisonRow) Pass() bool {
	return r.WithinTolerance && r.NotSignificant
}

// MetricTest is the omnibus comparison of one metric
type MetricTest struct {
	comparator.Result
	Err error
}

// Decision is the outcome of a selection
type Decision struct {
	BaselineFPS    int
	RecommendedFPS int
	Subjects       []string
	Rows           []ComparisonRow
	Passing        []int // descending
	Excluded       []int // candidates lacking metric data
	Tests          []MetricTest
}

// Selector chooses the recommended frame rate from a metric table
type Selector struct {
	cfg    Config
	cmp    *comparator.Comparator
	logger *slog.Logger
}

// New returns a Selector using cmp for the significance tests
func New(cfg Config, cmp *comparator.Comparator, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = types.TrackedMetrics
	}
	return &Selector{cfg: cfg, cmp: cmp, logger: logger}
}

// Select evaluates every candidate rate in records against the baseline.
// It fails only when records holds no baseline at all; every other problem
// makes the decision more conservative.
func (s *Selector) Select(records []types.FrameMetricRecord) (Decision, error) {
	if len(records) == 0 {
		return Decision{}, fmt.Errorf("select: %w: empty metric table", types.ErrInsufficientData)
	}

	var d Decision
	bySubject := map[string]map[int]types.FrameMetricRecord{}
	rates := map[int]bool{}
	for _, r := range records {
		if bySubject[r.Subject] == nil {
			bySubject[r.Subject] = map[int]types.FrameMetricRecord{}
		}
		bySubject[r.Subject][r.FPS] = r
		rates[r.FPS] = true
		if r.FPS > d.BaselineFPS {
			d.BaselineFPS = r.FPS
		}
	}
	d.RecommendedFPS = d.BaselineFPS

	// only subjects recorded at the baseline rate can be compared
	for subj, m := range bySubject {
		if _, ok := m[d.BaselineFPS]; ok {
			d.Subjects = append(d.Subjects, subj)
		} else {
			s.logger.Warn("subject has no baseline clip, ignored", "subject", subj, "baseline_fps", d.BaselineFPS)
		}
	}
	sort.Strings(d.Subjects)

	var candidates []int
	for fps := range rates {
		if fps < d.BaselineFPS {
			candidates = append(candidates, fps)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(candidates)))

	excluded := map[int]bool{}
	for _, fps := range candidates {
		for _, subj := range d.Subjects {
			if _, ok := bySubject[subj][fps]; !ok {
				excluded[fps] = true
				s.logger.Warn("candidate excluded",
					"fps", fps,
					"subject", subj,
					"error", types.ErrMissingMetricData,
				)
				break
			}
		}
	}

	failed := map[int]bool{}
	for _, metric := range s.cfg.Metrics {
		pvals, err := s.test(&d, records, metric)
		tol := s.cfg.Tolerances[metric]

		for _, fps := range candidates {
			row := ComparisonRow{FPS: fps, Metric: metric, Value: math.NaN(), Delta: math.NaN(), PValue: 1}
			if err != nil {
				// a broken comparison keeps the baseline
				row.PValue = math.NaN()
			} else if p, ok := pvals[fps]; ok {
				row.PValue = p
			}
			row.NotSignificant = row.PValue > s.cmp.Alpha()

			if !excluded[fps] {
				row.Value, row.Delta = s.aggregate(bySubject, d.Subjects, d.BaselineFPS, fps, metric)
				if math.IsNaN(row.Value) || math.IsNaN(row.Delta) {
					excluded[fps] = true
					s.logger.Warn("candidate excluded",
						"fps", fps,
						"metric", metric,
						"error", types.ErrMissingMetricData,
					)
				}
			}
			row.WithinTolerance = WithinTolerance(metric, row.Delta, tol)
			if metric == types.MetricDupPct && s.cfg.MaxDupPct > 0 && row.Value > s.cfg.MaxDupPct {
				row.WithinTolerance = false
			}
			if !row.Pass() {
				failed[fps] = true
			}
			d.Rows = append(d.Rows, row)
		}
	}

	for _, fps := range candidates {
		if excluded[fps] {
			d.Excluded = append(d.Excluded, fps)
			continue
		}
		if !failed[fps] {
			d.Passing = append(d.Passing, fps)
		}
	}
	if len(d.Passing) > 0 {
		d.RecommendedFPS = d.Passing[0]
	}

	s.logger.Info("frame rate selected",
		"baseline_fps", d.BaselineFPS,
		"recommended_fps", d.RecommendedFPS,
		"passing", d.Passing,
		"excluded", d.Excluded,
	)
	return d, nil
}

// test runs the omnibus comparison for metric and returns the p-values of
// every candidate against the baseline. An undefined test yields no p-values
// and no error, so every candidate counts as not significantly different.
// Any other failure is returned and fails every candidate of metric.
func (s *Selector) test(d *Decision, records []types.FrameMetricRecord, metric string) (map[int]float64, error) {
	series, err := comparator.BuildSeries(records, metric)
	if err != nil {
		d.Tests = append(d.Tests, MetricTest{Result: comparator.Result{Metric: metric}, Err: err})
		return nil, s.undefined(metric, err)
	}

	res, err := s.cmp.Compare(series)
	d.Tests = append(d.Tests, MetricTest{Result: res, Err: err})
	if err != nil {
		s.logger.Warn("omnibus test not available", "metric", metric, "error", err)
	}

	pvals, err := s.cmp.PValuesVsBaseline(series)
	if err != nil {
		return nil, s.undefined(metric, err)
	}
	return pvals, nil
}

// undefined logs err and swallows it when it only means the test cannot run
func (s *Selector) undefined(metric string, err error) error {
	if comparator.Undefined(err) {
		s.logger.Warn("no significant difference could be established", "metric", metric, "error", err)
		return nil
	}
	s.logger.Error("metric comparison failed, keeping baseline", "metric", metric, "error", err)
	return err
}

// aggregate averages the candidate value and its delta over subjects
func (s *Selector) aggregate(bySubject map[string]map[int]types.FrameMetricRecord, subjects []string, baseline, fps int, metric string) (value, delta float64) {
	if len(subjects) == 0 {
		return math.NaN(), math.NaN()
	}
	for _, subj := range subjects {
		v, _ := bySubject[subj][fps].Value(metric)
		b, _ := bySubject[subj][baseline].Value(metric)
		value += v
		delta += v - b
	}
	n := float64(len(subjects))
	return value / n, delta / n
}
