package comparator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/melody-ding/go-fpscheck/internal/stats"
	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Method identifies the family of tests applied to a series
type Method int

const (
	// NonParametric runs Friedman, then Wilcoxon signed-rank with Holm correction
	NonParametric Method = iota
	// Parametric runs repeated-measures ANOVA, then Tukey HSD
	Parametric
)

func (m Method) String() string {
	if m == Parametric {
		return "rm-anova"
	}
	return "friedman"
}

// PairResult is the post-hoc comparison of one rate against the baseline
type PairResult struct {
	FPS    int
	PRaw   float64
	PAdj   float64
	Reject bool
}

// Result is the full comparison of one metric
type Result struct {
	Metric      string
	Method      Method
	Subjects    int
	Statistic   float64
	P           float64
	Significant bool
	Pairs       []PairResult // only when Significant
}

// variant is one family of omnibus and post-hoc tests
type variant interface {
	method() Method
	omnibus(s Series) (stats.Result, error)
	vsBaseline(s Series, alpha float64) ([]PairResult, error)
}

// Comparator runs significance tests on metric series
type Comparator struct {
	alpha         float64
	forceNonParam bool
	logger        *slog.Logger
}

// New returns a Comparator testing at significance level alpha
func New(alpha float64, forceNonParam bool, logger *slog.Logger) *Comparator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparator{alpha: alpha, forceNonParam: forceNonParam, logger: logger}
}

// Alpha returns the significance level
func (c *Comparator) Alpha() float64 {
	return c.alpha
}

// Method returns the test family used for s
func (c *Comparator) Method(s Series) Method {
	return c.variant(s).method()
}

func (c *Comparator) variant(s Series) variant {
	if len(s.Subjects) > 1 && !c.forceNonParam {
		return parametric{}
	}
	return nonParametric{}
}

func checkSeries(s Series) error {
	if len(s.Rates) < 2 {
		return fmt.Errorf("%s: %w: %d complete rates", s.Metric, types.ErrInsufficientData, len(s.Rates))
	}
	if s.Constant() {
		return fmt.Errorf("%s: %w", s.Metric, types.ErrInsufficientVariation)
	}
	return nil
}

// Compare runs the omnibus test on s and, when it is significant, the
// post-hoc comparisons of every rate against the baseline.
func (c *Comparator) Compare(s Series) (Result, error) {
	v := c.variant(s)
	res := Result{Metric: s.Metric, Method: v.method(), Subjects: len(s.Subjects)}
	if err := checkSeries(s); err != nil {
		return res, err
	}

	omni, err := v.omnibus(s)
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", s.Metric, v.method(), err)
	}
	res.Statistic, res.P = omni.Statistic, omni.P
	res.Significant = omni.P < c.alpha

	c.logger.Debug("omnibus test",
		"metric", s.Metric,
		"method", v.method().String(),
		"statistic", omni.Statistic,
		"p", omni.P,
	)
	if !res.Significant {
		return res, nil
	}

	pairs, err := v.vsBaseline(s, c.alpha)
	if err != nil {
		return res, fmt.Errorf("%s post-hoc: %w", s.Metric, err)
	}
	res.Pairs = pairs
	return res, nil
}

// PValuesVsBaseline maps every non-baseline rate of s to its p-value
// against the baseline, computed whether or not the omnibus test is
// significant. Pairs whose test is undefined get p = 1.
func (c *Comparator) PValuesVsBaseline(s Series) (map[int]float64, error) {
	if err := checkSeries(s); err != nil {
		return nil, err
	}
	pairs, err := c.variant(s).vsBaseline(s, c.alpha)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Metric, err)
	}
	out := make(map[int]float64, len(pairs))
	for _, p := range pairs {
		out[p.FPS] = p.PAdj
	}
	return out, nil
}

// Undefined reports whether err only means the test could not be run
func Undefined(err error) bool {
	return errors.Is(err, types.ErrInsufficientVariation) || errors.Is(err, types.ErrInsufficientData)
}
