package comparator

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

func record(subject string, fps int, coverage float64) types.FrameMetricRecord {
	return types.FrameMetricRecord{
		Subject:  subject,
		Clip:     fmt.Sprintf("%s_%dfps.mp4", subject, fps),
		FPS:      fps,
		Coverage: coverage,
		Jitter:   0.01,
	}
}

func TestBuildSeries(t *testing.T) {
	records := []types.FrameMetricRecord{
		record("S1", 30, 0.9),
		record("S0", 30, 0.8),
		record("S0", 20, 0.7),
		record("S1", 20, 0.6),
		record("S0", 10, 0.5),
		record("S1", 10, math.NaN()),
		record("S0", 15, 0.4),
	}
	s, err := BuildSeries(records, types.MetricCoverage)
	if err != nil {
		t.Fatalf("BuildSeries() error = %v", err)
	}
	if len(s.Subjects) != 2 || s.Subjects[0] != "S0" {
		t.Errorf("Subjects = %v", s.Subjects)
	}
	if len(s.Rates) != 2 || s.Rates[0] != 20 || s.Rates[1] != 30 {
		t.Errorf("Rates = %v, want [20 30]", s.Rates)
	}
	if len(s.Dropped) != 2 || s.Dropped[0] != 10 || s.Dropped[1] != 15 {
		t.Errorf("Dropped = %v, want [10 15]", s.Dropped)
	}
	if s.Values[1][0] != 0.6 || s.Values[0][1] != 0.8 {
		t.Errorf("Values = %v", s.Values)
	}
	if s.Baseline() != 30 {
		t.Errorf("Baseline() = %d", s.Baseline())
	}
}

func TestBuildSeriesErrors(t *testing.T) {
	dup := []types.FrameMetricRecord{record("S0", 30, 1), record("S0", 30, 0.9)}
	if _, err := BuildSeries(dup, types.MetricCoverage); err == nil {
		t.Error("duplicate rate for one subject should fail")
	}
	if _, err := BuildSeries(dup[:1], "sharpness"); err == nil {
		t.Error("unknown metric should fail")
	}
}

func singleSubject(values map[int]float64) []types.FrameMetricRecord {
	var out []types.FrameMetricRecord
	for fps, v := range values {
		out = append(out, record("S0", fps, v))
	}
	return out
}

func TestCompareConstantSeries(t *testing.T) {
	s, err := BuildSeries(singleSubject(map[int]float64{30: 0.9, 25: 0.9, 20: 0.9}), types.MetricJitter)
	if err != nil {
		t.Fatal(err)
	}
	c := New(0.05, false, nil)
	if _, err := c.Compare(s); !errors.Is(err, types.ErrInsufficientVariation) {
		t.Errorf("Compare() error = %v, want ErrInsufficientVariation", err)
	}
	_, err = c.PValuesVsBaseline(s)
	if !errors.Is(err, types.ErrInsufficientVariation) {
		t.Errorf("PValuesVsBaseline() error = %v, want ErrInsufficientVariation", err)
	}
	if !Undefined(err) {
		t.Errorf("error %v should count as undefined", err)
	}
}

func TestCompareSingleSubject(t *testing.T) {
	s, err := BuildSeries(singleSubject(map[int]float64{30: 0.95, 25: 0.94, 20: 0.9, 15: 0.8, 10: 0.6}), types.MetricCoverage)
	if err != nil {
		t.Fatal(err)
	}
	c := New(0.05, false, nil)
	if c.Method(s) != NonParametric {
		t.Errorf("Method() = %v, want friedman", c.Method(s))
	}
	res, err := c.Compare(s)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if math.Abs(res.Statistic-4) > 1e-9 || res.Significant || res.Pairs != nil {
		t.Errorf("Compare() = %+v, want chi2 = 4 and not significant", res)
	}

	pv, err := c.PValuesVsBaseline(s)
	if err != nil {
		t.Fatalf("PValuesVsBaseline() error = %v", err)
	}
	if len(pv) != 4 {
		t.Fatalf("got %d p-values, want 4", len(pv))
	}
	for fps, p := range pv {
		if p != 1 {
			t.Errorf("p(%d) = %v, want 1 with one subject", fps, p)
		}
	}
	if _, ok := pv[30]; ok {
		t.Error("baseline must not have a p-value")
	}
}

func multiSubject() []types.FrameMetricRecord {
	at30 := []float64{0.9, 0.91, 0.89, 0.92, 0.88}
	at20 := []float64{0.9, 0.9, 0.9, 0.91, 0.89}
	at10 := []float64{0.5, 0.52, 0.48, 0.51, 0.49}
	var out []types.FrameMetricRecord
	for i := range at30 {
		subj := fmt.Sprintf("S%d", i)
		out = append(out, record(subj, 30, at30[i]), record(subj, 20, at20[i]), record(subj, 10, at10[i]))
	}
	return out
}

func TestCompareMultiSubject(t *testing.T) {
	s, err := BuildSeries(multiSubject(), types.MetricCoverage)
	if err != nil {
		t.Fatal(err)
	}
	c := New(0.05, false, nil)
	if c.Method(s) != Parametric {
		t.Fatalf("Method() = %v, want rm-anova", c.Method(s))
	}
	res, err := c.Compare(s)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !res.Significant || res.Subjects != 5 {
		t.Fatalf("Compare() = %+v, want significant", res)
	}
	if len(res.Pairs) != 2 {
		t.Fatalf("got %d post-hoc pairs, want 2 (baseline pairs only)", len(res.Pairs))
	}
	for _, p := range res.Pairs {
		switch p.FPS {
		case 10:
			if !p.Reject || p.PAdj > 0.001 {
				t.Errorf("10 fps pair = %+v, want rejected", p)
			}
		case 20:
			if p.Reject || p.PAdj < 0.9 {
				t.Errorf("20 fps pair = %+v, want not rejected", p)
			}
		default:
			t.Errorf("unexpected pair %+v", p)
		}
	}
}

func TestForceNonParametric(t *testing.T) {
	s, err := BuildSeries(multiSubject(), types.MetricCoverage)
	if err != nil {
		t.Fatal(err)
	}
	c := New(0.05, true, nil)
	if c.Method(s) != NonParametric {
		t.Fatalf("Method() = %v, want friedman", c.Method(s))
	}
	pv, err := c.PValuesVsBaseline(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(pv) != 2 {
		t.Errorf("p-values = %v, want two rates", pv)
	}
}

func TestCompareTooFewRates(t *testing.T) {
	s, err := BuildSeries(singleSubject(map[int]float64{30: 0.9}), types.MetricCoverage)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(0.05, false, nil).PValuesVsBaseline(s); !errors.Is(err, types.ErrInsufficientData) {
		t.Errorf("error = %v, want ErrInsufficientData", err)
	}
}
