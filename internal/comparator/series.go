// Package comparator tests whether a metric differs significantly between
// the baseline frame rate and each reduced rate.
package comparator

import (
	"fmt"
	"math"
	"sort"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Observation is one long-format row of a metric series
type Observation struct {
	Subject string
	FPS     int
	Value   float64
}

// Series is a metric laid out as Values[subject][rate]. Only rates with a
// finite value for every subject are kept.
type Series struct {
	Metric   string
	Subjects []string
	Rates    []int // ascending
	Values   [][]float64
	Dropped  []int // rates missing for at least one subject
}

// Baseline returns the highest rate of the series
func (s Series) Baseline() int {
	if len(s.Rates) == 0 {
		return 0
	}
	return s.Rates[len(s.Rates)-1]
}

// Column returns the values of every subject at rate index j
func (s Series) Column(j int) []float64 {
	out := make([]float64, len(s.Values))
	for i, row := range s.Values {
		out[i] = row[j]
	}
	return out
}

// Constant reports whether every value of the series is identical
func (s Series) Constant() bool {
	first := math.NaN()
	for _, row := range s.Values {
		for _, v := range row {
			if math.IsNaN(first) {
				first = v
				continue
			}
			if v != first {
				return false
			}
		}
	}
	return true
}

// Long reshapes records into long-format observations of metric
func Long(records []types.FrameMetricRecord, metric string) ([]Observation, error) {
	out := make([]Observation, 0, len(records))
	for _, r := range records {
		v, ok := r.Value(metric)
		if !ok {
			return nil, fmt.Errorf("unknown metric %q", metric)
		}
		out = append(out, Observation{Subject: r.Subject, FPS: r.FPS, Value: v})
	}
	return out, nil
}

// BuildSeries pivots records into a subjects x rates matrix for metric.
// A rate appearing twice for the same subject is an error.
func BuildSeries(records []types.FrameMetricRecord, metric string) (Series, error) {
	obs, err := Long(records, metric)
	if err != nil {
		return Series{}, err
	}

	bySubject := map[string]map[int]float64{}
	var subjects []string
	allRates := map[int]bool{}
	for _, o := range obs {
		m, ok := bySubject[o.Subject]
		if !ok {
			m = map[int]float64{}
			bySubject[o.Subject] = m
			subjects = append(subjects, o.Subject)
		}
		if _, dup := m[o.FPS]; dup {
			return Series{}, fmt.Errorf("subject %q has two clips at %d fps", o.Subject, o.FPS)
		}
		m[o.FPS] = o.Value
		allRates[o.FPS] = true
	}
	sort.Strings(subjects)

	s := Series{Metric: metric, Subjects: subjects}
	for fps := range allRates {
		complete := true
		for _, subj := range subjects {
			v, ok := bySubject[subj][fps]
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				complete = false
				break
			}
		}
		if complete {
			s.Rates = append(s.Rates, fps)
		} else {
			s.Dropped = append(s.Dropped, fps)
		}
	}
	sort.Ints(s.Rates)
	sort.Ints(s.Dropped)

	s.Values = make([][]float64, len(subjects))
	for i, subj := range subjects {
		row := make([]float64, len(s.Rates))
		for j, fps := range s.Rates {
			row[j] = bySubject[subj][fps]
		}
		s.Values[i] = row
	}
	return s, nil
}
