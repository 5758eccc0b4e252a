// Package report persists the metric table, the selection summary and the
// statistical tests as CSV files and optional plots.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/melody-ding/go-fpscheck/internal/comparator"
	"github.com/melody-ding/go-fpscheck/internal/extractor"
	"github.com/melody-ding/go-fpscheck/internal/metricset"
	"github.com/melody-ding/go-fpscheck/internal/selector"
	"github.com/melody-ding/go-fpscheck/internal/types"
)

// File names inside a report directory
const (
	MetricsFile    = "metrics_all_fps.csv"
	SummaryFile    = "metrics_summary.csv"
	RedundancyFile = "redundancy.csv"
	StatsFile      = "stats.csv"
)

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}

// WriteMetricsCSV writes one row per clip. Delta columns are empty for
// baseline rows.
func WriteMetricsCSV(path string, records []types.FrameMetricRecord) error {
	header := []string{
		"subject", "clip", "fps", "frame_count",
		"dup_pct", "mean_similarity", "coverage", "jitter", "stability",
		"d_coverage", "d_jitter", "d_stability", "d_dup_pct",
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := []string{
			r.Subject, r.Clip, strconv.Itoa(r.FPS), strconv.Itoa(r.FrameCount),
			ftoa(r.DupPct), ftoa(r.MeanSimilarity), ftoa(r.Coverage), ftoa(r.Jitter), ftoa(r.Stability),
			"", "", "", "",
		}
		if d := r.Delta; d != nil {
			row[9], row[10], row[11], row[12] = ftoa(d.Coverage), ftoa(d.Jitter), ftoa(d.Stability), ftoa(d.DupPct)
		}
		rows = append(rows, row)
	}
	return writeCSV(path, header, rows)
}

// WriteSummaryCSV writes one row per candidate rate and metric
func WriteSummaryCSV(path string, rows []selector.ComparisonRow) error {
	header := []string{"fps", "metric", "value", "delta", "p_value", "within_tolerance", "not_significant"}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			strconv.Itoa(r.FPS), r.Metric, ftoa(r.Value), ftoa(r.Delta), ftoa(r.PValue),
			strconv.FormatBool(r.WithinTolerance), strconv.FormatBool(r.NotSignificant),
		})
	}
	return writeCSV(path, header, out)
}

// WriteRedundancyCSV writes the redundancy profile of every clip
func WriteRedundancyCSV(path string, tables []*metricset.Table, thresholds []float64) error {
	header := []string{"subject", "clip", "fps", "frames", "threshold", "kept", "kept_pct"}
	var rows [][]string
	for _, t := range tables {
		for _, e := range t.Entries {
			frames := e.Analysis.Record.FrameCount
			for _, p := range extractor.RedundancyProfile(e.Analysis.Scores, thresholds) {
				rows = append(rows, []string{
					t.Subject, e.Analysis.Record.Clip, strconv.Itoa(e.Clip.FPS), strconv.Itoa(frames),
					strconv.FormatFloat(p.Threshold, 'f', 2, 64), strconv.Itoa(p.Kept),
					ftoa(100 * float64(p.Kept) / float64(frames)),
				})
			}
		}
	}
	return writeCSV(path, header, rows)
}

// WriteStatsCSV writes one omnibus row per metric followed by its
// post-hoc rows against the baseline
func WriteStatsCSV(path string, tests []selector.MetricTest) error {
	header := []string{"metric", "test", "subjects", "fps", "statistic", "p_value", "p_adj", "significant", "error"}
	var rows [][]string
	for _, t := range tests {
		errText := ""
		if t.Err != nil {
			errText = t.Err.Error()
		}
		rows = append(rows, []string{
			t.Metric, t.Method.String(), strconv.Itoa(t.Subjects), "",
			ftoa(t.Statistic), ftoa(t.P), "", strconv.FormatBool(t.Significant), errText,
		})
		for _, p := range t.Pairs {
			rows = append(rows, []string{
				t.Metric, posthocName(t.Method), strconv.Itoa(t.Subjects), strconv.Itoa(p.FPS),
				"", ftoa(p.PRaw), ftoa(p.PAdj), strconv.FormatBool(p.Reject), "",
			})
		}
	}
	return writeCSV(path, header, rows)
}

func posthocName(m comparator.Method) string {
	if m == comparator.Parametric {
		return "tukey-hsd"
	}
	return "wilcoxon-holm"
}
