// Package pipeline runs a full frame-rate evaluation: simulate reduced
// rates, measure every clip, compare against the baseline, select a rate
// and write the report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/melody-ding/go-fpscheck/internal/comparator"
	"github.com/melody-ding/go-fpscheck/internal/config"
	"github.com/melody-ding/go-fpscheck/internal/extractor"
	"github.com/melody-ding/go-fpscheck/internal/metricset"
	"github.com/melody-ding/go-fpscheck/internal/numpy"
	"github.com/melody-ding/go-fpscheck/internal/pose"
	"github.com/melody-ding/go-fpscheck/internal/processor"
	"github.com/melody-ding/go-fpscheck/internal/report"
	"github.com/melody-ding/go-fpscheck/internal/selector"
	"github.com/melody-ding/go-fpscheck/internal/sharding"
	"github.com/melody-ding/go-fpscheck/internal/similarity"
	"github.com/melody-ding/go-fpscheck/internal/simulator"
	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Subject is one baseline recording
type Subject struct {
	Name     string
	Baseline types.Clip
}

// Subjects labels baselines S0, S1, ... in order
func Subjects(baselines []types.Clip) []Subject {
	out := make([]Subject, len(baselines))
	for i, b := range baselines {
		out[i] = Subject{Name: fmt.Sprintf("S%d", i), Baseline: b}
	}
	return out
}

// Result is everything a run produced
type Result struct {
	RunID    string
	Dir      string
	Decision selector.Decision
	Tables   []*metricset.Table
	Failures []metricset.ClipFailure
	Aborted  map[string]error // subjects whose baseline could not be analysed
}

type simulateFunc func(ctx context.Context, src types.Clip, rates []int) ([]types.Clip, error)

// analyzerFactory returns an analyzer and the function releasing it
type analyzerFactory func(ctx context.Context) (metricset.Analyzer, func() error, error)

// Runner executes evaluation runs
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	progress io.Writer

	simulate    func(outDir string) simulateFunc
	newAnalyzer analyzerFactory
}

// New returns a Runner using ffmpeg for video and a pose worker process
// per analysis goroutine
func New(cfg *config.Config, logger *slog.Logger, progress io.Writer) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{cfg: cfg, logger: logger, progress: progress}
	r.simulate = func(outDir string) simulateFunc {
		sim := simulator.New(simulator.Options{
			OutDir:  outDir,
			Count:   cfg.Downsample.Count,
			Divisor: cfg.Downsample.Divisor,
		}, logger)
		return sim.Simulate
	}
	r.newAnalyzer = r.poseAnalyzer
	return r
}

func (r *Runner) poseAnalyzer(ctx context.Context) (metricset.Analyzer, func() error, error) {
	resize, err := processor.ParseDimensions(r.cfg.SimilarityResize)
	if err != nil {
		return nil, nil, err
	}
	est := pose.NewSupervisor(ctx, pose.WorkerConfig{
		Command:         r.cfg.Pose.Command,
		Args:            r.cfg.Pose.Args,
		ModelComplexity: r.cfg.Pose.ModelComplexity,
		Logger:          r.logger,
	})
	ex := extractor.New(extractor.Config{
		VisibilityThreshold: r.cfg.VisibilityThreshold,
		SimilarityThreshold: r.cfg.SimilarityThreshold,
		TrackedJoints:       r.cfg.TrackedJoints,
	}, est, similarity.NewSSIM(resize), r.logger)
	return ex, est.Close, nil
}

// Run evaluates subjects and writes the report into a new directory under
// the configured output directory. It fails only when no subject could be
// analysed at all or the report cannot be written.
func (r *Runner) Run(ctx context.Context, subjects []Subject) (*Result, error) {
	if len(subjects) == 0 {
		return nil, errors.New("no baseline clips given")
	}

	res := &Result{RunID: uuid.NewString(), Aborted: map[string]error{}}
	res.Dir = filepath.Join(r.cfg.OutputDir, res.RunID)
	if err := os.MkdirAll(res.Dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating report directory: %w", err)
	}
	logger := r.logger.With("run_id", res.RunID)
	logger.Info("run started", "subjects", len(subjects), "dir", res.Dir)

	analyzers := make([]metricset.Analyzer, 0, r.cfg.Workers)
	for i := 0; i < max(1, r.cfg.Workers); i++ {
		a, release, err := r.newAnalyzer(ctx)
		if err != nil {
			return nil, fmt.Errorf("error starting analyzer: %w", err)
		}
		defer func() {
			if err := release(); err != nil {
				logger.Debug("analyzer release", "error", err)
			}
		}()
		analyzers = append(analyzers, a)
	}
	builder, err := metricset.NewBuilder(analyzers, metricset.Options{
		ClipTimeout: r.cfg.ClipTimeout,
		Progress:    r.progress,
	}, logger)
	if err != nil {
		return nil, err
	}

	var records []types.FrameMetricRecord
	for _, subj := range subjects {
		table, failures, err := r.runSubject(ctx, logger, builder, res.Dir, subj)
		res.Failures = append(res.Failures, failures...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Aborted[subj.Name] = err
			logger.Warn("subject aborted", "subject", subj.Name, "clip", subj.Baseline.Name(), "error", err)
			continue
		}
		res.Tables = append(res.Tables, table)
		records = append(records, table.Records()...)
	}
	if len(res.Tables) == 0 {
		return res, fmt.Errorf("no baseline could be analysed: %w", firstError(res.Aborted))
	}

	if r.cfg.Trajectories {
		if err := r.dumpTrajectories(logger, res); err != nil {
			logger.Warn("trajectory dump failed", "error", err)
		}
	}

	cmp := comparator.New(r.cfg.Alpha, r.cfg.ForceNonParam, logger)
	sel := selector.New(selector.Config{
		Metrics:    types.TrackedMetrics,
		Tolerances: r.cfg.Tolerances,
		MaxDupPct:  r.cfg.MaxDupPct,
	}, cmp, logger)
	res.Decision, err = sel.Select(records)
	if err != nil {
		return res, err
	}

	if err := r.writeReport(logger, res, records); err != nil {
		return res, err
	}
	logger.Info("run finished",
		"recommended_fps", res.Decision.RecommendedFPS,
		"baseline_fps", res.Decision.BaselineFPS,
		"skipped_clips", len(res.Failures),
	)
	return res, nil
}

// runSubject simulates the reduced rates of one baseline and builds its table
func (r *Runner) runSubject(ctx context.Context, logger *slog.Logger, builder *metricset.Builder, dir string, subj Subject) (*metricset.Table, []metricset.ClipFailure, error) {
	simCtx := ctx
	if r.cfg.ClipTimeout > 0 {
		var cancel context.CancelFunc
		simCtx, cancel = context.WithTimeout(ctx, r.cfg.ClipTimeout)
		defer cancel()
	}

	start := time.Now()
	simulate := r.simulate(filepath.Join(dir, "clips", subj.Name))
	derived, err := simulate(simCtx, subj.Baseline, r.cfg.Downsample.Targets)
	if err != nil {
		if len(derived) == 0 {
			return nil, nil, fmt.Errorf("simulate: %w", err)
		}
		logger.Warn("some reduced rates could not be written", "subject", subj.Name, "error", err)
	}
	logger.Info("reduced rates simulated",
		"subject", subj.Name,
		"clip", subj.Baseline.Name(),
		"clips", len(derived),
		"elapsed", time.Since(start).String(),
	)
	return builder.Build(ctx, subj.Name, subj.Baseline, derived)
}

func (r *Runner) dumpTrajectories(logger *slog.Logger, res *Result) error {
	root := filepath.Join(res.Dir, "trajectories")
	for _, t := range res.Tables {
		dir := filepath.Join(root, t.Subject)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		for _, e := range t.Entries {
			data, shape := e.Analysis.TrajectoryMatrix()
			path := filepath.Join(dir, e.Clip.Key+".npy")
			if err := numpy.SaveFloat64(path, data, shape); err != nil {
				return err
			}
		}
	}
	if r.cfg.ShardSize > 0 {
		shards, err := sharding.CreateTrajectoryShards(root, filepath.Join(res.Dir, "shards"), r.cfg.ShardSize)
		if err != nil {
			return err
		}
		logger.Info("trajectory shards written", "shards", len(shards))
	}
	return nil
}

func (r *Runner) writeReport(logger *slog.Logger, res *Result, records []types.FrameMetricRecord) error {
	if err := report.WriteMetricsCSV(filepath.Join(res.Dir, report.MetricsFile), records); err != nil {
		return err
	}
	if err := report.WriteSummaryCSV(filepath.Join(res.Dir, report.SummaryFile), res.Decision.Rows); err != nil {
		return err
	}
	if err := report.WriteRedundancyCSV(filepath.Join(res.Dir, report.RedundancyFile), res.Tables, extractor.SweepThresholds); err != nil {
		return err
	}
	if err := report.WriteStatsCSV(filepath.Join(res.Dir, report.StatsFile), res.Decision.Tests); err != nil {
		return err
	}
	if !r.cfg.Plots {
		return nil
	}
	for _, metric := range types.TrackedMetrics {
		path := filepath.Join(res.Dir, metric+"_vs_fps.png")
		if err := report.PlotMetric(path, metric, records, res.Decision.RecommendedFPS); err != nil {
			logger.Warn("plot skipped", "metric", metric, "error", err)
		}
	}
	return nil
}

func firstError(m map[string]error) error {
	for _, err := range m {
		return err
	}
	return types.ErrInsufficientData
}
