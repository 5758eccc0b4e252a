package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/melody-ding/go-fpscheck/internal/config"
	"github.com/melody-ding/go-fpscheck/internal/pipeline"
	"github.com/melody-ding/go-fpscheck/internal/tar_reader"
	"github.com/melody-ding/go-fpscheck/internal/types"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file (defaults when empty)")
	outputDir := flag.String("out", "", "Directory for reports and reduced-rate clips")
	tarPath := flag.String("tar", "", "Archive of baseline .mp4 recordings, one subject each")
	targets := flag.String("targets", "", "Comma-separated reduced frame rates (e.g. 25,20,15)")
	workers := flag.Int("workers", 0, "Clips analysed in parallel, one pose worker each")
	forceNonParam := flag.Bool("force-nonparam", false, "Use Friedman/Wilcoxon even with several subjects")
	progress := flag.Bool("progress", true, "Show a progress bar on stderr")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fpscheck [flags] baseline.mp4 [baseline.mp4 ...]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "config", *configPath, "error", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *forceNonParam {
		cfg.ForceNonParam = true
	}
	if *targets != "" {
		if cfg.Downsample.Targets, err = parseTargets(*targets); err != nil {
			slog.Error("invalid -targets", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var baselines []types.Clip
	for _, path := range flag.Args() {
		baselines = append(baselines, types.NewClip(path, cfg.DefaultFPS))
	}
	if *tarPath != "" {
		clips, err := tar_reader.ExtractClipsFromTar(*tarPath, filepath.Join(cfg.OutputDir, "input"), cfg.DefaultFPS)
		if err != nil {
			slog.Error("failed to extract archive", "tar", *tarPath, "error", err)
			os.Exit(1)
		}
		baselines = append(baselines, clips...)
	}
	if len(baselines) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	for _, b := range baselines {
		if _, err := types.ParseFPS(b.Name()); err != nil {
			slog.Warn("no frame rate in file name, using default", "clip", b.Name(), "fps", cfg.DefaultFPS)
		}
	}

	slog.Info("starting fpscheck",
		"baselines", len(baselines),
		"output_dir", cfg.OutputDir,
		"workers", cfg.Workers,
		"debug", *debug,
	)

	var bar io.Writer
	if *progress {
		bar = os.Stderr
	}
	res, err := pipeline.New(cfg, logger, bar).Run(ctx, pipeline.Subjects(baselines))
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Recommended FPS = %d (baseline %d)\n", res.Decision.RecommendedFPS, res.Decision.BaselineFPS)
	fmt.Printf("Report written to %s\n", res.Dir)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func parseTargets(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fps, err := strconv.Atoi(part)
		if err != nil || fps <= 0 {
			return nil, fmt.Errorf("bad frame rate %q", part)
		}
		out = append(out, fps)
	}
	return out, nil
}
