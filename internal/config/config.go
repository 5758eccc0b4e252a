package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/melody-ding/go-fpscheck/internal/pose"
	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Config represents the complete fpscheck configuration
type Config struct {
	VisibilityThreshold float64            `yaml:"visibility_threshold"`
	SimilarityThreshold float64            `yaml:"similarity_threshold"`
	SimilarityResize    string             `yaml:"similarity_resize"` // WxH, 0x0 keeps full resolution
	TrackedJoints       []int              `yaml:"tracked_joints"`    // MediaPipe pose landmark indices
	Alpha               float64            `yaml:"alpha"`
	Tolerances          map[string]float64 `yaml:"tolerances"` // positive magnitudes per metric
	MaxDupPct           float64            `yaml:"max_dup_pct"`
	ForceNonParam       bool               `yaml:"force_nonparam"`
	Downsample          DownsampleConfig   `yaml:"downsample"`
	DefaultFPS          int                `yaml:"default_fps"` // used when a name has no fps token
	ClipTimeout         time.Duration      `yaml:"clip_timeout"`
	Workers             int                `yaml:"workers"`
	OutputDir           string             `yaml:"output_dir"`
	Plots               bool               `yaml:"plots"`
	Trajectories        bool               `yaml:"trajectories"`
	ShardSize           int                `yaml:"shard_size"` // 0 disables trajectory shards
	Pose                PoseConfig         `yaml:"pose"`
}

// DownsampleConfig controls the candidate frame rates
type DownsampleConfig struct {
	Targets []int `yaml:"targets"` // explicit list, overrides the heuristic
	Count   int   `yaml:"count"`
	Divisor int   `yaml:"divisor"` // step = max(1, floor(F0/divisor))
}

// PoseConfig describes the pose worker subprocess
type PoseConfig struct {
	Command         string   `yaml:"command"`
	Args            []string `yaml:"args"`
	ModelComplexity int      `yaml:"model_complexity"`
}

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		VisibilityThreshold: 0.5,
		SimilarityThreshold: 0.95,
		SimilarityResize:    "0x0",
		TrackedJoints:       []int{pose.LeftShoulder, pose.LeftHip, pose.LeftWrist},
		Alpha:               0.05,
		Tolerances:          DefaultTolerances(),
		MaxDupPct:           0.95,
		Downsample: DownsampleConfig{
			Count:   5,
			Divisor: 6,
		},
		DefaultFPS:  30,
		ClipTimeout: 10 * time.Minute,
		Workers:     1,
		OutputDir:   "fpscheck-out",
		Plots:       true,
		Pose: PoseConfig{
			Command:         "models/run_pose_worker.sh",
			ModelComplexity: 1,
		},
	}
}

// DefaultTolerances returns the per-metric tolerance magnitudes
func DefaultTolerances() map[string]float64 {
	return map[string]float64{
		types.MetricCoverage:  0.02,
		types.MetricJitter:    0.0005,
		types.MetricStability: 0.0003,
		types.MetricDupPct:    0.05,
	}
}

// Load reads a YAML configuration file on top of the defaults
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
