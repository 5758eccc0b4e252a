package config

import (
	"fmt"

	"github.com/melody-ding/go-fpscheck/internal/pose"
	"github.com/melody-ding/go-fpscheck/internal/processor"
)

// Validate checks the configuration and fills in missing defaults
func (c *Config) Validate() error {
	if c.VisibilityThreshold < 0 || c.VisibilityThreshold > 1 {
		return fmt.Errorf("visibility_threshold must be in [0,1], got %v", c.VisibilityThreshold)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [0,1], got %v", c.SimilarityThreshold)
	}
	if c.SimilarityResize == "" {
		c.SimilarityResize = "0x0"
	}
	if _, err := processor.ParseDimensions(c.SimilarityResize); err != nil {
		return fmt.Errorf("similarity_resize: %w", err)
	}

	if len(c.TrackedJoints) == 0 {
		return fmt.Errorf("tracked_joints must not be empty")
	}
	seen := make(map[int]bool, len(c.TrackedJoints))
	for _, j := range c.TrackedJoints {
		if j < 0 || j >= pose.NumLandmarks {
			return fmt.Errorf("tracked_joints: landmark index %d outside [0,%d)", j, pose.NumLandmarks)
		}
		if seen[j] {
			return fmt.Errorf("tracked_joints: duplicate landmark index %d", j)
		}
		seen[j] = true
	}

	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("alpha must be in (0,1), got %v", c.Alpha)
	}

	if c.Tolerances == nil {
		c.Tolerances = DefaultTolerances()
	}
	for metric, def := range DefaultTolerances() {
		tol, ok := c.Tolerances[metric]
		if !ok {
			c.Tolerances[metric] = def
			continue
		}
		if tol < 0 {
			return fmt.Errorf("tolerances.%s must be >= 0, got %v", metric, tol)
		}
	}
	for metric := range c.Tolerances {
		if _, ok := DefaultTolerances()[metric]; !ok {
			return fmt.Errorf("tolerances: unknown metric %q", metric)
		}
	}

	if c.MaxDupPct <= 0 || c.MaxDupPct > 1 {
		c.MaxDupPct = 1
	}

	if c.Downsample.Count <= 0 {
		c.Downsample.Count = 5
	}
	if c.Downsample.Divisor <= 0 {
		c.Downsample.Divisor = 6
	}
	for _, f := range c.Downsample.Targets {
		if f <= 0 {
			return fmt.Errorf("downsample.targets must be > 0, got %d", f)
		}
	}

	if c.DefaultFPS <= 0 {
		return fmt.Errorf("default_fps must be > 0")
	}
	if c.ClipTimeout < 0 {
		return fmt.Errorf("clip_timeout must be >= 0")
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.OutputDir == "" {
		c.OutputDir = "fpscheck-out"
	}
	if c.ShardSize < 0 {
		return fmt.Errorf("shard_size must be >= 0")
	}

	if c.Pose.Command == "" {
		return fmt.Errorf("pose.command is required")
	}
	if c.Pose.ModelComplexity < 0 || c.Pose.ModelComplexity > 2 {
		return fmt.Errorf("pose.model_complexity must be 0, 1 or 2")
	}

	return nil
}
