package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fpscheck.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.VisibilityThreshold != 0.5 || cfg.SimilarityThreshold != 0.95 || cfg.Alpha != 0.05 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.TrackedJoints) != 3 {
		t.Errorf("default tracked joints = %v, want 3 joints", cfg.TrackedJoints)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
alpha: 0.01
similarity_threshold: 0.9
clip_timeout: 90s
tolerances:
  jitter: 0.001
downsample:
  targets: [20, 10]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Alpha != 0.01 || cfg.SimilarityThreshold != 0.9 {
		t.Errorf("Load() did not apply overrides: %+v", cfg)
	}
	if cfg.ClipTimeout != 90*time.Second {
		t.Errorf("ClipTimeout = %v, want 90s", cfg.ClipTimeout)
	}
	if cfg.Tolerances["jitter"] != 0.001 {
		t.Errorf("Tolerances[jitter] = %v, want 0.001", cfg.Tolerances["jitter"])
	}
	if cfg.Tolerances["coverage"] != 0.02 {
		t.Errorf("Tolerances[coverage] = %v, want default 0.02", cfg.Tolerances["coverage"])
	}
	if cfg.VisibilityThreshold != 0.5 {
		t.Errorf("VisibilityThreshold = %v, want default 0.5", cfg.VisibilityThreshold)
	}
	if len(cfg.Downsample.Targets) != 2 {
		t.Errorf("Downsample.Targets = %v", cfg.Downsample.Targets)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"alpha zero", func(c *Config) { c.Alpha = 0 }},
		{"visibility above one", func(c *Config) { c.VisibilityThreshold = 1.5 }},
		{"no joints", func(c *Config) { c.TrackedJoints = nil }},
		{"duplicate joint", func(c *Config) { c.TrackedJoints = []int{11, 11} }},
		{"joint out of range", func(c *Config) { c.TrackedJoints = []int{11, 33} }},
		{"negative joint", func(c *Config) { c.TrackedJoints = []int{-1} }},
		{"negative tolerance", func(c *Config) { c.Tolerances["jitter"] = -1 }},
		{"unknown metric", func(c *Config) { c.Tolerances["speed"] = 1 }},
		{"bad resize", func(c *Config) { c.SimilarityResize = "256" }},
		{"zero target", func(c *Config) { c.Downsample.Targets = []int{0} }},
		{"no pose command", func(c *Config) { c.Pose.Command = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}
