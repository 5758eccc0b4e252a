package types

import (
	"errors"
	"math"
	"testing"
)

func TestParseFPS(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "fps token", input: "clip_25fps.mp4", want: 25},
		{name: "upper case token", input: "CLIP_60FPS.MP4", want: 60},
		{name: "spaced token", input: "walk 15 fps.mp4", want: 15},
		{name: "embedded integer", input: "baseline_30.mp4", want: 30},
		{name: "no number", input: "no_number_here.mp4", wantErr: true},
		{name: "extension digits ignored", input: "walk.mp4", wantErr: true},
		{name: "upper case extension", input: "subject_a.MP4", wantErr: true},
		{name: "last token wins", input: "walk_30fps_25fps.mp4", want: 25},
		{name: "directory ignored", input: "/data/60fps/walk.mp4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFPS(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFPS() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrFPSTokenMissing) {
					t.Errorf("ParseFPS() error = %v, want ErrFPSTokenMissing", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseFPS() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseFPSOr(t *testing.T) {
	if got := ParseFPSOr("no_number_here.mp4", 30); got != 30 {
		t.Errorf("ParseFPSOr() = %d, want fallback 30", got)
	}
	if got := ParseFPSOr("clip_12fps.mp4", 30); got != 12 {
		t.Errorf("ParseFPSOr() = %d, want 12", got)
	}
}

func TestNewClip(t *testing.T) {
	c := NewClip("/data/rec/walk_24fps.mp4", 30)
	if c.Key != "walk_24fps" || c.FPS != 24 || c.Name() != "walk_24fps.mp4" {
		t.Errorf("NewClip() = %+v", c)
	}
	c = NewClip("/data/rec/walk.mp4", 30)
	if c.FPS != 30 {
		t.Errorf("NewClip() fps = %d, want fallback 30", c.FPS)
	}
}

func TestDeltaAgainst(t *testing.T) {
	base := FrameMetricRecord{Coverage: 0.9, Jitter: 0.01, Stability: 0.02, DupPct: 0.1}
	rec := FrameMetricRecord{Coverage: 0.8, Jitter: 0.015, Stability: 0.02, DupPct: 0.05}
	d := rec.DeltaAgainst(base)
	const eps = 1e-12
	if math.Abs(d.Coverage+0.1) > eps || math.Abs(d.Jitter-0.005) > eps ||
		math.Abs(d.Stability) > eps || math.Abs(d.DupPct+0.05) > eps {
		t.Errorf("DeltaAgainst() = %+v", d)
	}
	if _, ok := rec.Value("unknown"); ok {
		t.Error("Value() accepted unknown metric")
	}
	if v, ok := rec.Value(MetricJitter); !ok || v != 0.015 {
		t.Errorf("Value(jitter) = %v, %v", v, ok)
	}
}

func TestClipErrorUnwrap(t *testing.T) {
	err := error(&ClipError{Clip: "a.mp4", Err: ErrClipUnreadable})
	if !errors.Is(err, ErrClipUnreadable) {
		t.Error("ClipError does not unwrap to its kind")
	}
}
