// Package extractor computes per-clip tracking quality metrics from frame
// redundancy and pose-landmark trajectories.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"

	"github.com/melody-ding/go-fpscheck/internal/pose"
	"github.com/melody-ding/go-fpscheck/internal/processor"
	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Config holds the extraction thresholds
type Config struct {
	VisibilityThreshold float64
	SimilarityThreshold float64
	TrackedJoints       []int
}

// Scorer rates the similarity of two equally sized frames in [0,1]
type Scorer interface {
	Score(a, b image.Image) (float64, error)
}

// FrameSource yields the frames of one clip in order
type FrameSource interface {
	Next() (image.Image, error)
	Close() error
}

// Point is one joint sample; Valid is false when no pose was detected
type Point struct {
	X, Y  float64
	Valid bool
}

// Analysis is the full result of analysing one clip
type Analysis struct {
	Record types.FrameMetricRecord
	// Scores holds the similarity of every consecutive frame pair
	Scores []float64
	// Trajectories holds one sample per frame for each tracked joint
	Trajectories [][]Point
}

// Extractor analyses clips one at a time. It holds no state between clips,
// but the pose estimator it wraps may, so use one Extractor per goroutine.
type Extractor struct {
	cfg    Config
	pose   pose.Estimator
	scorer Scorer
	logger *slog.Logger
	open   func(ctx context.Context, path string) (FrameSource, error)
}

// New returns an Extractor decoding clips through ffmpeg
func New(cfg Config, estimator pose.Estimator, scorer Scorer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		cfg:    cfg,
		pose:   estimator,
		scorer: scorer,
		logger: logger,
		open:   openReader,
	}
}

type readerSource struct {
	r *processor.FrameReader
}

func openReader(ctx context.Context, path string) (FrameSource, error) {
	r, err := processor.OpenFrames(ctx, path)
	if err != nil {
		return nil, err
	}
	return readerSource{r: r}, nil
}

func (s readerSource) Next() (image.Image, error) {
	f, err := s.r.Next()
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s readerSource) Close() error {
	return s.r.Close()
}

// Extract decodes clip and computes its metrics
func (e *Extractor) Extract(ctx context.Context, clip types.Clip) (Analysis, error) {
	src, err := e.open(ctx, clip.Path)
	if err != nil {
		return Analysis{}, &types.ClipError{Clip: clip.Name(), Err: err}
	}
	defer src.Close()
	return e.ExtractFrames(ctx, clip, src)
}

// ExtractFrames computes the metrics of clip from frames read off src
func (e *Extractor) ExtractFrames(ctx context.Context, clip types.Clip, src FrameSource) (Analysis, error) {
	if r, ok := e.pose.(pose.Resetter); ok {
		if err := r.Reset(ctx); err != nil {
			return Analysis{}, &types.ClipError{Clip: clip.Name(), Err: fmt.Errorf("reset pose tracker: %w", err)}
		}
	}

	joints := e.cfg.TrackedJoints
	a := Analysis{Trajectories: make([][]Point, len(joints))}
	var prev image.Image
	total, full := 0, 0

	for {
		if err := ctx.Err(); err != nil {
			return Analysis{}, &types.ClipError{Clip: clip.Name(), Err: err}
		}
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if total == 0 {
				return Analysis{}, &types.ClipError{Clip: clip.Name(), Err: fmt.Errorf("%w: %v", types.ErrClipUnreadable, err)}
			}
			return Analysis{}, &types.ClipError{Clip: clip.Name(), Err: fmt.Errorf("frame %d: %w", total, err)}
		}

		if prev != nil {
			score, err := e.scorer.Score(prev, frame)
			if err != nil {
				return Analysis{}, &types.ClipError{Clip: clip.Name(), Err: fmt.Errorf("similarity at frame %d: %w", total, err)}
			}
			a.Scores = append(a.Scores, score)
		}
		prev = frame
		total++

		landmarks, err := e.pose.Detect(ctx, frame)
		if err != nil {
			return Analysis{}, &types.ClipError{Clip: clip.Name(), Err: fmt.Errorf("pose at frame %d: %w", total-1, err)}
		}
		if len(landmarks) > 0 && e.fullyVisible(landmarks) {
			full++
		}
		for j, idx := range joints {
			p := Point{}
			if idx < len(landmarks) {
				p = Point{X: landmarks[idx].X, Y: landmarks[idx].Y, Valid: true}
			}
			a.Trajectories[j] = append(a.Trajectories[j], p)
		}
	}

	if total == 0 {
		return Analysis{}, &types.ClipError{Clip: clip.Name(), Err: types.ErrClipUnreadable}
	}

	jitter, stability := trajectoryMetrics(a.Trajectories)
	a.Record = types.FrameMetricRecord{
		Clip:           clip.Name(),
		FPS:            clip.FPS,
		FrameCount:     total,
		DupPct:         DupFraction(a.Scores, e.cfg.SimilarityThreshold),
		MeanSimilarity: mean(a.Scores),
		Coverage:       float64(full) / float64(total),
		Jitter:         jitter,
		Stability:      stability,
	}

	e.logger.Debug("clip analysed",
		"clip", clip.Name(),
		"frames", total,
		"dup_pct", a.Record.DupPct,
		"coverage", a.Record.Coverage,
		"jitter", a.Record.Jitter,
		"stability", a.Record.Stability,
	)
	return a, nil
}

// fullyVisible reports whether every landmark clears the visibility threshold
func (e *Extractor) fullyVisible(landmarks []pose.Landmark) bool {
	visible := 0
	for _, lm := range landmarks {
		if lm.Visibility > e.cfg.VisibilityThreshold {
			visible++
		}
	}
	return visible == len(landmarks)
}

// TrajectoryMatrix flattens the trajectories into frames x (2*joints) values
// in row-major order, with NaN for frames where no pose was detected
func (a Analysis) TrajectoryMatrix() ([]float64, []int) {
	joints := len(a.Trajectories)
	if joints == 0 {
		return nil, []int{0, 0}
	}
	frames := len(a.Trajectories[0])
	out := make([]float64, 0, frames*joints*2)
	for t := 0; t < frames; t++ {
		for j := 0; j < joints; j++ {
			p := a.Trajectories[j][t]
			if !p.Valid {
				out = append(out, math.NaN(), math.NaN())
				continue
			}
			out = append(out, p.X, p.Y)
		}
	}
	return out, []int{frames, joints * 2}
}
