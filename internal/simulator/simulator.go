package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/melody-ding/go-fpscheck/internal/processor"
	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Source yields decoded frames of a clip
type Source interface {
	Info() processor.VideoInfo
	Next() (*processor.Frame, error)
	Close() error
}

// Sink encodes frames into one output clip
type Sink interface {
	WriteFrame(f *processor.Frame) error
	Close() error
	Abort()
}

// Options controls where copies go and how default rates are chosen
type Options struct {
	OutDir  string
	Count   int // number of default targets
	Divisor int // default step is max(1, floor(F0/Divisor))
}

// Simulator writes downsampled copies of a baseline clip
type Simulator struct {
	opts   Options
	logger *slog.Logger

	openSource func(ctx context.Context, path string) (Source, error)
	createSink func(ctx context.Context, path string, fps, width, height int) (Sink, error)
}

// New returns a Simulator encoding through ffmpeg
func New(opts Options, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Count <= 0 {
		opts.Count = 5
	}
	if opts.Divisor <= 0 {
		opts.Divisor = 6
	}
	return &Simulator{
		opts:   opts,
		logger: logger,
		openSource: func(ctx context.Context, path string) (Source, error) {
			return processor.OpenFrames(ctx, path)
		},
		createSink: func(ctx context.Context, path string, fps, width, height int) (Sink, error) {
			return processor.NewClipWriter(ctx, path, fps, width, height)
		},
	}
}

// OutputPath returns the deterministic path of the copy of source at fps
func OutputPath(outDir, source string, fps int) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(outDir, fmt.Sprintf("%s_%dfps.mp4", stem, fps))
}

type target struct {
	fps  int
	path string
	dec  *Decimator
	sink Sink
	err  error
}

// Simulate samples src into one clip per target rate, or per default rate
// when rates is empty. Rates at or above the source rate are ignored. A
// source that cannot be opened fails the whole call and leaves no outputs
// behind. A target whose encoder fails is removed and reported in the
// returned error while the other targets are kept, so a non-nil error with
// a non-empty slice means a partial result.
func (s *Simulator) Simulate(ctx context.Context, src types.Clip, rates []int) ([]types.Clip, error) {
	source, err := s.openSource(ctx, src.Path)
	if err != nil {
		return nil, &types.ClipError{Clip: src.Name(), Err: err}
	}
	defer source.Close()

	info := source.Info()
	f0 := float64(src.FPS)
	if f0 <= 0 {
		f0 = info.FPS
	}
	rates = Targets(f0, rates, s.opts.Count, s.opts.Divisor)
	if len(rates) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(s.opts.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIOUnavailable, err)
	}

	targets := make([]*target, 0, len(rates))
	abortAll := func() {
		for _, t := range targets {
			if t.sink != nil {
				t.sink.Abort()
				t.sink = nil
			}
		}
	}
	for _, f := range rates {
		t := &target{fps: f, path: OutputPath(s.opts.OutDir, src.Path, f), dec: NewDecimator(f0, f)}
		t.sink, err = s.createSink(ctx, t.path, f, info.Width, info.Height)
		if err != nil {
			t.err = err
			s.logger.Warn("cannot create downsampled clip", "clip", src.Name(), "fps", f, "error", err)
		}
		targets = append(targets, t)
	}

	written := make(map[int]int, len(targets))
	total := 0
	for {
		frame, err := source.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			abortAll()
			return nil, &types.ClipError{Clip: src.Name(), Err: fmt.Errorf("%w: %v", types.ErrIOUnavailable, err)}
		}
		if ctx.Err() != nil {
			abortAll()
			return nil, ctx.Err()
		}
		total++

		for _, t := range targets {
			if !t.dec.Keep() || t.sink == nil {
				continue
			}
			if err := t.sink.WriteFrame(frame); err != nil {
				t.sink.Abort()
				t.sink = nil
				t.err = err
				continue
			}
			written[t.fps]++
		}
	}

	if total == 0 {
		abortAll()
		return nil, &types.ClipError{Clip: src.Name(), Err: types.ErrClipUnreadable}
	}

	var clips []types.Clip
	var errs []error
	for _, t := range targets {
		if t.sink != nil {
			if err := t.sink.Close(); err != nil {
				_ = os.Remove(t.path)
				t.err = err
			}
		}
		if t.err != nil {
			errs = append(errs, fmt.Errorf("%d fps: %w", t.fps, t.err))
			continue
		}
		clips = append(clips, types.Clip{
			Key:        strings.TrimSuffix(filepath.Base(t.path), filepath.Ext(t.path)),
			Path:       t.path,
			FPS:        t.fps,
			FrameCount: written[t.fps],
			Width:      info.Width,
			Height:     info.Height,
		})
		s.logger.Info("downsampled clip written",
			"clip", src.Name(),
			"fps", t.fps,
			"frames", written[t.fps],
			"expected", ExpectedFrames(total, f0, t.fps),
			"path", t.path,
		)
	}

	if len(errs) > 0 {
		return clips, &types.ClipError{Clip: src.Name(), Err: errors.Join(errs...)}
	}
	return clips, nil
}
