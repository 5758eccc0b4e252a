package pose

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/melody-ding/go-fpscheck/internal/processor"
)

// ErrClosed is returned by requests to a worker that has shut down
var ErrClosed = errors.New("pose worker closed")

// WorkerConfig describes the pose worker subprocess
type WorkerConfig struct {
	Command         string
	Args            []string
	ModelComplexity int
	Logger          *slog.Logger
}

// Worker runs pose inference in a Python MediaPipe subprocess. Frames go to
// its stdin and landmarks come back on stdout, both as length-prefixed
// msgpack messages. Requests are serialized; use one Worker per goroutine.
type Worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	conn   *conn
	logger *slog.Logger

	mu     sync.Mutex
	seq    uint64
	closed bool
	wg     sync.WaitGroup
}

// StartWorker spawns the worker process
func StartWorker(ctx context.Context, cfg WorkerConfig) (*Worker, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("pose worker command is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	args := append([]string{}, cfg.Args...)
	args = append(args, "--model-complexity", strconv.Itoa(cfg.ModelComplexity))
	cmd := exec.CommandContext(ctx, cfg.Command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start pose worker: %w", err)
	}

	w := newWorker(stdout, stdin, logger)
	w.cmd = cmd
	w.wg.Add(1)
	go w.logStderr(stderr)

	logger.Info("pose worker started",
		"command", cfg.Command,
		"pid", cmd.Process.Pid,
		"model_complexity", cfg.ModelComplexity,
	)
	return w, nil
}

func newWorker(r io.Reader, w io.WriteCloser, logger *slog.Logger) *Worker {
	return &Worker{
		stdin:  w,
		conn:   &conn{r: r, w: w},
		logger: logger,
	}
}

// Detect sends frame to the worker and waits for its landmarks
func (w *Worker) Detect(ctx context.Context, frame image.Image) ([]Landmark, error) {
	data, width, height := rgb24(frame)
	resp, err := w.roundTrip(ctx, request{
		Type:        "frame",
		Width:       width,
		Height:      height,
		PixelFormat: "rgb24",
		Data:        data,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Landmarks) == 0 {
		return nil, nil
	}
	return resp.Landmarks, nil
}

// Reset clears the worker's tracking state before a new clip
func (w *Worker) Reset(ctx context.Context) error {
	_, err := w.roundTrip(ctx, request{Type: "reset"})
	return err
}

func (w *Worker) roundTrip(ctx context.Context, req request) (response, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return response{}, ErrClosed
	}
	w.seq++
	req.Seq = w.seq

	type result struct {
		resp response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		if r.err = w.conn.send(req); r.err == nil {
			r.err = w.conn.receive(&r.resp)
		}
		done <- r
	}()

	select {
	case r := <-done:
		// A broken pipe or an out-of-order answer leaves the stream unusable.
		if r.err != nil {
			w.shutdown(true)
			return response{}, r.err
		}
		if r.resp.Seq != req.Seq {
			w.shutdown(true)
			return response{}, fmt.Errorf("pose worker answered seq %d, want %d", r.resp.Seq, req.Seq)
		}
		if r.resp.Error != "" {
			return response{}, fmt.Errorf("pose worker: %s", r.resp.Error)
		}
		return r.resp, nil
	case <-ctx.Done():
		// The stream is out of sync once a request is abandoned.
		w.shutdown(true)
		return response{}, ctx.Err()
	}
}

// Alive reports whether the worker still accepts requests. A worker is shut
// down by Close, when a request's context ends mid-flight, or when the
// stream to the process breaks.
func (w *Worker) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

// Close stops the worker and waits for it to exit
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shutdown(false)
}

func (w *Worker) shutdown(kill bool) error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.stdin.Close()
	var err error
	if w.cmd != nil {
		if kill && w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
		if err = w.cmd.Wait(); err != nil {
			w.logger.Debug("pose worker exited", "error", err)
		}
	}
	w.wg.Wait()
	return err
}

// logStderr forwards worker log lines to slog by their level prefix
func (w *Worker) logStderr(r io.Reader) {
	defer w.wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			w.logger.Error("pose worker", "log", line)
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			w.logger.Warn("pose worker", "log", line)
		default:
			w.logger.Debug("pose worker", "log", line)
		}
	}
}

// rgb24 returns packed RGB bytes for img
func rgb24(img image.Image) ([]byte, int, int) {
	if f, ok := img.(*processor.Frame); ok {
		return f.Pix, f.Width, f.Height
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, w*h*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(bb>>8))
		}
	}
	return out, w, h
}
