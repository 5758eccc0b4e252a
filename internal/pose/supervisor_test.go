package pose

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSupervisorRestartsWorker(t *testing.T) {
	var cleanups []func()
	defer func() {
		for _, c := range cleanups {
			c()
		}
	}()

	starts := 0
	s := &Supervisor{
		ctx:    context.Background(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		start: func(ctx context.Context) (*Worker, error) {
			starts++
			// the first worker never answers, the second behaves
			w, cleanup := newTestWorker(t, starts == 1)
			cleanups = append(cleanups, cleanup)
			return w, nil
		},
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Reset(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Reset() on a hung worker = %v, want DeadlineExceeded", err)
	}

	landmarks, err := s.Detect(context.Background(), solid(200))
	if err != nil {
		t.Fatalf("Detect() after restart error = %v", err)
	}
	if len(landmarks) != NumLandmarks {
		t.Errorf("got %d landmarks, want %d", len(landmarks), NumLandmarks)
	}
	if starts != 2 {
		t.Errorf("worker started %d times, want 2", starts)
	}
}

// newCrashedWorker returns a worker whose process has already exited: every
// request is swallowed and the response stream is at EOF.
func newCrashedWorker() *Worker {
	reqR, reqW := io.Pipe()
	go io.Copy(io.Discard, reqR)
	return newWorker(strings.NewReader(""), reqW, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSupervisorRestartsCrashedWorker(t *testing.T) {
	var cleanups []func()
	defer func() {
		for _, c := range cleanups {
			c()
		}
	}()

	starts := 0
	s := &Supervisor{
		ctx:    context.Background(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		start: func(ctx context.Context) (*Worker, error) {
			starts++
			if starts == 1 {
				return newCrashedWorker(), nil
			}
			w, cleanup := newTestWorker(t, false)
			cleanups = append(cleanups, cleanup)
			return w, nil
		},
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Detect(ctx, solid(200)); err == nil {
		t.Fatal("Detect() on a crashed worker succeeded")
	}
	for i := 0; i < 3; i++ {
		landmarks, err := s.Detect(ctx, solid(200))
		if err != nil {
			t.Fatalf("Detect() #%d after crash error = %v", i, err)
		}
		if len(landmarks) != NumLandmarks {
			t.Errorf("got %d landmarks, want %d", len(landmarks), NumLandmarks)
		}
	}
	if starts != 2 {
		t.Errorf("worker started %d times, want 2", starts)
	}
}

func TestWorkerShutsDownOnBrokenStream(t *testing.T) {
	w := newCrashedWorker()
	if err := w.Reset(context.Background()); err == nil {
		t.Fatal("Reset() on a crashed worker succeeded")
	}
	if w.Alive() {
		t.Error("worker still alive after its stream broke")
	}
	if err := w.Reset(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("second Reset() = %v, want ErrClosed", err)
	}
}

func TestWorkerSurvivesRequestError(t *testing.T) {
	w, cleanup := newTestWorker(t, false)
	defer cleanup()
	defer w.Close()

	if _, err := w.roundTrip(context.Background(), request{Type: "bogus"}); err == nil {
		t.Fatal("roundTrip() accepted an unknown request type")
	}
	if !w.Alive() {
		t.Fatal("worker shut down after a request-level error")
	}
	if err := w.Reset(context.Background()); err != nil {
		t.Errorf("Reset() after a request-level error = %v", err)
	}
}

func TestSupervisorStartFailure(t *testing.T) {
	boom := errors.New("no python")
	s := &Supervisor{
		ctx:    context.Background(),
		logger: slog.Default(),
		start: func(ctx context.Context) (*Worker, error) {
			return nil, boom
		},
	}
	if _, err := s.Detect(context.Background(), solid(200)); !errors.Is(err, boom) {
		t.Errorf("Detect() error = %v, want start failure", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() without a worker = %v", err)
	}
}
