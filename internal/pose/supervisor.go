package pose

import (
	"context"
	"image"
	"log/slog"
)

// Supervisor is an Estimator backed by a worker process that is started on
// first use and restarted whenever the previous one has shut down, for
// example after a clip deadline killed it mid-request.
type Supervisor struct {
	ctx    context.Context
	start  func(ctx context.Context) (*Worker, error)
	worker *Worker
	logger *slog.Logger
}

// NewSupervisor returns a Supervisor whose workers live as long as ctx
func NewSupervisor(ctx context.Context, cfg WorkerConfig) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		ctx:    ctx,
		logger: logger,
		start: func(ctx context.Context) (*Worker, error) {
			return StartWorker(ctx, cfg)
		},
	}
}

func (s *Supervisor) live() (*Worker, error) {
	if s.worker != nil {
		if s.worker.Alive() {
			return s.worker, nil
		}
		_ = s.worker.Close()
		s.worker = nil
		s.logger.Warn("restarting pose worker")
	}
	w, err := s.start(s.ctx)
	if err != nil {
		return nil, err
	}
	s.worker = w
	return w, nil
}

// Detect implements Estimator
func (s *Supervisor) Detect(ctx context.Context, frame image.Image) ([]Landmark, error) {
	w, err := s.live()
	if err != nil {
		return nil, err
	}
	return w.Detect(ctx, frame)
}

// Reset implements Resetter
func (s *Supervisor) Reset(ctx context.Context) error {
	w, err := s.live()
	if err != nil {
		return err
	}
	return w.Reset(ctx)
}

// Close stops the current worker, if any
func (s *Supervisor) Close() error {
	if s.worker == nil {
		return nil
	}
	err := s.worker.Close()
	s.worker = nil
	return err
}
