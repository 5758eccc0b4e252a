// Package metricset builds the metric table of one subject: the baseline
// clip and every derived clip, each with its deltas against the baseline.
package metricset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/melody-ding/go-fpscheck/internal/extractor"
	"github.com/melody-ding/go-fpscheck/internal/types"
)

// Analyzer computes the metrics of one clip. Implementations need not be
// safe for concurrent use.
type Analyzer interface {
	Extract(ctx context.Context, clip types.Clip) (extractor.Analysis, error)
}

// Entry pairs a clip with its analysis
type Entry struct {
	Clip     types.Clip
	Analysis extractor.Analysis
}

// Table is the metric table of one subject, baseline first
type Table struct {
	Subject string
	Entries []Entry
}

// Baseline returns the baseline entry
func (t *Table) Baseline() Entry {
	return t.Entries[0]
}

// Records returns the metric records in table order
func (t *Table) Records() []types.FrameMetricRecord {
	out := make([]types.FrameMetricRecord, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = e.Analysis.Record
	}
	return out
}

// ClipFailure records a clip that was skipped
type ClipFailure struct {
	Subject string
	Clip    string
	FPS     int
	Err     error
}

func (f ClipFailure) Error() string {
	return fmt.Sprintf("%s/%s: %v", f.Subject, f.Clip, f.Err)
}

func (f ClipFailure) Unwrap() error {
	return f.Err
}

// Options configures a Builder
type Options struct {
	ClipTimeout time.Duration // zero disables the per-clip deadline
	Progress    io.Writer     // nil disables the progress bar
}

// Builder runs analyzers over a clip set. Derived clips are spread over
// the analyzers, one goroutine each.
type Builder struct {
	analyzers []Analyzer
	opts      Options
	logger    *slog.Logger
}

// NewBuilder returns a Builder over analyzers; at least one is required
func NewBuilder(analyzers []Analyzer, opts Options, logger *slog.Logger) (*Builder, error) {
	if len(analyzers) == 0 {
		return nil, errors.New("metricset: no analyzers")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{analyzers: analyzers, opts: opts, logger: logger}, nil
}

func (b *Builder) extract(ctx context.Context, a Analyzer, clip types.Clip) (extractor.Analysis, error) {
	if b.opts.ClipTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.ClipTimeout)
		defer cancel()
	}
	return a.Extract(ctx, clip)
}

// Build analyses baseline to completion, then every derived clip, and
// attaches deltas to the derived records. A baseline failure aborts the
// subject; derived failures are returned as ClipFailures and left out of
// the table.
func (b *Builder) Build(ctx context.Context, subject string, baseline types.Clip, derived []types.Clip) (*Table, []ClipFailure, error) {
	bar := newProgressBar(b.opts.Progress, len(derived)+1, subject)
	defer finish(bar)

	base, err := b.extract(ctx, b.analyzers[0], baseline)
	increment(bar)
	if err != nil {
		return nil, nil, fmt.Errorf("baseline %s: %w", baseline.Name(), err)
	}
	base.Record.Subject = subject
	base.Record.Baseline = true

	results := make([]*extractor.Analysis, len(derived))
	errs := make([]error, len(derived))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for _, a := range b.analyzers {
		wg.Add(1)
		go func(a Analyzer) {
			defer wg.Done()
			for i := range jobs {
				res, err := b.extract(ctx, a, derived[i])
				if err != nil {
					errs[i] = err
				} else {
					results[i] = &res
				}
				increment(bar)
			}
		}(a)
	}
	for i := range derived {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	table := &Table{Subject: subject, Entries: []Entry{{Clip: baseline, Analysis: base}}}
	var failures []ClipFailure
	for i, clip := range derived {
		if errs[i] != nil {
			failures = append(failures, ClipFailure{Subject: subject, Clip: clip.Name(), FPS: clip.FPS, Err: errs[i]})
			b.logger.Warn("clip skipped",
				"subject", subject,
				"clip", clip.Name(),
				"fps", clip.FPS,
				"error", errs[i],
			)
			continue
		}
		res := *results[i]
		res.Record.Subject = subject
		res.Record.Delta = res.Record.DeltaAgainst(base.Record)
		table.Entries = append(table.Entries, Entry{Clip: clip, Analysis: res})
	}

	b.logger.Info("metric table built",
		"subject", subject,
		"clips", len(table.Entries),
		"skipped", len(failures),
	)
	return table, failures, nil
}
