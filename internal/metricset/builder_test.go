package metricset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/melody-ding/go-fpscheck/internal/extractor"
	"github.com/melody-ding/go-fpscheck/internal/types"
)

type fakeAnalyzer struct {
	mu     *sync.Mutex
	calls  *[]string
	fail   map[string]error
	block  bool
	record func(clip types.Clip) types.FrameMetricRecord
}

func (f fakeAnalyzer) Extract(ctx context.Context, clip types.Clip) (extractor.Analysis, error) {
	f.mu.Lock()
	*f.calls = append(*f.calls, clip.Name())
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return extractor.Analysis{}, &types.ClipError{Clip: clip.Name(), Err: ctx.Err()}
	}
	if err, ok := f.fail[clip.Name()]; ok {
		return extractor.Analysis{}, &types.ClipError{Clip: clip.Name(), Err: err}
	}
	return extractor.Analysis{Record: f.record(clip)}, nil
}

func linearRecord(clip types.Clip) types.FrameMetricRecord {
	return types.FrameMetricRecord{
		Clip:      clip.Name(),
		FPS:       clip.FPS,
		Coverage:  float64(clip.FPS) / 100,
		Jitter:    1 / float64(clip.FPS),
		Stability: 0.01,
		DupPct:    0.1,
	}
}

func newFakes(n int, fail map[string]error) ([]Analyzer, *[]string) {
	mu := &sync.Mutex{}
	calls := &[]string{}
	out := make([]Analyzer, n)
	for i := range out {
		out[i] = fakeAnalyzer{mu: mu, calls: calls, fail: fail, record: linearRecord}
	}
	return out, calls
}

func clips(rates ...int) []types.Clip {
	out := make([]types.Clip, len(rates))
	for i, fps := range rates {
		out[i] = types.NewClip(fmt.Sprintf("/tmp/walk_%dfps.mp4", fps), 0)
	}
	return out
}

func TestBuild(t *testing.T) {
	analyzers, calls := newFakes(1, nil)
	b, err := NewBuilder(analyzers, Options{Progress: io.Discard}, nil)
	if err != nil {
		t.Fatal(err)
	}
	all := clips(30, 25, 20)
	table, failures, err := b.Build(context.Background(), "S0", all[0], all[1:])
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(failures) != 0 {
		t.Errorf("failures = %v", failures)
	}
	if (*calls)[0] != "walk_30fps.mp4" {
		t.Errorf("first analysed clip = %s, want the baseline", (*calls)[0])
	}

	recs := table.Records()
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if !recs[0].Baseline || recs[0].Delta != nil {
		t.Errorf("baseline record = %+v", recs[0])
	}
	for i, want := range []int{30, 25, 20} {
		if recs[i].FPS != want || recs[i].Subject != "S0" {
			t.Errorf("record %d = %+v, want %d fps for S0", i, recs[i], want)
		}
	}
	if d := recs[2].Delta; d == nil || math.Abs(d.Coverage+0.1) > 1e-12 || d.Stability != 0 {
		t.Errorf("20 fps delta = %+v", d)
	}
	if table.Baseline().Clip.FPS != 30 {
		t.Errorf("Baseline() = %+v", table.Baseline())
	}
}

func TestBuildSkipsFailedClip(t *testing.T) {
	analyzers, _ := newFakes(2, map[string]error{"walk_20fps.mp4": types.ErrClipUnreadable})
	b, _ := NewBuilder(analyzers, Options{}, nil)
	all := clips(30, 25, 20, 15)
	table, failures, err := b.Build(context.Background(), "S0", all[0], all[1:])
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(failures) != 1 || failures[0].FPS != 20 {
		t.Fatalf("failures = %v", failures)
	}
	if !errors.Is(failures[0], types.ErrClipUnreadable) {
		t.Errorf("failure %v should unwrap to ErrClipUnreadable", failures[0])
	}
	recs := table.Records()
	if len(recs) != 3 || recs[1].FPS != 25 || recs[2].FPS != 15 {
		t.Errorf("records = %+v", recs)
	}
}

func TestBuildBaselineFailure(t *testing.T) {
	analyzers, calls := newFakes(1, map[string]error{"walk_30fps.mp4": types.ErrIOUnavailable})
	b, _ := NewBuilder(analyzers, Options{}, nil)
	all := clips(30, 25)
	table, _, err := b.Build(context.Background(), "S0", all[0], all[1:])
	if !errors.Is(err, types.ErrIOUnavailable) || table != nil {
		t.Errorf("Build() = %v, %v, want ErrIOUnavailable", table, err)
	}
	if len(*calls) != 1 {
		t.Errorf("derived clips analysed after baseline failure: %v", *calls)
	}
}

func TestBuildParallelKeepsOrder(t *testing.T) {
	analyzers, calls := newFakes(3, nil)
	b, _ := NewBuilder(analyzers, Options{}, nil)
	rates := []int{60, 55, 50, 45, 40, 35, 30, 25, 20, 15, 10}
	all := clips(rates...)
	table, _, err := b.Build(context.Background(), "S1", all[0], all[1:])
	if err != nil {
		t.Fatal(err)
	}
	if len(*calls) != len(rates) {
		t.Errorf("analysed %d clips, want %d", len(*calls), len(rates))
	}
	for i, r := range table.Records() {
		if r.FPS != rates[i] {
			t.Fatalf("record %d fps = %d, want %d", i, r.FPS, rates[i])
		}
	}
}

func TestBuildClipTimeout(t *testing.T) {
	mu := &sync.Mutex{}
	calls := &[]string{}
	good := fakeAnalyzer{mu: mu, calls: calls, record: linearRecord}
	hung := fakeAnalyzer{mu: mu, calls: calls, block: true}
	// the baseline completes, then the derived clip hangs past its deadline
	b, _ := NewBuilder([]Analyzer{&switchAnalyzer{first: good, rest: hung}}, Options{ClipTimeout: 20 * time.Millisecond}, nil)
	all := clips(30, 15)
	_, failures, err := b.Build(context.Background(), "S0", all[0], all[1:])
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 1 || !errors.Is(failures[0], context.DeadlineExceeded) {
		t.Errorf("failures = %v, want a deadline failure", failures)
	}
}

// switchAnalyzer serves the first call from first and the rest from rest
type switchAnalyzer struct {
	first, rest Analyzer
	used        bool
}

func (s *switchAnalyzer) Extract(ctx context.Context, clip types.Clip) (extractor.Analysis, error) {
	if !s.used {
		s.used = true
		return s.first.Extract(ctx, clip)
	}
	return s.rest.Extract(ctx, clip)
}

func TestNewBuilderNeedsAnalyzer(t *testing.T) {
	if _, err := NewBuilder(nil, Options{}, nil); err == nil {
		t.Error("NewBuilder(nil) should fail")
	}
}
