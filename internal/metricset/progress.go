package metricset

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

const progressTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . "%.03f%%" "?"}} {{etime . "%s elapsed"}} {{rtime . "%s remain" "%s total" "???"}}`

// newProgressBar starts a clip counter on w, or returns nil when w is nil
func newProgressBar(w io.Writer, total int, prefix string) *pb.ProgressBar {
	if w == nil {
		return nil
	}
	bar := pb.ProgressBarTemplate(progressTemplate).New(total)
	bar.SetWriter(w)
	bar.Set("prefix", prefix)
	return bar.Start()
}

func increment(bar *pb.ProgressBar) {
	if bar != nil {
		bar.Increment()
	}
}

func finish(bar *pb.ProgressBar) {
	if bar != nil {
		bar.Finish()
	}
}
