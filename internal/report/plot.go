package report

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

// PlotMetric draws metric against frame rate, one line per subject, and
// marks the recommended rate. The image format follows the extension of
// path.
func PlotMetric(path, metric string, records []types.FrameMetricRecord, recommended int) error {
	bySubject := map[string]plotter.XYs{}
	var subjects []string
	var markSum float64
	markN := 0
	for _, r := range records {
		v, ok := r.Value(metric)
		if !ok {
			return fmt.Errorf("unknown metric %q", metric)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if _, seen := bySubject[r.Subject]; !seen {
			subjects = append(subjects, r.Subject)
		}
		bySubject[r.Subject] = append(bySubject[r.Subject], plotter.XY{X: float64(r.FPS), Y: v})
		if r.FPS == recommended {
			markSum += v
			markN++
		}
	}
	sort.Strings(subjects)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs FPS", metric)
	p.X.Label.Text = "fps"
	p.Y.Label.Text = metric
	p.Add(plotter.NewGrid())

	for i, subj := range subjects {
		pts := bySubject[subj]
		sort.Slice(pts, func(a, b int) bool { return pts[a].X < pts[b].X })
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("error plotting %s for %s: %w", metric, subj, err)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = draw.CircleGlyph{}
		p.Add(line, points)
		p.Legend.Add(subj, line, points)
	}

	if markN > 0 {
		mark, err := plotter.NewScatter(plotter.XYs{{X: float64(recommended), Y: markSum / float64(markN)}})
		if err != nil {
			return fmt.Errorf("error marking recommended rate: %w", err)
		}
		mark.GlyphStyle.Shape = draw.CrossGlyph{}
		mark.GlyphStyle.Radius = vg.Points(6)
		mark.GlyphStyle.Color = color.RGBA{R: 220, A: 255}
		p.Add(mark)
		p.Legend.Add(fmt.Sprintf("recommended %d fps", recommended), mark)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("error saving plot %s: %w", path, err)
	}
	return nil
}
