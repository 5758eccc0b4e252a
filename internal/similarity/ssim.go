// Package similarity scores how alike two video frames are.
package similarity

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/melody-ding/go-fpscheck/internal/processor"
)

const (
	defaultWindow = 7
	dataRange     = 255.0
	k1            = 0.01
	k2            = 0.03
)

// SSIM computes the mean structural similarity of two frames on greyscale.
// Scores use a uniform square window with sample covariance over the windows
// that lie fully inside the frame.
type SSIM struct {
	// Resize, when non-zero, downscales both frames before scoring
	Resize processor.Dimensions
	// Window is the side of the square window; it must be odd and >= 3
	Window int
}

// NewSSIM returns a scorer with the standard 7x7 window
func NewSSIM(resize processor.Dimensions) *SSIM {
	return &SSIM{Resize: resize, Window: defaultWindow}
}

// Score returns the mean SSIM of a and b, in [-1,1] and 1 for identical frames
func (s *SSIM) Score(a, b image.Image) (float64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("frame sizes differ: %v vs %v", ab.Size(), bb.Size())
	}
	ga, w, h := s.gray(a)
	gb, _, _ := s.gray(b)

	win := s.Window
	if win <= 0 {
		win = defaultWindow
	}
	if m := min(w, h); m < win {
		win = m
		if win%2 == 0 {
			win--
		}
	}
	if win < 3 {
		return 0, fmt.Errorf("frame %dx%d too small for ssim", w, h)
	}
	return meanSSIM(ga, gb, w, h, win), nil
}

// gray converts img to luma values, downscaling first when Resize is set
func (s *SSIM) gray(img image.Image) ([]float64, int, int) {
	if !s.Resize.IsZero() {
		dst := image.NewGray(image.Rect(0, 0, s.Resize.Width, s.Resize.Height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), toGray(img), img.Bounds(), draw.Src, nil)
		img = dst
	}
	g := toGray(img)
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			out[y*w+x] = float64(v)
		}
	}
	return out, w, h
}

// toGray converts to 8-bit luma with BT.601 weights
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	g := image.NewGray(image.Rect(0, 0, w, h))
	switch src := img.(type) {
	case *processor.Frame:
		for i := 0; i < w*h; i++ {
			g.Pix[i] = luma(float64(src.Pix[i*3]), float64(src.Pix[i*3+1]), float64(src.Pix[i*3+2]))
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				o := src.PixOffset(b.Min.X+x, b.Min.Y+y)
				g.Pix[y*w+x] = luma(float64(src.Pix[o]), float64(src.Pix[o+1]), float64(src.Pix[o+2]))
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				g.Pix[y*w+x] = luma(float64(r>>8), float64(gg>>8), float64(bb>>8))
			}
		}
	}
	return g
}

func luma(r, g, b float64) uint8 {
	return uint8(math.Round(0.299*r + 0.587*g + 0.114*b))
}

// meanSSIM slides a win x win window over both images using running column
// sums, so memory stays proportional to the frame width.
func meanSSIM(a, b []float64, w, h, win int) float64 {
	np := float64(win * win)
	covNorm := np / (np - 1)
	c1 := (k1 * dataRange) * (k1 * dataRange)
	c2 := (k2 * dataRange) * (k2 * dataRange)

	colA := make([]float64, w)
	colB := make([]float64, w)
	colAA := make([]float64, w)
	colBB := make([]float64, w)
	colAB := make([]float64, w)
	addRow := func(r int, sign float64) {
		off := r * w
		for x := 0; x < w; x++ {
			va, vb := a[off+x], b[off+x]
			colA[x] += sign * va
			colB[x] += sign * vb
			colAA[x] += sign * va * va
			colBB[x] += sign * vb * vb
			colAB[x] += sign * va * vb
		}
	}
	for r := 0; r < win; r++ {
		addRow(r, 1)
	}

	var total float64
	var count int
	for top := 0; top+win <= h; top++ {
		if top > 0 {
			addRow(top-1, -1)
			addRow(top+win-1, 1)
		}
		var sa, sb, saa, sbb, sab float64
		for x := 0; x < win; x++ {
			sa += colA[x]
			sb += colB[x]
			saa += colAA[x]
			sbb += colBB[x]
			sab += colAB[x]
		}
		for left := 0; left+win <= w; left++ {
			if left > 0 {
				in, out := left+win-1, left-1
				sa += colA[in] - colA[out]
				sb += colB[in] - colB[out]
				saa += colAA[in] - colAA[out]
				sbb += colBB[in] - colBB[out]
				sab += colAB[in] - colAB[out]
			}
			ua, ub := sa/np, sb/np
			va := covNorm * (saa/np - ua*ua)
			vb := covNorm * (sbb/np - ub*ub)
			vab := covNorm * (sab/np - ua*ub)
			num := (2*ua*ub + c1) * (2*vab + c2)
			den := (ua*ua + ub*ub + c1) * (va + vb + c2)
			total += num / den
			count++
		}
	}
	return total / float64(count)
}
