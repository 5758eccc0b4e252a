package pose

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/melody-ding/go-fpscheck/internal/processor"
)

// fakeServer answers worker requests the way the Python side does: bright
// frames contain a pose, dark frames do not.
func fakeServer(t *testing.T, r io.Reader, w io.Writer, silent bool) {
	t.Helper()
	srv := &conn{r: r, w: w}
	for {
		var req request
		if err := srv.receive(&req); err != nil {
			return
		}
		if silent {
			continue
		}
		resp := response{Seq: req.Seq}
		switch req.Type {
		case "reset":
		case "frame":
			if len(req.Data) != req.Width*req.Height*3 {
				resp.Error = "bad frame size"
				break
			}
			if req.Data[0] > 128 {
				resp.Landmarks = make([]Landmark, NumLandmarks)
				for i := range resp.Landmarks {
					resp.Landmarks[i] = Landmark{X: float64(i) / 100, Y: 0.5, Visibility: 0.9}
				}
			}
		default:
			resp.Error = "unknown request " + req.Type
		}
		if err := srv.send(resp); err != nil {
			return
		}
	}
}

func newTestWorker(t *testing.T, silent bool) (*Worker, func()) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	go fakeServer(t, reqR, respW, silent)
	w := newWorker(respR, reqW, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return w, func() {
		respW.Close()
		reqR.Close()
	}
}

func solid(level byte) *processor.Frame {
	pix := make([]byte, 4*4*3)
	for i := range pix {
		pix[i] = level
	}
	return &processor.Frame{Width: 4, Height: 4, Pix: pix}
}

func TestWorkerDetect(t *testing.T) {
	w, cleanup := newTestWorker(t, false)
	defer cleanup()
	defer w.Close()
	ctx := context.Background()

	if err := w.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	lms, err := w.Detect(ctx, solid(200))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(lms) != NumLandmarks {
		t.Fatalf("Detect() returned %d landmarks, want %d", len(lms), NumLandmarks)
	}
	if lms[LeftWrist].X != 0.15 || lms[LeftWrist].Visibility != 0.9 {
		t.Errorf("landmark %d = %+v", LeftWrist, lms[LeftWrist])
	}

	lms, err = w.Detect(ctx, solid(10))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if lms != nil {
		t.Errorf("Detect() on empty frame = %v, want nil", lms)
	}
}

func TestWorkerDetectGenericImage(t *testing.T) {
	w, cleanup := newTestWorker(t, false)
	defer cleanup()
	defer w.Close()

	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := 0; i < 6; i++ {
		img.Set(i%3, i/3, color.RGBA{250, 250, 250, 255})
	}
	lms, err := w.Detect(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if len(lms) == 0 {
		t.Error("expected landmarks for bright RGBA frame")
	}
}

func TestWorkerContextCancel(t *testing.T) {
	w, cleanup := newTestWorker(t, true)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := w.Detect(ctx, solid(200)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Detect() error = %v, want deadline exceeded", err)
	}
	if _, err := w.Detect(context.Background(), solid(200)); err == nil {
		t.Error("Detect() after abandoned request should fail")
	}
}

func TestLogStderrLevels(t *testing.T) {
	var buf bytes.Buffer
	w := &Worker{logger: slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	w.wg.Add(1)
	w.logStderr(strings.NewReader("[ERROR] model missing\n[WARNING] slow frame\n[INFO] ready\n"))

	out := buf.String()
	for _, want := range []string{`"level":"ERROR"`, `"level":"WARN"`, `"level":"DEBUG"`} {
		if !strings.Contains(out, want) {
			t.Errorf("stderr forwarding missing %s in %s", want, out)
		}
	}
}
