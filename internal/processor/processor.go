package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

// VideoInfo describes the first video stream of a file
type VideoInfo struct {
	FPS        float64
	Width      int
	Height     int
	FrameCount int // 0 when the container does not report it
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
}

// Probe reads stream metadata with ffprobe
func Probe(path string) (VideoInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return VideoInfo{}, fmt.Errorf("%w: %v", types.ErrIOUnavailable, err)
	}
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("%w: probe %s: %v", types.ErrIOUnavailable, path, err)
	}
	var probe probeOutput
	if err := json.Unmarshal([]byte(out), &probe); err != nil {
		return VideoInfo{}, fmt.Errorf("%w: parse probe output: %v", types.ErrIOUnavailable, err)
	}
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		info := VideoInfo{Width: s.Width, Height: s.Height}
		info.FPS = parseRate(s.AvgFrameRate)
		if info.FPS == 0 {
			info.FPS = parseRate(s.RFrameRate)
		}
		info.FrameCount, _ = strconv.Atoi(s.NbFrames)
		return info, nil
	}
	return VideoInfo{}, fmt.Errorf("%w: no video stream in %s", types.ErrIOUnavailable, path)
}

// parseRate parses ffprobe rationals such as "30000/1001"
func parseRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Frame is one decoded rgb24 video frame. It implements image.Image.
type Frame struct {
	Index  int
	Width  int
	Height int
	Pix    []byte // packed RGB, 3 bytes per pixel
}

func (f *Frame) ColorModel() color.Model { return color.RGBAModel }

func (f *Frame) Bounds() image.Rectangle { return image.Rect(0, 0, f.Width, f.Height) }

func (f *Frame) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.RGBA{}
	}
	i := (y*f.Width + x) * 3
	return color.RGBA{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2], A: 255}
}

// FrameReader decodes a video file sequentially through an ffmpeg pipe
type FrameReader struct {
	info   VideoInfo
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	next   int
	done   bool

	closeOnce sync.Once
	closeErr  error
}

// OpenFrames starts decoding path. The reader must be closed by the caller.
func OpenFrames(ctx context.Context, path string) (*FrameReader, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w: %s has no frame size", types.ErrIOUnavailable, path)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", decodeArgs(path)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIOUnavailable, err)
	}
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", types.ErrIOUnavailable, err)
	}

	return &FrameReader{info: info, cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// decodeArgs emits every decoded frame exactly once, without the frame
// duplication or dropping of constant frame rate output
func decodeArgs(path string) []string {
	return ffmpeg.Input(path).
		Output("pipe:", ffmpeg.KwArgs{
			"format":   "rawvideo",
			"fps_mode": "passthrough",
			"vf":       ComposeTransforms(FormatTransform{PixFmt: "rgb24"}),
		}).
		GetArgs()
}

// Info returns the probed stream metadata
func (r *FrameReader) Info() VideoInfo {
	return r.info
}

// Next returns the next frame, or io.EOF once the stream is exhausted
func (r *FrameReader) Next() (*Frame, error) {
	if r.done {
		return nil, io.EOF
	}
	size := r.info.Width * r.info.Height * 3
	buf := make([]byte, size)
	if _, err := io.ReadFull(r.stdout, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			r.done = true
			if werr := r.Close(); werr != nil && r.next == 0 {
				return nil, werr
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame %d: %w", r.next, err)
	}
	f := &Frame{Index: r.next, Width: r.info.Width, Height: r.info.Height, Pix: buf}
	r.next++
	return f, nil
}

// Close stops the decoder and releases the pipe. It is safe to call twice.
func (r *FrameReader) Close() error {
	r.closeOnce.Do(func() {
		r.done = true
		r.stdout.Close()
		if err := r.cmd.Wait(); err != nil {
			r.closeErr = fmt.Errorf("ffmpeg decode: %v: %s", err, r.stderr.String())
		}
	})
	return r.closeErr
}

// ClipWriter encodes rgb24 frames into a video file at a fixed nominal rate
type ClipWriter struct {
	path   string
	width  int
	height int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
}

// NewClipWriter starts an encoder for path, overwriting any previous file
func NewClipWriter(ctx context.Context, path string, fps, width, height int) (*ClipWriter, error) {
	args := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgb24",
		"s":       fmt.Sprintf("%dx%d", width, height),
		"r":       fps,
	}).
		Output(path, ffmpeg.KwArgs{
			"c:v": "mpeg4",
			"q:v": 2,
			"vf":  ComposeTransforms(FormatTransform{PixFmt: "yuv420p"}),
		}).
		OverWriteOutput().
		GetArgs()

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg encoder: %w", err)
	}
	return &ClipWriter{path: path, width: width, height: height, cmd: cmd, stdin: stdin, stderr: stderr}, nil
}

// WriteFrame appends one frame to the output
func (w *ClipWriter) WriteFrame(f *Frame) error {
	if f.Width != w.width || f.Height != w.height {
		return fmt.Errorf("frame %d is %dx%d, writer expects %dx%d", f.Index, f.Width, f.Height, w.width, w.height)
	}
	if _, err := w.stdin.Write(f.Pix); err != nil {
		return fmt.Errorf("write frame %d to %s: %w: %s", f.Index, w.path, err, w.stderr.String())
	}
	return nil
}

// Close flushes the encoder and waits for it to finish
func (w *ClipWriter) Close() error {
	w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode %s: %v: %s", w.path, err, w.stderr.String())
	}
	return nil
}

// Abort kills the encoder and removes the partial output
func (w *ClipWriter) Abort() {
	w.stdin.Close()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	_ = w.cmd.Wait()
	_ = os.Remove(w.path)
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
