package processor

import (
	"fmt"
	"strconv"
	"strings"
)

// Transform represents a video transformation that can be applied using ffmpeg
type Transform interface {
	// FFmpegArgs returns the ffmpeg filter arguments for this transformation
	FFmpegArgs() []string
}

// FormatTransform converts frames to the given pixel format
type FormatTransform struct {
	PixFmt string
}

func (t FormatTransform) FFmpegArgs() []string {
	return []string{fmt.Sprintf("format=%s", t.PixFmt)}
}

// ComposeTransforms combines multiple transformations into one filter graph
func ComposeTransforms(transforms ...Transform) string {
	var args []string
	for _, t := range transforms {
		args = append(args, t.FFmpegArgs()...)
	}
	return strings.Join(args, ",")
}

// Dimensions is a frame size in pixels
type Dimensions struct {
	Width  int
	Height int
}

// IsZero reports whether no size was requested
func (d Dimensions) IsZero() bool {
	return d.Width == 0 && d.Height == 0
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// ParseDimensions parses a size string such as "256x256"
func ParseDimensions(size string) (Dimensions, error) {
	parts := strings.Split(size, "x")
	if len(parts) != 2 {
		return Dimensions{}, fmt.Errorf("invalid size format: %s", size)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil || width < 0 {
		return Dimensions{}, fmt.Errorf("invalid width: %s", parts[0])
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil || height < 0 {
		return Dimensions{}, fmt.Errorf("invalid height: %s", parts[1])
	}
	d := Dimensions{Width: width, Height: height}
	if (d.Width == 0) != (d.Height == 0) {
		return Dimensions{}, fmt.Errorf("invalid size %s: both sides must be zero or positive", size)
	}
	return d, nil
}
