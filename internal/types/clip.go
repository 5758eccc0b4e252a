package types

import (
	"path/filepath"
	"strings"
)

// Clip represents a video clip on disk with its nominal frame rate
type Clip struct {
	Key        string
	Path       string
	FPS        int
	FrameCount int
	Width      int
	Height     int
}

// NewClip builds a Clip for path, using fps when the name carries no rate token
func NewClip(path string, fps int) Clip {
	key := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Clip{Key: key, Path: path, FPS: ParseFPSOr(path, fps)}
}

// Name returns the base file name of the clip
func (c Clip) Name() string {
	return filepath.Base(c.Path)
}
