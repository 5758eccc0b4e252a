// Package pose bridges to a pose-landmark detector.
package pose

import (
	"context"
	"image"
)

// Landmark is one detected body keypoint in normalized image coordinates
type Landmark struct {
	X          float64 `msgpack:"x"`
	Y          float64 `msgpack:"y"`
	Z          float64 `msgpack:"z"`
	Visibility float64 `msgpack:"visibility"`
}

// Estimator detects a single pose in a frame. A nil slice with a nil error
// means no person was found.
type Estimator interface {
	Detect(ctx context.Context, frame image.Image) ([]Landmark, error)
}

// Resetter is implemented by estimators that keep tracking state across
// frames and must be reset between clips
type Resetter interface {
	Reset(ctx context.Context) error
}

// MediaPipe pose landmark indices used by the default configuration
const (
	LeftShoulder = 11
	LeftWrist    = 15
	LeftHip      = 23
	NumLandmarks = 33
)
