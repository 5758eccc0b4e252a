package types

import (
	"errors"
	"fmt"
)

var (
	// ErrIOUnavailable is returned when a source clip cannot be opened.
	ErrIOUnavailable = errors.New("clip unavailable")
	// ErrClipUnreadable is returned when a clip decodes to zero frames.
	ErrClipUnreadable = errors.New("clip unreadable")
	// ErrFPSTokenMissing is returned when a file name carries no frame rate.
	ErrFPSTokenMissing = errors.New("no fps token in name")
	// ErrInsufficientVariation is returned when a metric series is constant.
	ErrInsufficientVariation = errors.New("insufficient variation")
	// ErrInsufficientData is returned when a test has too few observations.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrMissingMetricData is returned when a candidate has no comparable value.
	ErrMissingMetricData = errors.New("missing metric data")
)

// ClipError ties a failure to the clip it happened on
type ClipError struct {
	Clip string
	Err  error
}

func (e *ClipError) Error() string {
	return fmt.Sprintf("clip %s: %v", e.Clip, e.Err)
}

func (e *ClipError) Unwrap() error {
	return e.Err
}
