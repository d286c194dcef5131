// Package capture owns the live camera side of a scan: acquiring a frame
// stream, ticking a scan loop over its latest frame and tearing it down.
package capture

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrAlreadyActive is wrapped by the conflict error StartCamera returns
	// when a stream is already held.
	ErrAlreadyActive = errors.New("camera already active")
	// ErrNotActive is returned by operations that need a running camera
	ErrNotActive = errors.New("camera not active")
	// ErrCameraBusy is returned by a Camera that only supports one stream
	ErrCameraBusy = errors.New("camera stream already acquired")
	// ErrNoStream is returned when frames are pushed with no stream open
	ErrNoStream = errors.New("no open camera stream")
	// ErrNoFrame is returned when no frame has arrived yet
	ErrNoFrame = errors.New("no frame available")
	// ErrClosed is returned by StartCamera once the scheduler is closed
	ErrClosed = errors.New("scheduler closed")
)

// Constraints are the requested capture settings
type Constraints struct {
	FacingMode string `json:"facing_mode"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// DefaultConstraints asks for the rear camera at 1280x720
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: "environment", Width: 1280, Height: 720}
}

// Frame is one decoded camera frame. Seq increases by one per pushed frame.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64
	CapturedAt time.Time
}

// Size returns the frame dimensions
func (f Frame) Size() image.Point {
	if f.Image == nil {
		return image.Point{}
	}
	return f.Image.Rect.Size()
}

// Stream is an acquired camera stream
type Stream interface {
	// LatestFrame returns the most recent frame, or false if none is ready
	LatestFrame() (Frame, bool)
	// Close stops every track of the stream. It is idempotent.
	Close() error
}

// Camera hands out frame streams
type Camera interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}
