package capture

import (
	"context"
	"errors"
	"time"
)

// Chunk is one encoded media segment emitted during capture.
type Chunk struct {
	Data []byte
	At   time.Time
}

// Constraints describe the requested capture configuration. Width and height
// are ideals, not requirements; the provider may deliver less.
type Constraints struct {
	Video              bool
	Audio              bool
	IdealWidth         int
	IdealHeight        int
	FacingMode         string
	VideoBitsPerSecond int
}

// DefaultConstraints is the standard interview recording setup: 720p from the
// front camera with audio.
func DefaultConstraints() Constraints {
	return Constraints{
		Video:              true,
		Audio:              true,
		IdealWidth:         1280,
		IdealHeight:        720,
		FacingMode:         "user",
		VideoBitsPerSecond: 2_500_000,
	}
}

// MediaStream is a live audio/video stream acquired from a DeviceProvider.
type MediaStream interface {
	// StartCapture begins chunked encoding, emitting a chunk roughly every
	// timeslice. The channel closes when capture stops; Err reports whether
	// the close was an encoder failure.
	StartCapture(ctx context.Context, mimeType string, timeslice time.Duration) (<-chan Chunk, error)
	// StopCapture asks the encoder to finish. Remaining chunks are still
	// delivered before the channel closes.
	StopCapture()
	// Err returns the capture error after the chunk channel closes, nil on a
	// clean stop.
	Err() error
	// Close releases all underlying tracks.
	Close()
}

// DeviceProvider abstracts device acquisition so the recorder can run against
// real hardware or a fake in tests.
type DeviceProvider interface {
	GetUserMedia(ctx context.Context, constraints Constraints) (MediaStream, error)
}

// Acquisition failure classes.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoDevice         = errors.New("no capture device")
	ErrDeviceBusy       = errors.New("device busy")
	ErrOverconstrained  = errors.New("constraints not satisfiable")
)

// Fixed user-facing failure texts.
const (
	MsgPermissionDenied = "Camera and microphone access was denied. Please allow access and try again."
	MsgNoDevice         = "No camera or microphone found. Please connect a device and try again."
	MsgDeviceBusy       = "Your camera or microphone is in use by another application."
	MsgOverconstrained  = "Your camera does not support the required settings."
	MsgOther            = "Could not access your camera or microphone."
)

// FailureMessage maps an acquisition error to its user-facing text.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return MsgPermissionDenied
	case errors.Is(err, ErrNoDevice):
		return MsgNoDevice
	case errors.Is(err, ErrDeviceBusy):
		return MsgDeviceBusy
	case errors.Is(err, ErrOverconstrained):
		return MsgOverconstrained
	default:
		return MsgOther
	}
}
