package audio

import (
	"errors"
	"fmt"
)

// Misuse of Capturer. These are programming errors, never device trouble.
var (
	ErrAlreadyStarted = errors.New("audio: capture already started")
	ErrNotStarted     = errors.New("audio: capture not started")
)

var (
	ErrDeviceNotFound = errors.New("capture device not found")
	ErrNoAudio        = errors.New("no audio received from device")
)

// CaptureError is a device or stream failure. The Capturer stays usable
// after one; the next Start reopens the device.
type CaptureError struct {
	Op     string
	Device string
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("capture %s (%s): %v", e.Op, e.Device, e.Err)
	}
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
