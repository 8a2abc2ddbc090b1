//go:build !linux && !darwin && !windows

package hotkey

func NewGrabber() (KeyGrabber, error) { return nil, errUnsupported }
