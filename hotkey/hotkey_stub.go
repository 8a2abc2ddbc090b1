//go:build !linux && !darwin && !windows

package hotkey

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("global hotkeys are not supported on " + runtime.GOOS)

type stubHotkey struct{}

func New(Trigger) Hotkey { return stubHotkey{} }

func (stubHotkey) Register() error          { return errUnsupported }
func (stubHotkey) Unregister()              {}
func (stubHotkey) Keydown() <-chan struct{} { return nil }
func (stubHotkey) Keyup() <-chan struct{}   { return nil }

func Diagnose(Trigger) (string, error) { return "", errUnsupported }
