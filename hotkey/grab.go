package hotkey

import (
	"fmt"
	"slices"
)

// OverlayKey is a key the overlay answers to while it is on screen.
type OverlayKey int

const (
	Tab OverlayKey = iota + 1
	ShiftTab
	Enter
	Esc
)

func (k OverlayKey) String() string {
	switch k {
	case Tab:
		return "tab"
	case ShiftTab:
		return "shift+tab"
	case Enter:
		return "enter"
	case Esc:
		return "esc"
	}
	return fmt.Sprintf("overlay_key(%d)", int(k))
}

// KeyGrabber captures overlay keys system-wide while they are armed, so
// they reach the overlay instead of the focused application. Keys is
// never closed.
type KeyGrabber interface {
	// Arm captures exactly keys from now on. Arm() releases everything.
	Arm(keys ...OverlayKey) error
	Keys() <-chan OverlayKey
	Close()
}

// evdev key codes from linux/input-event-codes.h
const (
	codeEsc        = 1
	codeTab        = 15
	codeEnter      = 28
	codeLeftCtrl   = 29
	codeLeftShift  = 42
	codeRightShift = 54
	codeLeftAlt    = 56
	codeKPEnter    = 96
	codeRightCtrl  = 97
	codeRightAlt   = 100
	codeLeftMeta   = 125
	codeRightMeta  = 126
)

const (
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

// grabFilter decides, for each key event read from a grabbed keyboard,
// whether it is an overlay key to swallow or input to pass on. It is not
// safe for concurrent use.
type grabFilter struct {
	armed     map[OverlayKey]bool
	mods      map[uint16]bool
	swallowed map[uint16]bool
	// held are passed-on codes pressed and not yet released.
	held map[uint16]bool
}

func newGrabFilter() *grabFilter {
	return &grabFilter{
		armed:     map[OverlayKey]bool{},
		mods:      map[uint16]bool{},
		swallowed: map[uint16]bool{},
		held:      map[uint16]bool{},
	}
}

func (f *grabFilter) arm(keys []OverlayKey) {
	clear(f.armed)
	for _, k := range keys {
		f.armed[k] = true
	}
}

// track follows the modifier keys. It also runs while nothing is grabbed
// so a Shift held before the grab still counts.
func (f *grabFilter) track(code uint16, value int32) {
	switch code {
	case codeLeftShift, codeRightShift, codeLeftCtrl, codeRightCtrl,
		codeLeftAlt, codeRightAlt, codeLeftMeta, codeRightMeta:
		f.mods[code] = value != keyRelease
	}
}

// key handles one key event from a grabbed device. It returns the overlay
// key to report, if any, and whether the event should be passed on.
func (f *grabFilter) key(code uint16, value int32) (OverlayKey, bool) {
	f.track(code, value)
	if f.swallowed[code] {
		if value == keyRelease {
			delete(f.swallowed, code)
		}
		return 0, false
	}
	if value == keyPress {
		if k := f.match(code); k != 0 {
			f.swallowed[code] = true
			return k, false
		}
	}
	switch value {
	case keyPress:
		f.held[code] = true
	case keyRelease:
		delete(f.held, code)
	}
	return 0, true
}

func (f *grabFilter) match(code uint16) OverlayKey {
	shift := f.mods[codeLeftShift] || f.mods[codeRightShift]
	for _, m := range []uint16{codeLeftCtrl, codeRightCtrl, codeLeftAlt, codeRightAlt, codeLeftMeta, codeRightMeta} {
		if f.mods[m] {
			return 0
		}
	}
	var k OverlayKey
	switch code {
	case codeTab:
		k = Tab
		if shift {
			k = ShiftTab
		}
	case codeEnter, codeKPEnter:
		k = Enter
	case codeEsc:
		k = Esc
	}
	if k == 0 || (shift && k != ShiftTab) || !f.armed[k] {
		return 0
	}
	return k
}

// release returns the passed-on codes still held, in order, and forgets
// them. They must be released on the output when the grab ends.
func (f *grabFilter) release() []uint16 {
	codes := make([]uint16, 0, len(f.held))
	for c := range f.held {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	clear(f.held)
	return codes
}
