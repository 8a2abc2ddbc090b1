package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// Hotkey is one registered global key. Keydown and Keyup fire for the
// physical edges; platform key repeat may still show up as extra Keydown
// values and is filtered by Listener.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Trigger is the physical key that bounds a recording.
type Trigger int

const (
	CapsLock Trigger = iota
	RightAlt
	F1
)

var ErrUnknownTrigger = errors.New("unknown trigger key")

func (t Trigger) String() string {
	switch t {
	case CapsLock:
		return "caps_lock"
	case RightAlt:
		return "right_alt"
	case F1:
		return "f1"
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// Label is the human form shown in the overlay and doctor output.
func (t Trigger) Label() string {
	switch t {
	case CapsLock:
		return "Caps Lock"
	case RightAlt:
		return "Right Alt"
	case F1:
		return "F1"
	}
	return t.String()
}

var triggerNames = map[string]Trigger{
	"caps_lock": CapsLock,
	"capslock":  CapsLock,
	"right_alt": RightAlt,
	"rightalt":  RightAlt,
	"alt_r":     RightAlt,
	"altgr":     RightAlt,
	"f1":        F1,
}

// ParseTrigger accepts the canonical names and a few aliases, case
// insensitive, with spaces treated as underscores.
func ParseTrigger(s string) (Trigger, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	if t, ok := triggerNames[key]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w %q (want caps_lock, right_alt or f1)", ErrUnknownTrigger, s)
}
