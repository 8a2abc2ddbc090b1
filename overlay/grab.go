package overlay

import (
	"context"
	"slices"

	"dictate/hotkey"
	"dictate/log"
	"dictate/session"
)

// accepts reports whether k means something in v. Mode keys only apply
// while the mode bar is up; Esc works for any live session.
func accepts(v session.ViewState, k session.Key) bool {
	switch k {
	case session.KeyEsc:
		return !v.Phase.Resting()
	case session.KeyTab, session.KeyShiftTab:
		return v.ModeBarVisible()
	case session.KeyEnter:
		return v.Phase == session.Interactive
	}
	return false
}

var grabKeys = []struct {
	overlay hotkey.OverlayKey
	key     session.Key
}{
	{hotkey.Tab, session.KeyTab},
	{hotkey.ShiftTab, session.KeyShiftTab},
	{hotkey.Enter, session.KeyEnter},
	{hotkey.Esc, session.KeyEsc},
}

// armed lists the overlay keys to capture for v.
func armed(v session.ViewState) []hotkey.OverlayKey {
	var out []hotkey.OverlayKey
	for _, g := range grabKeys {
		if accepts(v, g.key) {
			out = append(out, g.overlay)
		}
	}
	return out
}

func sessionKey(k hotkey.OverlayKey) (session.Key, bool) {
	for _, g := range grabKeys {
		if g.overlay == k {
			return g.key, true
		}
	}
	return 0, false
}

// Grab captures the overlay keys system-wide while they apply, so Tab,
// Enter and Esc work without focusing the overlay.
type Grab struct {
	g    hotkey.KeyGrabber
	keys Keys
	last []hotkey.OverlayKey
}

func NewGrab(g hotkey.KeyGrabber, keys Keys) *Grab {
	return &Grab{g: g, keys: keys}
}

func (p *Grab) OnStateChange(v session.ViewState) {
	want := armed(v)
	if slices.Equal(want, p.last) {
		return
	}
	p.last = want
	if err := p.g.Arm(want...); err != nil {
		log.Warnf("overlay: arming keys %v: %v", want, err)
	}
}

// Run forwards captured keys until ctx ends.
func (p *Grab) Run(ctx context.Context) {
	for {
		select {
		case k := <-p.g.Keys():
			if sk, ok := sessionKey(k); ok {
				p.keys.Key(sk)
			}
		case <-ctx.Done():
			return
		}
	}
}
