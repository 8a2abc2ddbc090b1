package hotkey

import (
	"slices"
	"testing"
)

type keyEvent struct {
	code  uint16
	value int32
}

func press(code uint16) keyEvent   { return keyEvent{code, keyPress} }
func release(code uint16) keyEvent { return keyEvent{code, keyRelease} }

func TestGrabFilter(t *testing.T) {
	all := []OverlayKey{Tab, ShiftTab, Enter, Esc}
	const codeA = 30
	tests := []struct {
		name       string
		armed      []OverlayKey
		before     []keyEvent // seen while nothing was grabbed
		events     []keyEvent
		wantKeys   []OverlayKey
		wantPassed []keyEvent
	}{
		{
			name:     "tab swallowed with its release",
			armed:    all,
			events:   []keyEvent{press(codeTab), {codeTab, keyRepeat}, release(codeTab)},
			wantKeys: []OverlayKey{Tab},
		},
		{
			name:       "shift tab",
			armed:      all,
			events:     []keyEvent{press(codeLeftShift), press(codeTab), release(codeTab), release(codeLeftShift)},
			wantKeys:   []OverlayKey{ShiftTab},
			wantPassed: []keyEvent{press(codeLeftShift), release(codeLeftShift)},
		},
		{
			name:     "shift held before the grab",
			armed:    all,
			before:   []keyEvent{press(codeRightShift)},
			events:   []keyEvent{press(codeTab)},
			wantKeys: []OverlayKey{ShiftTab},
		},
		{
			name:       "alt tab passes through",
			armed:      all,
			events:     []keyEvent{press(codeLeftAlt), press(codeTab), release(codeTab)},
			wantPassed: []keyEvent{press(codeLeftAlt), press(codeTab), release(codeTab)},
		},
		{
			name:       "shift enter passes through",
			armed:      all,
			events:     []keyEvent{press(codeLeftShift), press(codeEnter)},
			wantPassed: []keyEvent{press(codeLeftShift), press(codeEnter)},
		},
		{
			name:     "keypad enter",
			armed:    all,
			events:   []keyEvent{press(codeKPEnter), release(codeKPEnter)},
			wantKeys: []OverlayKey{Enter},
		},
		{
			name:       "unarmed key passes through",
			armed:      []OverlayKey{Esc},
			events:     []keyEvent{press(codeTab), release(codeTab), press(codeEsc)},
			wantKeys:   []OverlayKey{Esc},
			wantPassed: []keyEvent{press(codeTab), release(codeTab)},
		},
		{
			name:       "typing passes through",
			armed:      all,
			events:     []keyEvent{press(codeA), release(codeA)},
			wantPassed: []keyEvent{press(codeA), release(codeA)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGrabFilter()
			f.arm(tt.armed)
			for _, e := range tt.before {
				f.track(e.code, e.value)
			}
			var keys []OverlayKey
			var passed []keyEvent
			for _, e := range tt.events {
				k, pass := f.key(e.code, e.value)
				if k != 0 {
					keys = append(keys, k)
				}
				if pass {
					passed = append(passed, e)
				}
			}
			if !slices.Equal(keys, tt.wantKeys) {
				t.Errorf("keys = %v, want %v", keys, tt.wantKeys)
			}
			if !slices.Equal(passed, tt.wantPassed) {
				t.Errorf("passed = %v, want %v", passed, tt.wantPassed)
			}
		})
	}
}

func TestGrabFilterReleasesHeldKeys(t *testing.T) {
	f := newGrabFilter()
	f.arm([]OverlayKey{Tab})
	f.key(30, keyPress)
	f.key(31, keyPress)
	f.key(31, keyRelease)
	f.key(codeTab, keyPress) // swallowed, never held
	f.key(codeLeftShift, keyPress)

	if got, want := f.release(), []uint16{30, codeLeftShift}; !slices.Equal(got, want) {
		t.Errorf("release = %v, want %v", got, want)
	}
	if got := f.release(); len(got) != 0 {
		t.Errorf("second release = %v", got)
	}
}

func TestFakeGrabberOnlyReportsArmed(t *testing.T) {
	g := NewFakeGrabber()
	if g.Press(Tab) {
		t.Error("tab reported before arming")
	}
	g.Arm(Tab, Esc)
	if !g.Press(Tab) {
		t.Error("armed tab not reported")
	}
	if got := <-g.Keys(); got != Tab {
		t.Errorf("key = %v", got)
	}
	g.Arm()
	if g.Press(Esc) || len(g.Armed()) != 0 {
		t.Errorf("armed after disarm: %v", g.Armed())
	}
}
