// Package caret snapshots the OS focus target: which window has input
// focus and, where the platform exposes it, where its text caret is.
package caret

import (
	"context"
	"errors"
	"time"
)

// ErrNoTarget means no window with a locatable caret has focus. Injection
// still works in that case by typing at whatever has focus.
var ErrNoTarget = errors.New("no locatable text target")

type Rect struct {
	X, Y, W, H int
}

func (r Rect) Empty() bool { return r.W <= 0 && r.H <= 0 }

func (r Rect) Center() (int, int) { return r.X + r.W/2, r.Y + r.H/2 }

// Anchor is a point-in-time view of the focus target.
type Anchor struct {
	// Window identifies the focused top-level window. Empty when unknown.
	Window string
	Title  string
	// Bounds of the focused window in screen coordinates.
	Bounds Rect
	// Caret is set when HasCaret is true.
	Caret    Rect
	HasCaret bool
	// PasteOnly marks targets known to ignore synthetic keystrokes.
	PasteOnly bool
	At        time.Time
}

// Locatable reports whether the anchor names a concrete window.
func (a Anchor) Locatable() bool { return a.Window != "" }

// SameTarget reports whether b still points at a's window. Two
// unlocatable anchors are not comparable and count as the same.
func (a Anchor) SameTarget(b Anchor) bool {
	if !a.Locatable() || !b.Locatable() {
		return true
	}
	return a.Window == b.Window
}

// OverlayPoint is where to float the overlay: just past the caret when
// known, otherwise the centre of the window. ok is false when the anchor
// has neither.
func (a Anchor) OverlayPoint(offX, offY int) (x, y int, ok bool) {
	if a.HasCaret {
		return a.Caret.X + a.Caret.W + offX, a.Caret.Y + a.Caret.H + offY, true
	}
	if !a.Bounds.Empty() {
		x, y = a.Bounds.Center()
		return x, y, true
	}
	return 0, 0, false
}

type Locator interface {
	CurrentAnchor(ctx context.Context) (Anchor, error)
}

// Fallback wraps a Locator so that any failure becomes an unlocatable
// anchor plus ErrNoTarget, and a hung query is bounded by timeout.
func Fallback(l Locator, timeout time.Duration) Locator {
	return fallback{l: l, timeout: timeout}
}

type fallback struct {
	l       Locator
	timeout time.Duration
}

func (f fallback) CurrentAnchor(ctx context.Context) (Anchor, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	a, err := f.l.CurrentAnchor(ctx)
	if err != nil {
		return Anchor{At: time.Now()}, errors.Join(ErrNoTarget, err)
	}
	return a, nil
}
