//go:build darwin

package caret

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const frontScript = `tell application "System Events"
	set p to first application process whose frontmost is true
	set w to front window of p
	set {x, y} to position of w
	set {ww, wh} to size of w
	return (unix id of p as text) & "|" & (name of w) & "|" & x & "|" & y & "|" & ww & "|" & wh
end tell`

type axLocator struct{}

// New asks System Events for the frontmost window. It needs the
// Accessibility permission; without it every query is ErrNoTarget.
func New() Locator { return axLocator{} }

func (axLocator) CurrentAnchor(ctx context.Context) (Anchor, error) {
	now := time.Now()
	out, err := exec.CommandContext(ctx, "osascript", "-e", frontScript).Output()
	if err != nil {
		return Anchor{At: now}, fmt.Errorf("%w: osascript: %v", ErrNoTarget, err)
	}
	parts := strings.Split(strings.TrimSpace(string(out)), "|")
	if len(parts) != 6 {
		return Anchor{At: now}, ErrNoTarget
	}
	a := Anchor{Window: parts[0] + ":" + parts[1], Title: parts[1], At: now}
	var x, y, w, h int
	fmt.Sscan(parts[2], &x)
	fmt.Sscan(parts[3], &y)
	fmt.Sscan(parts[4], &w)
	fmt.Sscan(parts[5], &h)
	a.Bounds = Rect{X: x, Y: y, W: w, H: h}
	return a, nil
}
