//go:build linux

package caret

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type x11Locator struct {
	xdotool string
}

// New returns the X11 locator, which shells out to xdotool. Under Wayland
// or without xdotool every query reports ErrNoTarget.
func New() Locator {
	path, _ := exec.LookPath("xdotool")
	return &x11Locator{xdotool: path}
}

func (l *x11Locator) CurrentAnchor(ctx context.Context) (Anchor, error) {
	now := time.Now()
	if l.xdotool == "" || os.Getenv("DISPLAY") == "" {
		return Anchor{At: now}, ErrNoTarget
	}
	out, err := exec.CommandContext(ctx, l.xdotool, "getactivewindow", "getwindowgeometry", "--shell").Output()
	if err != nil {
		return Anchor{At: now}, fmt.Errorf("%w: xdotool: %v", ErrNoTarget, err)
	}
	a, err := parseGeometry(out)
	if err != nil {
		return Anchor{At: now}, err
	}
	a.At = now
	if title, err := exec.CommandContext(ctx, l.xdotool, "getactivewindow", "getwindowname").Output(); err == nil {
		a.Title = strings.TrimSpace(string(title))
	}
	return a, nil
}

// parseGeometry reads `xdotool getwindowgeometry --shell` output.
func parseGeometry(out []byte) (Anchor, error) {
	var a Anchor
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch k {
		case "WINDOW":
			a.Window = v
		case "X":
			a.Bounds.X, _ = strconv.Atoi(v)
		case "Y":
			a.Bounds.Y, _ = strconv.Atoi(v)
		case "WIDTH":
			a.Bounds.W, _ = strconv.Atoi(v)
		case "HEIGHT":
			a.Bounds.H, _ = strconv.Atoi(v)
		}
	}
	if a.Window == "" || a.Window == "0" {
		return Anchor{}, ErrNoTarget
	}
	return a, nil
}
