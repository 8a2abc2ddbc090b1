// Package overlay shows session state to the user. The terminal overlay
// also forwards Tab, Shift+Tab, Enter and Esc back to the controller.
package overlay

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"dictate/beep"
	"dictate/log"
	"dictate/session"
)

// Fanout hands each view to every presenter in order.
type Fanout []session.Presenter

func (f Fanout) OnStateChange(v session.ViewState) {
	for _, p := range f {
		p.OnStateChange(v)
	}
}

// Log writes one line per visible change to w. Recording ticks that only
// move the timer or the level are skipped. Used in headless mode.
type Log struct {
	w io.Writer

	mu   sync.Mutex
	last string
}

func NewLog(w io.Writer) *Log {
	return &Log{w: w}
}

func (l *Log) OnStateChange(v session.ViewState) {
	line := describe(v)
	l.mu.Lock()
	defer l.mu.Unlock()
	if line == l.last {
		return
	}
	l.last = line
	fmt.Fprintln(l.w, line)
	log.Info("overlay: " + line)
}

func describe(v session.ViewState) string {
	var b strings.Builder
	b.WriteString(v.Phase.String())
	if !v.Enabled {
		b.WriteString(" paused")
	}
	if v.CurrentModeLabel != "" {
		fmt.Fprintf(&b, " mode=%q", v.CurrentModeLabel)
	}
	if v.Rerun {
		b.WriteString(" rerun")
	}
	if v.NoVoice {
		b.WriteString(" no_voice")
	}
	if v.Degraded {
		b.WriteString(" degraded")
	}
	if v.Text != "" {
		fmt.Fprintf(&b, " text=%q", v.Text)
	}
	if v.Failure != "" {
		fmt.Fprintf(&b, " failure=%q", v.Failure)
	}
	return b.String()
}

// Cue plays a tone when recording starts, when it stops and when a
// session fails.
type Cue struct {
	play func(beep.Cue)

	mu      sync.Mutex
	phase   session.State
	failure string
}

func NewCue() *Cue {
	return &Cue{play: beep.Play}
}

func (c *Cue) OnStateChange(v session.ViewState) {
	c.mu.Lock()
	prev, prevFailure := c.phase, c.failure
	c.phase, c.failure = v.Phase, v.Failure
	c.mu.Unlock()

	switch {
	case v.Failure != "" && (v.Failure != prevFailure || v.Phase != prev):
		c.play(beep.Error)
	case v.Phase == prev:
	case v.Phase == session.Recording:
		c.play(beep.Start)
	case prev == session.Recording && v.Phase == session.Transcribing:
		c.play(beep.Stop)
	}
}
