// Package session runs the dictation state machine: one press of the
// trigger key records, transcribes, optionally rewrites and injects text,
// then waits for the user to accept, cancel or switch mode.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dictate/audio"
	"dictate/caret"
	"dictate/config"
	"dictate/inject"
	"dictate/mode"
)

// Session is one press-to-accept interaction. Only the controller loop
// touches it.
type Session struct {
	ID        string
	State     State
	Anchor    caret.Anchor
	Recording audio.Recording
	// Transcript is set once, when transcription succeeds.
	Transcript string
	Processed  string
	Mode       mode.Mode
	Degraded   bool

	cfg     config.Config
	cycle   mode.Cycle
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	handle *inject.Handle

	// seq identifies the one service call whose result is still wanted.
	seq    int
	rerun  bool
	queued *mode.Mode

	silence *audio.SilenceMonitor
	noVoice bool
	failure string
}

func newSession(parent context.Context, cfg config.Config) *Session {
	ctx, cancel := context.WithCancel(parent)
	start, _ := cfg.StartMode()
	return &Session{
		ID:      uuid.NewString(),
		State:   Idle,
		Mode:    start,
		cfg:     cfg,
		cycle:   cfg.Cycle(),
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
	}
}

// Injected reports whether text from this session is in the target.
func (s *Session) Injected() bool { return s.handle.Pending() }

// token identifies a service call made on behalf of s.
type token struct {
	id  string
	seq int
}

func (s *Session) next() token {
	s.seq++
	return token{id: s.ID, seq: s.seq}
}

func (s *Session) current(t token) bool {
	return t.id == s.ID && t.seq == s.seq
}

func (s *Session) elapsed() time.Duration {
	if s.State == Recording {
		return time.Since(s.started)
	}
	return s.Recording.Duration()
}
