package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"dictate/audio"
	"dictate/caret"
	"dictate/hotkey"
	"dictate/inject"
	"dictate/log"
	"dictate/mode"
)

// DefaultTick is how often the recording view is refreshed.
const DefaultTick = 100 * time.Millisecond

type Deps struct {
	Edges       <-chan hotkey.Edge
	Capturer    Capturer
	Locator     caret.Locator
	Injector    Injector
	Transcriber TranscriptionService
	Processor   TextProcessingService
	Presenter   Presenter
	Settings    Settings
	Tick        time.Duration
}

type callKind int

const (
	transcribeCall callKind = iota
	processCall
)

type result struct {
	tok  token
	kind callKind
	mode mode.Mode
	text string
	err  error
}

// Controller owns the session lifecycle. Every transition runs on the
// goroutine that called Run; other goroutines talk to it through
// channels.
type Controller struct {
	d Deps

	cmds    chan func()
	results chan result
	views   chan ViewState
	done    chan struct{}
	running atomic.Bool

	view     atomic.Pointer[ViewState]
	sessions atomic.Int64

	// owned by the Run goroutine
	ctx      context.Context
	state    State
	sess     *Session
	last     *Session
	failure  string
	enabled  bool
	language string
	seq      uint64
}

func New(d Deps) *Controller {
	if d.Tick <= 0 {
		d.Tick = DefaultTick
	}
	if d.Presenter == nil {
		d.Presenter = PresenterFunc(func(ViewState) {})
	}
	if d.Locator == nil {
		d.Locator = noLocator{}
	}
	c := &Controller{
		d:       d,
		cmds:    make(chan func(), 16),
		results: make(chan result, 4),
		views:   make(chan ViewState, 256),
		done:    make(chan struct{}),
		enabled: true,
	}
	c.view.Store(&ViewState{Phase: Idle, Enabled: true})
	return c
}

type noLocator struct{}

func (noLocator) CurrentAnchor(context.Context) (caret.Anchor, error) {
	return caret.Anchor{At: time.Now()}, caret.ErrNoTarget
}

// Run processes edges, keys and service completions until ctx ends. Any
// session still in flight is cancelled on the way out.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("session: controller already running")
	}
	c.ctx = ctx
	delivered := make(chan struct{})
	go c.deliver(delivered)
	defer func() {
		if c.sess != nil {
			c.finish(Cancelled, nil)
		}
		close(c.done)
		close(c.views)
		<-delivered
	}()

	tick := time.NewTicker(c.d.Tick)
	defer tick.Stop()
	edges := c.d.Edges

	c.publish()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-edges:
			if !ok {
				edges = nil
				continue
			}
			c.handleEdge(e)
		case r := <-c.results:
			c.handleResult(r)
		case fn := <-c.cmds:
			fn()
		case <-tick.C:
			c.tick()
		}
	}
}

func (c *Controller) deliver(done chan struct{}) {
	defer close(done)
	for v := range c.views {
		c.d.Presenter.OnStateChange(v)
	}
}

// Key forwards an overlay gesture. Keys and settings changes are handled
// in the order they were made.
func (c *Controller) Key(k Key) {
	c.do(func() { c.handleKey(k) })
}

// SetLanguage changes the Translate target. A session showing Translate
// output is re-processed in the new language.
func (c *Controller) SetLanguage(lang string) {
	c.do(func() { c.setLanguage(lang) })
}

// SetEnabled pauses or resumes dictation. Pausing cancels the current
// session.
func (c *Controller) SetEnabled(on bool) {
	c.do(func() { c.setEnabled(on) })
}

func (c *Controller) do(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

// View returns the most recently published state.
func (c *Controller) View() ViewState {
	return *c.view.Load()
}

// Sessions counts sessions started since New.
func (c *Controller) Sessions() int {
	return int(c.sessions.Load())
}

func (c *Controller) handleEdge(e hotkey.Edge) {
	switch e.Kind {
	case hotkey.Pressed:
		c.press()
	case hotkey.Released:
		c.release()
	}
}

func (c *Controller) press() {
	if !c.enabled {
		log.Info("session: press ignored, dictation paused")
		return
	}
	if c.sess != nil {
		log.SessionEvent(c.sess.ID, "superseded", "state", c.sess.State.String())
		c.finish(Cancelled, nil)
	}

	cfg := c.d.Settings.Snapshot()
	if c.language != "" {
		cfg.TargetLanguage = c.language
	}
	s := newSession(c.ctx, cfg)
	c.sessions.Add(1)
	c.sess = s
	log.SessionEvent(s.ID, "session_start", "provider", cfg.Provider)

	if err := cfg.Credentials(); err != nil {
		c.finish(Cancelled, newError(KindConfiguration, "credentials", err))
		return
	}

	anchor, err := c.d.Locator.CurrentAnchor(s.ctx)
	if err != nil {
		log.SessionEvent(s.ID, "no_anchor", "err", err.Error())
	}
	s.Anchor = anchor

	if err := c.d.Capturer.Start(); err != nil {
		c.finish(Cancelled, newError(KindCapture, "start", err))
		return
	}
	s.started = time.Now()
	if w := cfg.SilenceWarning.Duration; w > 0 {
		s.silence = audio.NewSilenceMonitor(w, c.d.Tick)
	}
	c.enter(s, Recording)
}

func (c *Controller) release() {
	s := c.sess
	if s == nil || s.State != Recording {
		return
	}
	rec, err := c.d.Capturer.Stop()
	s.State = Transcribing
	if err != nil {
		c.finish(Cancelled, newError(KindCapture, "stop", err))
		return
	}
	s.Recording = rec
	log.SessionEvent(s.ID, "recording_stop", "duration_ms", rec.Duration().Milliseconds())

	if rec.Duration() < s.cfg.MinRecording.Duration {
		log.SessionEvent(s.ID, "too_short", "min_ms", s.cfg.MinRecording.Milliseconds())
		c.finish(Cancelled, nil)
		return
	}

	c.enter(s, Transcribing)
	tok := s.next()
	c.call(s, s.cfg.TranscribeTimeout.Duration, func(ctx context.Context) result {
		text, err := c.d.Transcriber.Transcribe(ctx, rec)
		return result{tok: tok, kind: transcribeCall, text: text, err: err}
	})
}

// call runs fn off the loop with a bounded context and posts its result
// back. Results for a finished or superseded call are dropped on arrival.
func (c *Controller) call(s *Session, timeout time.Duration, fn func(ctx context.Context) result) {
	parent := s.ctx
	go func() {
		var ctx context.Context
		var cancel context.CancelFunc
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(parent, timeout)
		} else {
			ctx, cancel = context.WithCancel(parent)
		}
		defer cancel()
		r := fn(ctx)
		select {
		case c.results <- r:
		case <-c.done:
		}
	}()
}

func (c *Controller) handleResult(r result) {
	s := c.sess
	if s == nil || !s.current(r.tok) {
		log.SessionEvent(r.tok.id, "stale_result", "seq", r.tok.seq)
		return
	}
	switch r.kind {
	case transcribeCall:
		c.transcribed(s, r)
	case processCall:
		c.processed(s, r)
	}
}

func (c *Controller) transcribed(s *Session, r result) {
	if r.err != nil {
		c.finish(Cancelled, newError(KindService, "transcribe", r.err))
		return
	}
	text := strings.TrimSpace(r.text)
	if text == "" {
		c.finish(Cancelled, newError(KindService, "transcribe", ErrNoSpeech))
		return
	}
	s.Transcript = text
	log.SessionEvent(s.ID, "transcribed", "chars", len(text))
	c.runMode(s, s.Mode, false)
}

// runMode produces the text for m from the cached transcript. Normal and
// prompt-less modes inject straight away.
func (c *Controller) runMode(s *Session, m mode.Mode, rerun bool) {
	s.Mode = m
	s.rerun = rerun
	if m.SystemPrompt() == "" {
		c.injectText(s, s.Transcript, false)
		return
	}

	c.enter(s, Processing)
	tok := s.next()
	transcript := s.Transcript
	c.call(s, s.cfg.ProcessTimeout.Duration, func(ctx context.Context) result {
		text, err := c.d.Processor.Process(ctx, transcript, m)
		return result{tok: tok, kind: processCall, mode: m, text: text, err: err}
	})
}

func (c *Controller) processed(s *Session, r result) {
	if s.queued != nil {
		next := *s.queued
		s.queued = nil
		log.SessionEvent(s.ID, "rerun_replaced", "done", r.mode.Label(), "next", next.Label())
		c.runMode(s, next, true)
		return
	}

	text := strings.TrimSpace(r.text)
	degraded := false
	if r.err != nil {
		err := newError(KindService, "process", r.err)
		log.SessionFailure(s.ID, "process", err)
		s.failure = failureText(err)
		degraded = true
	}
	if text == "" || degraded {
		text = s.Transcript
	}
	log.SessionEvent(s.ID, "processed", "mode", r.mode.Label(), "degraded", degraded)
	c.injectText(s, text, degraded)
}

func (c *Controller) injectText(s *Session, text string, degraded bool) {
	h, err := c.d.Injector.Inject(s.ctx, text, s.Anchor)
	if err != nil {
		c.finish(Cancelled, newError(KindInjection, "inject", err))
		return
	}
	s.handle = h
	s.Processed = text
	s.Degraded = degraded
	s.rerun = false
	log.SessionEvent(s.ID, "injected", "mode", s.Mode.Label(), "method", h.Method().String(), "steps", inject.Steps(text))
	c.enter(s, Interactive)
}

func (c *Controller) handleKey(k Key) {
	s := c.sess
	if s == nil {
		return
	}
	switch k {
	case KeyEsc:
		log.SessionEvent(s.ID, "esc", "state", s.State.String())
		c.finish(Cancelled, nil)
	case KeyEnter:
		if s.State != Interactive {
			return
		}
		if err := c.d.Injector.Commit(s.handle); err != nil {
			c.finish(Accepted, newError(KindInjection, "commit", err))
			return
		}
		log.TranscriptionText(s.Mode.Label(), s.Processed)
		c.finish(Accepted, nil)
	case KeyTab:
		c.cycle(s, s.cycle.Next)
	case KeyShiftTab:
		c.cycle(s, s.cycle.Prev)
	}
}

// cycle moves to another mode. While a re-run is in flight the request is
// queued, replacing any earlier queued one.
func (c *Controller) cycle(s *Session, step func(mode.Mode) mode.Mode) {
	switch {
	case s.State == Interactive:
		c.switchMode(s, step(s.Mode))
	case s.State == Processing && s.rerun:
		base := s.Mode
		if s.queued != nil {
			base = *s.queued
		}
		next := step(base)
		s.queued = &next
		log.SessionEvent(s.ID, "mode_queued", "mode", next.Label())
		c.publish()
	}
}

// switchMode removes the current injection and re-runs processing for
// next on the cached transcript.
func (c *Controller) switchMode(s *Session, next mode.Mode) {
	if err := c.d.Injector.Reverse(s.handle); err != nil {
		c.finish(Cancelled, newError(KindInjection, "reverse", err))
		return
	}
	log.SessionEvent(s.ID, "mode_cycle", "from", s.Mode.Label(), "to", next.Label())
	s.handle = nil
	s.Processed = ""
	s.Degraded = false
	s.failure = ""
	c.runMode(s, next, true)
}

func (c *Controller) setLanguage(lang string) {
	c.language = lang
	s := c.sess
	if s == nil {
		return
	}
	s.cycle = s.cycle.WithLanguage(lang)
	target := mode.NewTranslate(lang)
	switch {
	case s.State == Interactive && s.Mode.Kind == mode.Translate:
		c.switchMode(s, target)
	case s.State == Processing && s.rerun:
		pending := s.Mode
		if s.queued != nil {
			pending = *s.queued
		}
		if pending.Kind == mode.Translate {
			s.queued = &target
			c.publish()
		}
	}
}

func (c *Controller) setEnabled(on bool) {
	if c.enabled == on {
		return
	}
	c.enabled = on
	log.Infof("session: dictation enabled=%v", on)
	if !on && c.sess != nil {
		c.finish(Cancelled, nil)
		return
	}
	c.publish()
}

func (c *Controller) tick() {
	s := c.sess
	if s == nil || s.State != Recording {
		return
	}
	if err := c.d.Capturer.Failed(); err != nil {
		c.finish(Cancelled, newError(KindCapture, "stream", err))
		return
	}
	if s.silence != nil {
		switch s.silence.Tick(c.d.Capturer.Level() > audio.SpeechLevel) {
		case audio.SilenceWarn:
			s.noVoice = true
			log.SessionEvent(s.ID, "no_voice")
		case audio.SilenceWarnClear:
			s.noVoice = false
		}
	}
	c.publish()
}

func (c *Controller) enter(s *Session, st State) {
	s.State = st
	c.state = st
	c.publish()
}

// finish ends the current session in st. A Cancelled session has its
// capture aborted, its pending calls abandoned and its injection reversed.
func (c *Controller) finish(st State, err error) {
	s := c.sess
	if s == nil {
		return
	}
	if s.State == Recording {
		c.d.Capturer.Abort()
	}
	s.cancel()
	s.queued = nil
	s.rerun = false
	if st == Cancelled && s.handle.Pending() {
		if rerr := c.d.Injector.Reverse(s.handle); rerr != nil {
			log.SessionFailure(s.ID, "reverse", rerr)
			if err == nil {
				err = newError(KindInjection, "reverse", rerr)
			}
		}
	}

	s.State = st
	c.state = st
	c.sess = nil
	c.last = s
	c.failure = ""
	if err != nil {
		c.failure = failureText(err)
		log.SessionFailure(s.ID, st.String(), err)
	}
	log.SessionEvent(s.ID, st.String(), "mode", s.Mode.Label())
	c.publish()
}

func (c *Controller) publish() {
	c.seq++
	v := ViewState{
		Phase:   c.state,
		Enabled: c.enabled,
		Failure: c.failure,
		Seq:     c.seq,
	}
	s := c.sess
	if s == nil {
		s = c.last
	}
	if s != nil {
		target := s.Mode
		if s.queued != nil {
			target = *s.queued
		}
		v.SessionID = s.ID
		v.ElapsedRecordingMs = s.elapsed().Milliseconds()
		v.CurrentModeLabel = target.Label()
		v.Modes = s.cycle.Labels()
		v.ModeIndex = s.cycle.Index(target)
		v.Degraded = s.Degraded
		v.Rerun = s.rerun && s.State == Processing
		v.Anchor = s.Anchor
		if s.handle.Pending() || s.State == Accepted {
			v.Text = s.Processed
		}
		if s == c.sess {
			v.Failure = s.failure
		}
		if s.State == Recording {
			v.Level = c.d.Capturer.Level()
			v.NoVoice = s.noVoice
		}
	}
	c.view.Store(&v)
	select {
	case c.views <- v:
	default:
		log.Warn("session: presenter backlog full, view dropped")
	}
}
