package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"dictate/audio"
	"dictate/caret"
	"dictate/config"
	"dictate/hotkey"
	"dictate/inject"
	"dictate/log"
	"dictate/overlay"
	"dictate/processor"
	"dictate/session"
	"dictate/transcriber"
)

const (
	testWindow      = "test-window"
	testTranscript  = "hello world"
	testWaitTimeout = 10 * time.Second
)

var errScriptFailed = errors.New("script failed")

type command struct {
	verb string
	arg  string
}

// parseCommand splits a script line into an upper-case verb and the rest.
// Blank lines and # comments yield ok=false.
func parseCommand(line string) (c command, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return command{}, false
	}
	verb, arg, _ := strings.Cut(line, " ")
	return command{verb: strings.ToUpper(verb), arg: strings.TrimSpace(arg)}, true
}

func parseState(s string) (session.State, error) {
	for st := session.Idle; st <= session.Cancelled; st++ {
		if strings.EqualFold(st.String(), s) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// phaseLog remembers every published phase so WAIT can look back at
// transitions that happened before it was issued.
type phaseLog struct {
	mu     sync.Mutex
	seen   []session.State
	cursor int
	notify chan struct{}
}

func newPhaseLog() *phaseLog {
	return &phaseLog{notify: make(chan struct{}, 1)}
}

func (p *phaseLog) OnStateChange(v session.ViewState) {
	p.mu.Lock()
	p.seen = append(p.seen, v.Phase)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// wait consumes published phases until st is seen.
func (p *phaseLog) wait(ctx context.Context, st session.State, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		p.mu.Lock()
		for ; p.cursor < len(p.seen); p.cursor++ {
			if p.seen[p.cursor] == st {
				p.cursor++
				p.mu.Unlock()
				return nil
			}
		}
		p.mu.Unlock()
		select {
		case <-p.notify:
		case <-deadline:
			return fmt.Errorf("timed out waiting for %s", st)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// testEnv is the headless harness: a WAV file as the microphone, a fake
// trigger key, an in-memory text field and scripted services.
type testEnv struct {
	out     io.Writer
	mic     *audio.FakeContext
	hotkeys *hotkey.FakeFactory
	target  *inject.FakeTarget
	locator *caret.FakeLocator
	stt     *transcriber.Fake
	llm     *processor.Fake
	phases  *phaseLog
	ctrl    *session.Controller
}

func runTestMode(ctx context.Context, cfg config.Config, wavPath string, in io.Reader, out io.Writer) error {
	mic, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		return fmt.Errorf("load WAV: %w", err)
	}
	if cfg.Credentials() != nil {
		cfg.GroqAPIKey, cfg.OpenAIAPIKey = "test", "test"
	}

	e := &testEnv{
		out:     out,
		mic:     mic,
		hotkeys: &hotkey.FakeFactory{},
		target:  inject.NewFakeTarget(""),
		locator: caret.NewFakeLocator(caret.Anchor{Window: testWindow, Title: "test"}),
		stt:     transcriber.NewFake(testTranscript, nil),
		llm:     processor.NewFake(),
		phases:  newPhaseLog(),
	}

	listener := hotkey.NewListener(e.hotkeys.New)
	if err := listener.Start(cfg.Trigger()); err != nil {
		return err
	}
	defer listener.Close()

	capturer := audio.NewCapturer(mic, nil)
	defer capturer.Close()

	opts := inject.DefaultOptions()
	opts.Settle = 0
	opts.Strategy, _ = inject.ParseStrategy(cfg.InjectStrategy)
	opts.Locator = e.locator

	e.ctrl = session.New(session.Deps{
		Edges:       listener.Edges(),
		Capturer:    capturer,
		Locator:     e.locator,
		Injector:    inject.New(e.target, e.target, opts),
		Transcriber: e.stt,
		Processor:   e.llm,
		Presenter:   overlay.Fanout{overlay.NewLog(out), e.phases},
		Settings:    config.NewStore(cfg),
	})
	log.AppStart("fake", cfg.Trigger().String(), "test")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.ctrl.Run(ctx) }()

	scriptErr := e.script(ctx, in)
	cancel()
	if err := <-done; err != nil {
		return err
	}
	fmt.Fprintf(out, "target %q\n", e.target.Text())
	log.AppEnd(e.ctrl.Sessions())
	return scriptErr
}

func (e *testEnv) script(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		c, ok := parseCommand(scanner.Text())
		if !ok {
			continue
		}
		if c.verb == "QUIT" {
			return nil
		}
		if err := e.exec(ctx, c); err != nil {
			fmt.Fprintf(e.out, "error %s: %v\n", c.verb, err)
			return fmt.Errorf("%w: %s %s: %v", errScriptFailed, c.verb, c.arg, err)
		}
	}
	return scanner.Err()
}

func (e *testEnv) exec(ctx context.Context, c command) error {
	switch c.verb {
	case "KEYDOWN", "KEYUP":
		hk := e.hotkeys.Active()
		if hk == nil {
			return errors.New("trigger not registered")
		}
		if c.verb == "KEYDOWN" {
			hk.SimKeydown()
		} else {
			hk.SimKeyup()
		}
	case "TAB":
		e.ctrl.Key(session.KeyTab)
	case "SHIFTTAB":
		e.ctrl.Key(session.KeyShiftTab)
	case "ENTER":
		e.ctrl.Key(session.KeyEnter)
	case "ESC":
		e.ctrl.Key(session.KeyEsc)
	case "WAIT":
		st, err := parseState(c.arg)
		if err != nil {
			return err
		}
		return e.phases.wait(ctx, st, testWaitTimeout)
	case "WAIT_AUDIO_DONE":
		captures := e.mic.Captures()
		if len(captures) == 0 {
			return errors.New("no capture started")
		}
		select {
		case <-captures[len(captures)-1].AudioDone():
		case <-time.After(testWaitTimeout):
			return errors.New("audio not done")
		}
	case "SLEEP":
		ms, err := strconv.Atoi(c.arg)
		if err != nil {
			return err
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
	case "TRANSCRIPT":
		e.stt.SetResponse(c.arg, nil)
	case "TRANSCRIBE_FAIL":
		e.stt.SetResponse("", errors.New(c.arg))
	case "REPLY":
		label, text, ok := strings.Cut(c.arg, "|")
		if !ok {
			return errors.New("want REPLY <mode>|<text>")
		}
		e.llm.Reply(strings.TrimSpace(label), strings.TrimSpace(text))
	case "FAIL":
		e.llm.Fail(c.arg, errors.New("scripted failure"))
	case "LANG":
		e.ctrl.SetLanguage(c.arg)
	case "PAUSE":
		e.ctrl.SetEnabled(false)
	case "RESUME":
		e.ctrl.SetEnabled(true)
	case "FOCUS":
		e.locator.Push(caret.Anchor{Window: c.arg, Title: c.arg})
	case "TEXT":
		e.target.SetText(c.arg, -1, -1)
	default:
		return fmt.Errorf("unknown command %q", c.verb)
	}
	return nil
}
