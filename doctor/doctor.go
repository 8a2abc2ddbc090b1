// Package doctor runs interactive checks of everything a dictation
// session depends on: settings, trigger key, microphone, services and
// keystroke injection.
package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"dictate/audio"
	"dictate/config"
	"dictate/hotkey"
	"dictate/mode"
	"dictate/session"
)

// Prober reports whether synthetic keystrokes reach the system.
type Prober interface {
	Probe() (string, error)
}

// Env holds the real or fake collaborators the checks exercise. Nil
// collaborators skip their check.
type Env struct {
	In     io.Reader
	Out    io.Writer
	Config config.Config

	// Diagnose inspects the trigger key's input path without waiting for a
	// press.
	Diagnose func(hotkey.Trigger) (string, error)
	Hotkeys  hotkey.Factory
	Audio    audio.Context
	Keyboard Prober

	Transcriber session.TranscriptionService
	Processor   session.TextProcessingService

	// PressTimeout bounds the wait for the trigger press; Record is how
	// long the microphone check records.
	PressTimeout time.Duration
	Record       time.Duration

	in *bufio.Reader
}

var errSkipped = errors.New("skipped")

type check struct {
	name string
	run  func(ctx context.Context, e *Env) (string, error)
}

var checks = []check{
	{"Settings and credentials", checkSettings},
	{"Trigger key", checkTrigger},
	{"Microphone and transcription", checkMicrophone},
	{"Text processing", checkProcessing},
	{"Keystroke injection", checkInjection},
}

// Run executes every check in order and returns an exit code: 0 when
// all ran checks passed, 1 otherwise.
func Run(ctx context.Context, e *Env) int {
	if e.PressTimeout <= 0 {
		e.PressTimeout = 10 * time.Second
	}
	if e.Record <= 0 {
		e.Record = 3 * time.Second
	}
	restore := saveTerminal(e.In)
	defer restore()

	fmt.Fprintln(e.Out, "dictate doctor - interactive system diagnostics")
	fmt.Fprintln(e.Out, "===============================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(e.Out, "\n[%d/%d] %s\n", i+1, len(checks), c.name)
		msg, err := c.run(ctx, e)
		restore()
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(e.Out, "  SKIP: %s\n", msg)
		case err != nil:
			fmt.Fprintf(e.Out, "  FAIL: %v\n", err)
			failed++
		default:
			fmt.Fprintf(e.Out, "  PASS: %s\n", msg)
		}
		if ctx.Err() != nil {
			return 1
		}
	}

	fmt.Fprintln(e.Out)
	if failed > 0 {
		fmt.Fprintf(e.Out, "%d check(s) failed. See details above.\n", failed)
		return 1
	}
	fmt.Fprintln(e.Out, "All checks passed!")
	return 0
}

func checkSettings(_ context.Context, e *Env) (string, error) {
	if err := e.Config.Validate(); err != nil {
		return "", err
	}
	if err := e.Config.Credentials(); err != nil {
		return "", fmt.Errorf("%w (set %s)", err, keyVar(e.Config.Provider))
	}
	start, _ := e.Config.StartMode()
	return fmt.Sprintf("provider %s, trigger %s, %d modes, starting in %s",
		e.Config.Provider, e.Config.Trigger().Label(), len(e.Config.Cycle().Labels()), start.Label()), nil
}

func keyVar(provider string) string {
	if provider == config.ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GROQ_API_KEY"
}

func checkTrigger(ctx context.Context, e *Env) (string, error) {
	t := e.Config.Trigger()
	if e.Diagnose != nil {
		info, err := e.Diagnose(t)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(e.Out, "  %s\n", info)
	}
	if e.Hotkeys == nil {
		return "no hotkey backend", errSkipped
	}

	l := hotkey.NewListener(e.Hotkeys)
	if err := l.Start(t); err != nil {
		return "", err
	}
	defer l.Close()
	fmt.Fprintf(e.Out, "  Press and release %s...\n", t.Label())

	timeout := time.After(e.PressTimeout)
	var pressed time.Time
	for {
		select {
		case edge := <-l.Edges():
			if edge.Kind == hotkey.Pressed {
				pressed = edge.At
				continue
			}
			if !pressed.IsZero() {
				return fmt.Sprintf("%s held for %dms", t.Label(), edge.At.Sub(pressed).Milliseconds()), nil
			}
		case <-timeout:
			if pressed.IsZero() {
				return "", fmt.Errorf("no press of %s within %s", t.Label(), e.PressTimeout)
			}
			return "", fmt.Errorf("%s pressed but never released", t.Label())
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func checkMicrophone(ctx context.Context, e *Env) (string, error) {
	if e.Audio == nil {
		return "no audio backend", errSkipped
	}
	device, err := audio.FindDevice(e.Audio, e.Config.Device)
	if err != nil {
		return "", err
	}
	c := audio.NewCapturer(e.Audio, device)
	defer c.Close()

	prompt(e, fmt.Sprintf("  Press Enter and speak for %s...", e.Record))
	if err := c.Start(); err != nil {
		return "", err
	}
	peak := 0.0
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(e.Record)
record:
	for {
		select {
		case <-tick.C:
			peak = max(peak, c.Level())
		case <-deadline:
			break record
		case <-ctx.Done():
			c.Abort()
			return "", ctx.Err()
		}
	}
	rec, err := c.Stop()
	if err != nil {
		return "", err
	}
	peak = max(peak, rec.RMS())
	summary := fmt.Sprintf("recorded %.1fs from %s, peak level %.3f", rec.Duration().Seconds(), c.DeviceName(), peak)
	if peak < audio.SpeechLevel {
		fmt.Fprintln(e.Out, "  warning: no voice detected, check the input volume")
	}

	if e.Transcriber == nil {
		return summary, nil
	}
	tctx, cancel := context.WithTimeout(ctx, e.Config.TranscribeTimeout.Duration)
	defer cancel()
	text, err := e.Transcriber.Transcribe(tctx, rec)
	if err != nil {
		return "", fmt.Errorf("%s, transcription failed: %w", summary, err)
	}
	if strings.TrimSpace(text) == "" {
		text = "(no speech detected)"
	}
	fmt.Fprintf(e.Out, "  Heard: %s\n", text)
	if !confirm(e, "  Is this correct? [y/n]: ") {
		return "", errors.New("transcription not confirmed")
	}
	return summary + ", transcription confirmed", nil
}

func checkProcessing(ctx context.Context, e *Env) (string, error) {
	if e.Processor == nil {
		return "no processing service", errSkipped
	}
	pctx, cancel := context.WithTimeout(ctx, e.Config.ProcessTimeout.Duration)
	defer cancel()
	const sample = "hey can you send me the report by friday thanks"
	out, err := e.Processor.Process(pctx, sample, mode.NewFormal())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.New("empty response")
	}
	fmt.Fprintf(e.Out, "  Formal: %s\n", out)
	return "rewrite received", nil
}

func checkInjection(_ context.Context, e *Env) (string, error) {
	if e.Keyboard == nil {
		return "no keyboard backend", errSkipped
	}
	return e.Keyboard.Probe()
}

func prompt(e *Env, msg string) string {
	fmt.Fprint(e.Out, msg)
	if e.In == nil {
		fmt.Fprintln(e.Out)
		return ""
	}
	if e.in == nil {
		e.in = bufio.NewReader(e.In)
	}
	line, _ := e.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func confirm(e *Env, msg string) bool {
	answer := strings.ToLower(prompt(e, msg))
	return answer == "y" || answer == "yes"
}
