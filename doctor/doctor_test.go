package doctor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dictate/audio"
	"dictate/config"
	"dictate/hotkey"
	"dictate/processor"
	"dictate/transcriber"
)

type prober struct {
	msg string
	err error
}

func (p prober) Probe() (string, error) { return p.msg, p.err }

func press(t *testing.T, f *hotkey.FakeFactory) {
	deadline := time.Now().Add(2 * time.Second)
	for f.Active() == nil {
		if time.Now().After(deadline) {
			t.Error("hotkey never registered")
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	hk := f.Active()
	hk.SimKeydown()
	time.Sleep(10 * time.Millisecond)
	hk.SimKeyup()
}

func TestRunAllPass(t *testing.T) {
	cfg := config.Default()
	cfg.GroqAPIKey = "test"
	hotkeys := &hotkey.FakeFactory{}
	var out bytes.Buffer
	env := &Env{
		In:           strings.NewReader("\ny\n"),
		Out:          &out,
		Config:       cfg,
		Diagnose:     func(t hotkey.Trigger) (string, error) { return t.Label() + " reachable", nil },
		Hotkeys:      hotkeys.New,
		Audio:        audio.NewFakeContextPCM(make([]byte, audio.SampleRate*audio.BytesPerSample), false),
		Keyboard:     prober{msg: "virtual keyboard works"},
		Transcriber:  transcriber.NewFake("buy milk", nil),
		Processor:    processor.NewFake(),
		PressTimeout: 2 * time.Second,
		Record:       50 * time.Millisecond,
	}
	go press(t, hotkeys)

	code := Run(context.Background(), env)
	got := out.String()
	if code != 0 {
		t.Fatalf("code = %d\n%s", code, got)
	}
	for _, want := range []string{
		"PASS: provider groq",
		"Caps Lock reachable",
		"PASS: Caps Lock held for",
		"recorded 1.0s",
		"Heard: buy milk",
		"transcription confirmed",
		"Formal: [Formal] hey can you send",
		"PASS: virtual keyboard works",
		"All checks passed!",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunFailures(t *testing.T) {
	cfg := config.Default()
	var out bytes.Buffer
	env := &Env{
		Out:      &out,
		Config:   cfg,
		Keyboard: prober{err: errors.New("cannot open /dev/uinput")},
	}
	if code := Run(context.Background(), env); code != 1 {
		t.Errorf("code = %d, want 1", code)
	}
	got := out.String()
	for _, want := range []string{
		"GROQ_API_KEY",
		"SKIP: no hotkey backend",
		"SKIP: no audio backend",
		"SKIP: no processing service",
		"FAIL: cannot open /dev/uinput",
		"2 check(s) failed",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestTranscriptionNotConfirmed(t *testing.T) {
	cfg := config.Default()
	cfg.GroqAPIKey = "test"
	var out bytes.Buffer
	env := &Env{
		In:          strings.NewReader("\nn\n"),
		Out:         &out,
		Config:      cfg,
		Audio:       audio.NewFakeContextPCM(make([]byte, audio.SampleRate*audio.BytesPerSample), false),
		Transcriber: transcriber.NewFake("by milk", nil),
		Record:      20 * time.Millisecond,
	}
	if _, err := checkMicrophone(context.Background(), env); err == nil {
		t.Fatal("unconfirmed transcription passed")
	}
}

func TestTriggerTimeout(t *testing.T) {
	env := &Env{
		Out:          &bytes.Buffer{},
		Config:       config.Default(),
		Hotkeys:      (&hotkey.FakeFactory{}).New,
		PressTimeout: 30 * time.Millisecond,
	}
	_, err := checkTrigger(context.Background(), env)
	if err == nil || !strings.Contains(err.Error(), "no press") {
		t.Errorf("err = %v", err)
	}
}
