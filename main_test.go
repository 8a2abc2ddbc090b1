package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dictate/audio"
	"dictate/config"
	"dictate/hotkey"
	"dictate/session"
)

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-headless", "-nobeep", "-trigger", "f1", "-lang", "de", "-test", "x.wav"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if !o.headless || !o.noBeep || o.trigger != "f1" || o.lang != "de" || o.test != "x.wav" {
		t.Errorf("options = %+v", o)
	}
	if _, err := parseFlags([]string{"-bogus"}, io.Discard); err == nil {
		t.Error("unknown flag accepted")
	}
	if _, err := parseFlags([]string{"stray"}, io.Discard); err == nil {
		t.Error("stray argument accepted")
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	for _, k := range []string{"DICTATE_TRIGGER_KEY", "DICTATE_DEVICE", "DICTATE_LANGUAGE", "DICTATE_LOG_PATH", "DICTATE_PROVIDER"} {
		t.Setenv(k, "")
	}
	p := filepath.Join(t.TempDir(), "config.toml")
	body := "trigger_key = \"right_alt\"\ndevice = \"Built-in\"\n"
	if err := os.WriteFile(p, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, path, err := loadConfig(options{configPath: p, trigger: "f1", device: "USB Mic", lang: "fr"})
	if err != nil {
		t.Fatal(err)
	}
	if path != p {
		t.Errorf("path = %q", path)
	}
	if cfg.TriggerKey != "f1" || cfg.Device != "USB Mic" || cfg.Language != "fr" {
		t.Errorf("cfg = %+v", cfg)
	}

	if _, _, err := loadConfig(options{configPath: p, trigger: "space"}); err == nil {
		t.Error("bad trigger accepted")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
		ok   bool
	}{
		{"KEYDOWN", command{verb: "KEYDOWN"}, true},
		{"  wait interactive ", command{verb: "WAIT", arg: "interactive"}, true},
		{"REPLY Formal|Dear team, hello.", command{verb: "REPLY", arg: "Formal|Dear team, hello."}, true},
		{"", command{}, false},
		{"# comment", command{}, false},
	}
	for _, tt := range tests {
		got, ok := parseCommand(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseCommand(%q) = %+v, %v", tt.line, got, ok)
		}
	}
}

func TestParseState(t *testing.T) {
	st, err := parseState("Interactive")
	if err != nil || st != session.Interactive {
		t.Errorf("parseState = %v, %v", st, err)
	}
	if _, err := parseState("done"); err == nil {
		t.Error("unknown phase accepted")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeWAV(t *testing.T, d time.Duration) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "speech.wav")
	if err := os.WriteFile(p, audio.SilentRecording(d).WAV(), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func runScript(t *testing.T, cfg config.Config, script ...string) (string, error) {
	t.Helper()
	var out syncBuffer
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := runTestMode(ctx, cfg, writeWAV(t, 2*time.Second), strings.NewReader(strings.Join(script, "\n")+"\n"), &out)
	return out.String(), err
}

func testModeConfig() config.Config {
	cfg := config.Default()
	cfg.SilenceWarning = config.Duration{}
	return cfg
}

func TestTestModeScripts(t *testing.T) {
	tests := []struct {
		name   string
		script []string
		target string
		lines  []string
	}{
		{
			name:   "dictate and accept",
			script: []string{"KEYDOWN", "SLEEP 500", "KEYUP", "WAIT interactive", "ENTER", "WAIT accepted", "QUIT"},
			target: "hello world",
			lines:  []string{`interactive mode="Normal" text="hello world"`, "accepted"},
		},
		{
			name: "tab to formal",
			script: []string{
				"REPLY Formal|Hello, world.",
				"KEYDOWN", "SLEEP 500", "KEYUP", "WAIT interactive",
				"TAB", "WAIT processing", "WAIT interactive", "ENTER", "WAIT accepted", "QUIT",
			},
			target: "Hello, world.",
			lines:  []string{`interactive mode="Formal" text="Hello, world."`},
		},
		{
			name:   "escape restores",
			script: []string{"TEXT draft:", "KEYDOWN", "SLEEP 500", "KEYUP", "WAIT interactive", "ESC", "WAIT cancelled", "QUIT"},
			target: "draft:",
			lines:  []string{"cancelled"},
		},
		{
			name:   "short tap",
			script: []string{"KEYDOWN", "KEYUP", "WAIT cancelled", "QUIT"},
			target: "",
		},
		{
			name:   "transcription failure",
			script: []string{"TRANSCRIBE_FAIL 503", "KEYDOWN", "SLEEP 500", "KEYUP", "WAIT cancelled", "QUIT"},
			target: "",
			lines:  []string{`failure="Transcription failed"`},
		},
		{
			name:   "focus changed",
			script: []string{"KEYDOWN", "FOCUS other-window", "SLEEP 500", "KEYUP", "WAIT cancelled", "QUIT"},
			target: "",
			lines:  []string{`failure="Focus changed, text not inserted"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runScript(t, testModeConfig(), tt.script...)
			if err != nil {
				t.Fatalf("runTestMode: %v\n%s", err, out)
			}
			if want := "target \"" + tt.target + "\""; !strings.Contains(out, want) {
				t.Errorf("output missing %s:\n%s", want, out)
			}
			for _, l := range tt.lines {
				if !strings.Contains(out, l) {
					t.Errorf("output missing %q:\n%s", l, out)
				}
			}
		})
	}
}

func TestTestModeBadCommand(t *testing.T) {
	out, err := runScript(t, testModeConfig(), "JUMP")
	if err == nil {
		t.Fatalf("unknown command accepted:\n%s", out)
	}
	if !strings.Contains(out, "error JUMP") {
		t.Errorf("output = %s", out)
	}
}

func TestWatchReloadsSwapsTrigger(t *testing.T) {
	for _, k := range []string{"DICTATE_TRIGGER_KEY", "DICTATE_LANGUAGE", "DICTATE_PROVIDER"} {
		t.Setenv(k, "")
	}
	p := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(p, []byte("trigger_key = \"caps_lock\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	o := options{configPath: p}
	cfg, _, err := loadConfig(o)
	if err != nil {
		t.Fatal(err)
	}
	store := config.NewStore(cfg)
	ff := &hotkey.FakeFactory{}
	listener := hotkey.NewListener(ff.New)
	if err := listener.Start(cfg.Trigger()); err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloads := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchReloads(ctx, reloads, o, store, listener, nil)
	}()

	if err := os.WriteFile(p, []byte("trigger_key = \"f1\"\ntranscription_language = \"de\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	reloads <- struct{}{}
	deadline := time.Now().Add(2 * time.Second)
	for listener.Trigger() != hotkey.F1 {
		if time.Now().After(deadline) {
			t.Fatalf("trigger = %v after reload", listener.Trigger())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := store.Snapshot(); got.TriggerKey != "f1" || got.Language != "de" {
		t.Errorf("settings after reload: trigger %q language %q", got.TriggerKey, got.Language)
	}
	if hk := ff.Active(); hk == nil || hk.Trigger != hotkey.F1 {
		t.Errorf("active hotkey = %+v", hk)
	}
	cancel()
	<-done
}

func TestApplyReloadKeepsSettingsOnTriggerError(t *testing.T) {
	ff := &hotkey.FakeFactory{}
	listener := hotkey.NewListener(ff.New)
	if err := listener.Start(hotkey.CapsLock); err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	ff.FailFor(hotkey.F1)

	cfg := config.Default()
	cfg.TriggerKey = "f1"
	cfg.Language = "fr"
	store := config.NewStore(config.Default())
	if err := applyReload(cfg, store, listener); err == nil {
		t.Fatal("expected trigger error")
	}
	if listener.Trigger() != hotkey.CapsLock {
		t.Errorf("trigger = %v", listener.Trigger())
	}
	if store.Snapshot().Language != "fr" {
		t.Errorf("language not applied")
	}
}
