package overlay

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"dictate/beep"
	"dictate/hotkey"
	"dictate/session"
)

type keyLog []session.Key

func (k *keyLog) Key(key session.Key) { *k = append(*k, key) }

func update(m model, msg tea.Msg) (model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

var modes = []string{"Normal", "Formal", "Translate", "Structure", "Summarize"}

func TestGestures(t *testing.T) {
	interactive := session.ViewState{Phase: session.Interactive, Modes: modes, ModeIndex: 1, CurrentModeLabel: "Formal"}
	rerun := session.ViewState{Phase: session.Processing, Rerun: true, Modes: modes}
	firstProcessing := session.ViewState{Phase: session.Processing}
	recording := session.ViewState{Phase: session.Recording}
	idle := session.ViewState{Phase: session.Idle}

	tests := []struct {
		name string
		view session.ViewState
		key  tea.KeyMsg
		want []session.Key
	}{
		{"tab interactive", interactive, tea.KeyMsg{Type: tea.KeyTab}, []session.Key{session.KeyTab}},
		{"shift tab interactive", interactive, tea.KeyMsg{Type: tea.KeyShiftTab}, []session.Key{session.KeyShiftTab}},
		{"enter interactive", interactive, tea.KeyMsg{Type: tea.KeyEnter}, []session.Key{session.KeyEnter}},
		{"esc interactive", interactive, tea.KeyMsg{Type: tea.KeyEsc}, []session.Key{session.KeyEsc}},
		{"tab during rerun", rerun, tea.KeyMsg{Type: tea.KeyTab}, []session.Key{session.KeyTab}},
		{"enter during rerun", rerun, tea.KeyMsg{Type: tea.KeyEnter}, nil},
		{"tab during first processing", firstProcessing, tea.KeyMsg{Type: tea.KeyTab}, nil},
		{"esc during first processing", firstProcessing, tea.KeyMsg{Type: tea.KeyEsc}, []session.Key{session.KeyEsc}},
		{"esc while recording", recording, tea.KeyMsg{Type: tea.KeyEsc}, []session.Key{session.KeyEsc}},
		{"tab while recording", recording, tea.KeyMsg{Type: tea.KeyTab}, nil},
		{"esc when idle", idle, tea.KeyMsg{Type: tea.KeyEsc}, nil},
		{"letter", interactive, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var keys keyLog
			m, _ := update(newModel(&keys, "", ""), viewMsg(tt.view))
			_, cmd := update(m, tt.key)
			if cmd != nil {
				cmd()
			}
			if !slices.Equal(keys, tt.want) {
				t.Errorf("keys = %v, want %v", keys, tt.want)
			}
		})
	}
}

func TestCtrlCQuits(t *testing.T) {
	var keys keyLog
	_, cmd := update(newModel(&keys, "", ""), tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
}

func TestView(t *testing.T) {
	tests := []struct {
		name    string
		view    session.ViewState
		want    []string
		notWant []string
	}{
		{
			name: "idle",
			view: session.ViewState{Phase: session.Idle, Enabled: true},
			want: []string{"STANDBY", "Caps Lock", "to dictate"},
		},
		{
			name: "paused",
			view: session.ViewState{Phase: session.Idle},
			want: []string{"PAUSED"},
		},
		{
			name:    "recording",
			view:    session.ViewState{Phase: session.Recording, ElapsedRecordingMs: 1500, NoVoice: true, Enabled: true},
			want:    []string{"REC 1.5s", "no voice detected", "esc", "cancel"},
			notWant: []string{"Formal"},
		},
		{
			name: "interactive",
			view: session.ViewState{
				Phase: session.Interactive, CurrentModeLabel: "Formal", Modes: modes, ModeIndex: 1,
				Text: "Please purchase milk.", Enabled: true,
			},
			want: []string{"inserted Formal", "Normal", "Summarize", "Please purchase milk.", "accept", "undo"},
		},
		{
			name: "degraded",
			view: session.ViewState{
				Phase: session.Interactive, CurrentModeLabel: "Formal", Modes: modes, ModeIndex: 1,
				Text: "buy milk", Degraded: true, Enabled: true,
			},
			want: []string{"processing failed", "buy milk"},
		},
		{
			name: "failure",
			view: session.ViewState{Phase: session.Cancelled, Failure: "Transcription timed out", Enabled: true},
			want: []string{"Transcription timed out"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := update(newModel(nil, "Caps Lock", "v1.0.0"), viewMsg(tt.view))
			m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
			out := m.View()
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("view missing %q:\n%s", s, out)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("view has %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestLevelSmoothing(t *testing.T) {
	m := newModel(nil, "", "")
	m, _ = update(m, viewMsg(session.ViewState{Phase: session.Recording, Level: 0.1}))
	if m.level <= 0 || m.level >= 0.1 {
		t.Errorf("level = %v, want between 0 and 0.1", m.level)
	}
	m, _ = update(m, viewMsg(session.ViewState{Phase: session.Transcribing, Level: 0.1}))
	if m.level != 0 {
		t.Errorf("level after recording = %v", m.level)
	}
}

func TestLevelBar(t *testing.T) {
	tests := []struct {
		level      float64
		full, none int
	}{
		{0, 0, 10},
		{1, 10, 0},
		{-1, 0, 10},
		{0.5 / levelGain, 5, 5},
	}
	for _, tt := range tests {
		bar := levelBar(tt.level, 10)
		if got := strings.Count(bar, "█"); got != tt.full {
			t.Errorf("levelBar(%v) full = %d, want %d", tt.level, got, tt.full)
		}
		if got := strings.Count(bar, "░"); got != tt.none {
			t.Errorf("levelBar(%v) empty = %d, want %d", tt.level, got, tt.none)
		}
	}
}

func TestLogSkipsRepeats(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)
	l.OnStateChange(session.ViewState{Phase: session.Recording, ElapsedRecordingMs: 100, Enabled: true})
	l.OnStateChange(session.ViewState{Phase: session.Recording, ElapsedRecordingMs: 200, Level: 0.3, Enabled: true})
	l.OnStateChange(session.ViewState{Phase: session.Interactive, CurrentModeLabel: "Normal", Text: "buy milk", Enabled: true})
	l.OnStateChange(session.ViewState{Phase: session.Cancelled, Failure: "No speech detected", Enabled: true})

	want := []string{
		"recording",
		`interactive mode="Normal" text="buy milk"`,
		`cancelled failure="No speech detected"`,
	}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !slices.Equal(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestCue(t *testing.T) {
	var played []beep.Cue
	c := &Cue{play: func(b beep.Cue) { played = append(played, b) }}
	for _, v := range []session.ViewState{
		{Phase: session.Idle},
		{Phase: session.Recording},
		{Phase: session.Recording, ElapsedRecordingMs: 100},
		{Phase: session.Transcribing},
		{Phase: session.Processing},
		{Phase: session.Interactive},
		{Phase: session.Accepted},
		{Phase: session.Recording},
		{Phase: session.Cancelled, Failure: "Microphone unavailable"},
		{Phase: session.Cancelled, Failure: "Microphone unavailable"},
	} {
		c.OnStateChange(v)
	}
	want := []beep.Cue{beep.Start, beep.Stop, beep.Start, beep.Error}
	if !slices.Equal(played, want) {
		t.Errorf("played = %v, want %v", played, want)
	}
}

func TestFanout(t *testing.T) {
	var a, b []session.State
	f := Fanout{
		session.PresenterFunc(func(v session.ViewState) { a = append(a, v.Phase) }),
		session.PresenterFunc(func(v session.ViewState) { b = append(b, v.Phase) }),
	}
	f.OnStateChange(session.ViewState{Phase: session.Recording})
	f.OnStateChange(session.ViewState{Phase: session.Idle})
	want := []session.State{session.Recording, session.Idle}
	if !slices.Equal(a, want) || !slices.Equal(b, want) {
		t.Errorf("a = %v, b = %v", a, b)
	}
}

func TestGrabArmsKeysPerView(t *testing.T) {
	all := []hotkey.OverlayKey{hotkey.Tab, hotkey.ShiftTab, hotkey.Enter, hotkey.Esc}
	tests := []struct {
		name string
		view session.ViewState
		want []hotkey.OverlayKey
	}{
		{"idle", session.ViewState{Phase: session.Idle}, nil},
		{"recording", session.ViewState{Phase: session.Recording}, []hotkey.OverlayKey{hotkey.Esc}},
		{"first processing", session.ViewState{Phase: session.Processing}, []hotkey.OverlayKey{hotkey.Esc}},
		{"rerun", session.ViewState{Phase: session.Processing, Rerun: true}, []hotkey.OverlayKey{hotkey.Tab, hotkey.ShiftTab, hotkey.Esc}},
		{"interactive", session.ViewState{Phase: session.Interactive}, all},
		{"accepted", session.ViewState{Phase: session.Accepted}, nil},
		{"cancelled", session.ViewState{Phase: session.Cancelled}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := hotkey.NewFakeGrabber()
			p := NewGrab(g, &keyLog{})
			p.OnStateChange(session.ViewState{Phase: session.Interactive})
			p.OnStateChange(tt.view)
			if got := g.Armed(); !slices.Equal(got, tt.want) {
				t.Errorf("armed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGrabSkipsUnchangedViews(t *testing.T) {
	g := hotkey.NewFakeGrabber()
	p := NewGrab(g, &keyLog{})
	for range 3 {
		p.OnStateChange(session.ViewState{Phase: session.Recording})
	}
	p.OnStateChange(session.ViewState{Phase: session.Transcribing})
	if g.Arms() != 1 {
		t.Errorf("Arm called %d times", g.Arms())
	}
}

func TestGrabForwardsKeys(t *testing.T) {
	g := hotkey.NewFakeGrabber()
	got := make(chan session.Key, 4)
	p := NewGrab(g, KeysFunc(func(k session.Key) { got <- k }))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	p.OnStateChange(session.ViewState{Phase: session.Interactive})
	for _, k := range []hotkey.OverlayKey{hotkey.ShiftTab, hotkey.Enter} {
		if !g.Press(k) {
			t.Fatalf("%v not armed", k)
		}
	}
	for _, want := range []session.Key{session.KeyShiftTab, session.KeyEnter} {
		select {
		case k := <-got:
			if k != want {
				t.Errorf("key = %v, want %v", k, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %v", want)
		}
	}
	cancel()
	<-done
}
