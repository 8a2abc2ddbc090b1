package hotkey

import (
	"errors"
	"testing"
	"time"
)

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		in      string
		want    Trigger
		wantErr bool
	}{
		{"caps_lock", CapsLock, false},
		{"CapsLock", CapsLock, false},
		{"Caps Lock", CapsLock, false},
		{"right_alt", RightAlt, false},
		{"alt_r", RightAlt, false},
		{" RightAlt ", RightAlt, false},
		{"F1", F1, false},
		{"space", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTrigger(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownTrigger) {
					t.Fatalf("err = %v, want ErrUnknownTrigger", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTriggerStringRoundTrip(t *testing.T) {
	for _, tr := range []Trigger{CapsLock, RightAlt, F1} {
		got, err := ParseTrigger(tr.String())
		if err != nil || got != tr {
			t.Errorf("ParseTrigger(%q) = %v, %v", tr.String(), got, err)
		}
	}
}

func startListener(t *testing.T, tr Trigger) (*Listener, *FakeFactory) {
	t.Helper()
	ff := &FakeFactory{}
	l := NewListener(ff.New)
	if err := l.Start(tr); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(l.Close)
	return l, ff
}

func waitEdge(t *testing.T, l *Listener, want EdgeKind) Edge {
	t.Helper()
	select {
	case e := <-l.Edges():
		if e.Kind != want {
			t.Fatalf("edge = %v, want %v", e.Kind, want)
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %v", want)
	}
	return Edge{}
}

func expectNoEdge(t *testing.T, l *Listener) {
	t.Helper()
	select {
	case e := <-l.Edges():
		t.Fatalf("unexpected edge %v", e.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitDrained(t *testing.T, fk *FakeHotkey) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(fk.keydown) > 0 || len(fk.keyup) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("fake hotkey never drained")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestListenerPressRelease(t *testing.T) {
	l, ff := startListener(t, CapsLock)
	fk := ff.Active()

	fk.SimKeydown()
	e := waitEdge(t, l, Pressed)
	if e.Trigger != CapsLock {
		t.Errorf("trigger = %v", e.Trigger)
	}
	fk.SimKeyup()
	waitEdge(t, l, Released)
	expectNoEdge(t, l)
}

func TestListenerQuickTapKeepsOrder(t *testing.T) {
	l, ff := startListener(t, F1)
	fk := ff.Active()

	for range 20 {
		fk.SimKeydown()
		fk.SimKeyup()
		waitEdge(t, l, Pressed)
		waitEdge(t, l, Released)
	}
}

func TestListenerSuppressesRepeat(t *testing.T) {
	l, ff := startListener(t, CapsLock)
	fk := ff.Active()

	fk.SimKeydown()
	waitEdge(t, l, Pressed)
	fk.SimKeydown()
	fk.SimKeydown()
	waitDrained(t, fk)
	expectNoEdge(t, l)

	fk.SimKeyup()
	waitEdge(t, l, Released)
}

func TestListenerReleaseWithoutPress(t *testing.T) {
	l, ff := startListener(t, CapsLock)
	fk := ff.Active()

	fk.SimKeyup()
	waitDrained(t, fk)
	expectNoEdge(t, l)
}

func TestReconfigureSwapsHook(t *testing.T) {
	l, ff := startListener(t, CapsLock)
	old := ff.Active()

	if err := l.Reconfigure(F1); err != nil {
		t.Fatal(err)
	}
	if old.Registered() {
		t.Error("old hotkey still registered")
	}
	cur := ff.Active()
	if cur == nil || cur.Trigger != F1 {
		t.Fatalf("active = %+v, want F1", cur)
	}
	if l.Trigger() != F1 {
		t.Errorf("Trigger() = %v", l.Trigger())
	}

	old.SimKeydown()
	expectNoEdge(t, l)

	cur.SimKeydown()
	if e := waitEdge(t, l, Pressed); e.Trigger != F1 {
		t.Errorf("edge trigger = %v", e.Trigger)
	}
}

func TestReconfigureReleasesHeldKey(t *testing.T) {
	l, ff := startListener(t, CapsLock)
	ff.Active().SimKeydown()
	waitEdge(t, l, Pressed)

	if err := l.Reconfigure(RightAlt); err != nil {
		t.Fatal(err)
	}
	e := waitEdge(t, l, Released)
	if e.Trigger != CapsLock {
		t.Errorf("synthetic release trigger = %v", e.Trigger)
	}

	// next press on the new key is a fresh edge
	ff.Active().SimKeydown()
	waitEdge(t, l, Pressed)
}

func TestReconfigureFailureRestoresOld(t *testing.T) {
	l, ff := startListener(t, CapsLock)
	ff.FailFor(F1)

	if err := l.Reconfigure(F1); !errors.Is(err, ErrFakeRegister) {
		t.Fatalf("err = %v, want ErrFakeRegister", err)
	}
	if l.Trigger() != CapsLock {
		t.Errorf("Trigger() = %v, want caps_lock", l.Trigger())
	}
	cur := ff.Active()
	if cur == nil || cur.Trigger != CapsLock {
		t.Fatalf("active = %+v, want restored caps_lock", cur)
	}
	cur.SimKeydown()
	waitEdge(t, l, Pressed)
}

func TestReconfigureSameTriggerNoop(t *testing.T) {
	l, ff := startListener(t, CapsLock)
	if err := l.Reconfigure(CapsLock); err != nil {
		t.Fatal(err)
	}
	if n := len(ff.Created()); n != 1 {
		t.Errorf("created %d hotkeys, want 1", n)
	}
}

func TestCloseEndsEdges(t *testing.T) {
	ff := &FakeFactory{}
	l := NewListener(ff.New)
	if err := l.Start(CapsLock); err != nil {
		t.Fatal(err)
	}
	fk := ff.Active()
	l.Close()
	l.Close()

	if fk.Registered() {
		t.Error("hotkey still registered after Close")
	}
	if _, ok := <-l.Edges(); ok {
		t.Error("edges channel not closed")
	}
	if err := l.Reconfigure(F1); !errors.Is(err, ErrClosed) {
		t.Errorf("Reconfigure after Close = %v", err)
	}
}

func TestStartRegisterError(t *testing.T) {
	ff := &FakeFactory{}
	ff.FailFor(RightAlt)
	l := NewListener(ff.New)
	defer l.Close()
	if err := l.Start(RightAlt); !errors.Is(err, ErrFakeRegister) {
		t.Fatalf("err = %v", err)
	}
}

func eventually(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", desc)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestReconfigureWithFullBufferDoesNotBlock(t *testing.T) {
	l, ff := startListener(t, CapsLock)
	hk := ff.Active()
	for i := 0; len(l.edges) < cap(l.edges); i++ {
		want := len(l.edges) + 1
		if i%2 == 0 {
			hk.SimKeydown()
		} else {
			hk.SimKeyup()
		}
		eventually(t, "edge", func() bool { return len(l.edges) == want })
	}
	// this press is held with nowhere to go
	hk.SimKeydown()
	eventually(t, "keydown taken", func() bool { return len(hk.keydown) == 0 })

	done := make(chan error, 1)
	go func() { done <- l.Reconfigure(F1) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reconfigure blocked on a full edge buffer")
	}
	if l.Trigger() != F1 {
		t.Errorf("Trigger() = %v", l.Trigger())
	}
}
