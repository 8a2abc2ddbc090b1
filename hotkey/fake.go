package hotkey

import (
	"errors"
	"slices"
	"sync"
)

// FakeHotkey is driven by SimKeydown/SimKeyup. Unlike a real key it
// forwards every call, so repeated SimKeydown behaves like key repeat.
type FakeHotkey struct {
	Trigger     Trigger
	RegisterErr error

	keydown chan struct{}
	keyup   chan struct{}

	mu         sync.Mutex
	registered bool
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown: make(chan struct{}, 16),
		keyup:   make(chan struct{}, 16),
	}
}

func (f *FakeHotkey) Register() error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.mu.Lock()
	f.registered = true
	f.mu.Unlock()
	return nil
}

func (f *FakeHotkey) Unregister() {
	f.mu.Lock()
	f.registered = false
	f.mu.Unlock()
}

func (f *FakeHotkey) Registered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered
}

func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

func (f *FakeHotkey) SimKeydown() { f.keydown <- struct{}{} }
func (f *FakeHotkey) SimKeyup()   { f.keyup <- struct{}{} }

// FakeFactory hands out FakeHotkeys and remembers them.
type FakeFactory struct {
	mu      sync.Mutex
	created []*FakeHotkey
	fail    map[Trigger]error
}

var ErrFakeRegister = errors.New("fake register failure")

// FailFor makes the next hotkeys built for t fail to register.
func (f *FakeFactory) FailFor(t Trigger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = map[Trigger]error{}
	}
	f.fail[t] = ErrFakeRegister
}

func (f *FakeFactory) New(t Trigger) Hotkey {
	f.mu.Lock()
	defer f.mu.Unlock()
	hk := NewFake()
	hk.Trigger = t
	hk.RegisterErr = f.fail[t]
	f.created = append(f.created, hk)
	return hk
}

// Active returns the most recently built hotkey that is registered.
func (f *FakeFactory) Active() *FakeHotkey {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.created) - 1; i >= 0; i-- {
		if f.created[i].Registered() {
			return f.created[i]
		}
	}
	return nil
}

func (f *FakeFactory) Created() []*FakeHotkey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeHotkey(nil), f.created...)
}

// FakeGrabber records what is armed. Press reports a key only while it is
// armed, the way a real grab only swallows armed keys.
type FakeGrabber struct {
	keys chan OverlayKey

	mu     sync.Mutex
	armed  []OverlayKey
	arms   int
	closed bool
}

func NewFakeGrabber() *FakeGrabber {
	return &FakeGrabber{keys: make(chan OverlayKey, 16)}
}

func (g *FakeGrabber) Arm(keys ...OverlayKey) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = append([]OverlayKey(nil), keys...)
	g.arms++
	return nil
}

func (g *FakeGrabber) Keys() <-chan OverlayKey { return g.keys }

func (g *FakeGrabber) Close() {
	g.mu.Lock()
	g.closed = true
	g.armed = nil
	g.mu.Unlock()
}

// Armed returns the keys currently captured.
func (g *FakeGrabber) Armed() []OverlayKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]OverlayKey(nil), g.armed...)
}

// Arms counts Arm calls.
func (g *FakeGrabber) Arms() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.arms
}

// Press reports k if it is armed and tells whether it was.
func (g *FakeGrabber) Press(k OverlayKey) bool {
	g.mu.Lock()
	armed := slices.Contains(g.armed, k)
	g.mu.Unlock()
	if armed {
		g.keys <- k
	}
	return armed
}
