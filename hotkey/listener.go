package hotkey

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"dictate/log"
)

type EdgeKind int

const (
	Pressed EdgeKind = iota + 1
	Released
)

func (k EdgeKind) String() string {
	switch k {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	}
	return "unknown"
}

// Edge is one press or release of the trigger key.
type Edge struct {
	Kind    EdgeKind
	Trigger Trigger
	At      time.Time
}

// Factory builds an unregistered Hotkey for a trigger. New is the platform
// factory.
type Factory func(Trigger) Hotkey

var ErrClosed = errors.New("hotkey listener closed")

// Listener turns a platform Hotkey into an ordered stream of edges with
// exactly one Pressed per physical press and one Released per release.
// A single pump goroutine owns the registered hotkey at any time, so the
// platform callback never waits on the consumer.
type Listener struct {
	factory Factory
	edges   chan Edge

	mu      sync.Mutex
	trigger Trigger
	hk      Hotkey
	stop    chan struct{}
	done    chan struct{}
	closed  bool

	// down is only touched by the running pump, or under mu after that
	// pump has exited.
	down bool
}

func NewListener(factory Factory) *Listener {
	if factory == nil {
		factory = New
	}
	return &Listener{
		factory: factory,
		edges:   make(chan Edge, 16),
	}
}

// Edges is closed by Close.
func (l *Listener) Edges() <-chan Edge {
	return l.edges
}

func (l *Listener) Trigger() Trigger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trigger
}

func (l *Listener) Start(t Trigger) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.hk != nil {
		return fmt.Errorf("hotkey listener already started")
	}
	hk := l.factory(t)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register %s: %w", t.Label(), err)
	}
	l.attach(t, hk)
	return nil
}

// Reconfigure swaps the trigger key. The old hook is stopped and
// unregistered immediately before the new one is registered. If the new
// key cannot be registered the old key is restored and the error returned.
// A key held across the swap is reported as Released.
func (l *Listener) Reconfigure(t Trigger) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.hk == nil {
		return fmt.Errorf("hotkey listener not started")
	}
	if t == l.trigger {
		return nil
	}

	old := l.trigger
	l.detach()

	if l.down {
		l.down = false
		select {
		case l.edges <- Edge{Kind: Released, Trigger: old, At: time.Now()}:
		default:
			log.Warnf("hotkey: edge buffer full, dropped release of %s", old.Label())
		}
	}

	hk := l.factory(t)
	if err := hk.Register(); err != nil {
		restore := l.factory(old)
		if rerr := restore.Register(); rerr != nil {
			return errors.Join(fmt.Errorf("register %s: %w", t.Label(), err),
				fmt.Errorf("restore %s: %w", old.Label(), rerr))
		}
		l.attach(old, restore)
		return fmt.Errorf("register %s: %w", t.Label(), err)
	}
	l.attach(t, hk)
	return nil
}

func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.hk != nil {
		l.detach()
	}
	close(l.edges)
}

// attach and detach run with mu held.
func (l *Listener) attach(t Trigger, hk Hotkey) {
	l.trigger = t
	l.hk = hk
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.pump(t, hk, l.stop, l.done)
}

func (l *Listener) detach() {
	close(l.stop)
	<-l.done
	l.hk.Unregister()
	l.hk = nil
}

func (l *Listener) pump(t Trigger, hk Hotkey, stop, done chan struct{}) {
	defer close(done)
	for {
		var e Edge
		select {
		case <-hk.Keydown():
			if l.down {
				continue
			}
			l.down = true
			e = Edge{Kind: Pressed, Trigger: t, At: time.Now()}
		case <-hk.Keyup():
			// Both channels can be ready after a quick tap; the press came first.
			select {
			case <-hk.Keydown():
				if !l.down {
					l.down = true
					if !l.send(Edge{Kind: Pressed, Trigger: t, At: time.Now()}, stop) {
						return
					}
				}
			default:
			}
			if !l.down {
				continue
			}
			l.down = false
			e = Edge{Kind: Released, Trigger: t, At: time.Now()}
		case <-stop:
			return
		}
		if !l.send(e, stop) {
			return
		}
	}
}

func (l *Listener) send(e Edge, stop chan struct{}) bool {
	select {
	case l.edges <- e:
		return true
	case <-stop:
		return false
	}
}
