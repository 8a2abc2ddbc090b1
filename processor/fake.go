package processor

import (
	"context"
	"sync"
	"time"

	"dictate/mode"
)

// Fake answers Process from a per-mode table. A mode missing from the
// table gets "[label] text". Delays and failures can be set per mode.
type Fake struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	delays  map[string]time.Duration
	gates   map[string]chan struct{}
	calls   []string
	active  int
	peak    int
}

func NewFake() *Fake {
	return &Fake{
		replies: map[string]string{},
		errs:    map[string]error{},
		delays:  map[string]time.Duration{},
		gates:   map[string]chan struct{}{},
	}
}

// Reply sets the answer for the mode with this label.
func (f *Fake) Reply(label, text string) {
	f.mu.Lock()
	f.replies[label] = text
	f.mu.Unlock()
}

func (f *Fake) Fail(label string, err error) {
	f.mu.Lock()
	f.errs[label] = err
	f.mu.Unlock()
}

func (f *Fake) Delay(label string, d time.Duration) {
	f.mu.Lock()
	f.delays[label] = d
	f.mu.Unlock()
}

// Hold makes calls for label block until Release.
func (f *Fake) Hold(label string) {
	f.mu.Lock()
	f.gates[label] = make(chan struct{})
	f.mu.Unlock()
}

func (f *Fake) Release(label string) {
	f.mu.Lock()
	if g, ok := f.gates[label]; ok {
		close(g)
		delete(f.gates, label)
	}
	f.mu.Unlock()
}

// Calls lists the labels Process was called with, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// MaxConcurrent is the most calls that were ever in flight at once.
func (f *Fake) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *Fake) Process(ctx context.Context, text string, m mode.Mode) (string, error) {
	label := m.Label()
	f.mu.Lock()
	f.calls = append(f.calls, label)
	f.active++
	f.peak = max(f.peak, f.active)
	reply, ok := f.replies[label]
	if !ok {
		reply = "[" + label + "] " + text
	}
	err, delay, gate := f.errs[label], f.delays[label], f.gates[label]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}
