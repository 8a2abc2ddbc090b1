package caret

import (
	"context"
	"sync"
	"time"
)

// FakeLocator returns queued anchors in order and then repeats the last
// one. Err, when set, is returned with an unlocatable anchor.
type FakeLocator struct {
	mu      sync.Mutex
	anchors []Anchor
	err     error
	calls   int
}

func NewFakeLocator(anchors ...Anchor) *FakeLocator {
	return &FakeLocator{anchors: anchors}
}

func (f *FakeLocator) Push(a ...Anchor) {
	f.mu.Lock()
	f.anchors = append(f.anchors, a...)
	f.mu.Unlock()
}

// Set replaces the queued anchors.
func (f *FakeLocator) Set(a ...Anchor) {
	f.mu.Lock()
	f.anchors = a
	f.mu.Unlock()
}

func (f *FakeLocator) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *FakeLocator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeLocator) CurrentAnchor(ctx context.Context) (Anchor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return Anchor{}, err
	}
	if f.err != nil {
		return Anchor{At: time.Now()}, f.err
	}
	if len(f.anchors) == 0 {
		return Anchor{At: time.Now()}, ErrNoTarget
	}
	a := f.anchors[0]
	if len(f.anchors) > 1 {
		f.anchors = f.anchors[1:]
	}
	a.At = time.Now()
	return a, nil
}
