package inject

import (
	"errors"
	"strings"
	"sync"

	"github.com/rivo/uniseg"
)

var ErrFakeTarget = errors.New("fake target rejected input")

// FakeTarget is an in-memory text field with a clipboard. It implements
// Keyboard and Clipboard so injections can be checked against the
// resulting buffer.
type FakeTarget struct {
	mu sync.Mutex

	clusters []string
	caret    int
	anchor   int // selection anchor; equal to caret when nothing is selected

	clip string

	// PasteOnly makes TypeText report ErrUnsupported.
	PasteOnly bool
	// FailTyping makes TypeText fail outright.
	FailTyping bool
	// NoClipboard makes Read fail.
	NoClipboard bool
	// FailSelect makes SelectLeft fail.
	FailSelect bool

	Keys []string
}

func NewFakeTarget(text string) *FakeTarget {
	t := &FakeTarget{}
	t.SetText(text, -1, -1)
	return t
}

func split(text string) []string {
	var out []string
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

// SetText replaces the buffer and selects clusters [start, end). A
// negative start puts the caret at the end with no selection.
func (t *FakeTarget) SetText(text string, start, end int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clusters = split(text)
	if start < 0 {
		t.caret = len(t.clusters)
		t.anchor = t.caret
		return
	}
	t.anchor, t.caret = start, end
}

func (t *FakeTarget) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.clusters, "")
}

func (t *FakeTarget) Selected() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lo, hi := t.span()
	return strings.Join(t.clusters[lo:hi], "")
}

func (t *FakeTarget) Caret() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.caret
}

// Sent lists the keys received so far.
func (t *FakeTarget) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.Keys...)
}

func (t *FakeTarget) Clipboard() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clip
}

func (t *FakeTarget) SetClipboard(s string) {
	t.mu.Lock()
	t.clip = s
	t.mu.Unlock()
}

func (t *FakeTarget) span() (int, int) {
	if t.anchor < t.caret {
		return t.anchor, t.caret
	}
	return t.caret, t.anchor
}

func (t *FakeTarget) insert(text string) {
	lo, hi := t.span()
	ins := split(text)
	out := make([]string, 0, len(t.clusters)-(hi-lo)+len(ins))
	out = append(out, t.clusters[:lo]...)
	out = append(out, ins...)
	out = append(out, t.clusters[hi:]...)
	t.clusters = out
	t.caret = lo + len(ins)
	t.anchor = t.caret
}

func (t *FakeTarget) TypeText(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Keys = append(t.Keys, "type")
	if t.FailTyping {
		return ErrFakeTarget
	}
	if t.PasteOnly {
		return ErrUnsupported
	}
	t.insert(text)
	return nil
}

func (t *FakeTarget) Paste() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Keys = append(t.Keys, "paste")
	t.insert(t.clip)
	return nil
}

func (t *FakeTarget) Copy() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Keys = append(t.Keys, "copy")
	lo, hi := t.span()
	if lo != hi {
		t.clip = strings.Join(t.clusters[lo:hi], "")
	}
	return nil
}

func (t *FakeTarget) SelectLeft(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Keys = append(t.Keys, "select")
	if t.FailSelect {
		return ErrFakeTarget
	}
	t.caret = max(t.caret-n, 0)
	return nil
}

// Backspace removes the selection, or n clusters left of the caret.
func (t *FakeTarget) Backspace(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Keys = append(t.Keys, "backspace")
	for range n {
		lo, hi := t.span()
		if lo == hi {
			if lo == 0 {
				break
			}
			lo--
		}
		t.clusters = append(t.clusters[:lo:lo], t.clusters[hi:]...)
		t.caret, t.anchor = lo, lo
	}
	return nil
}

func (t *FakeTarget) Delete() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Keys = append(t.Keys, "delete")
	lo, hi := t.span()
	if lo == hi {
		if hi == len(t.clusters) {
			return nil
		}
		hi++
	}
	t.clusters = append(t.clusters[:lo:lo], t.clusters[hi:]...)
	t.caret, t.anchor = lo, lo
	return nil
}

func (t *FakeTarget) CollapseRight() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Keys = append(t.Keys, "right")
	lo, hi := t.span()
	if lo == hi {
		hi = min(hi+1, len(t.clusters))
	}
	t.caret, t.anchor = hi, hi
	return nil
}

func (t *FakeTarget) Read() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.NoClipboard {
		return "", ErrUnsupported
	}
	return t.clip, nil
}

func (t *FakeTarget) Write(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clip = text
	return nil
}
