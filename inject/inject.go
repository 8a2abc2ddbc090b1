// Package inject writes text into the focused application as a selected
// span that can later be committed in place or removed again.
package inject

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rivo/uniseg"

	"dictate/caret"
	"dictate/log"
)

var (
	// ErrUnsupported is returned by a Keyboard that cannot synthesise some
	// input. For TypeText the check happens before anything is typed.
	ErrUnsupported = errors.New("input not supported by keyboard")
	ErrBadHandle   = errors.New("injection handle does not belong to this injector")

	// ErrTargetChanged means focus moved to another window since the
	// anchor was taken, or the injected span is no longer selected.
	ErrTargetChanged = errors.New("focus target changed")
)

// Keyboard synthesises key events into whatever has focus.
type Keyboard interface {
	TypeText(text string) error
	Paste() error
	Copy() error
	SelectLeft(n int) error
	Delete() error
	Backspace(n int) error
	CollapseRight() error
}

type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

type Strategy int

const (
	// Auto types when the keyboard can, otherwise pastes.
	Auto Strategy = iota
	Type
	Paste
)

func (s Strategy) String() string {
	switch s {
	case Type:
		return "type"
	case Paste:
		return "paste"
	}
	return "auto"
}

func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "type":
		return Type, nil
	case "paste":
		return Paste, nil
	}
	return Auto, fmt.Errorf("unknown inject strategy %q", s)
}

// verifyTimeout bounds the focus check made before Reverse and Commit.
const verifyTimeout = 500 * time.Millisecond

type Options struct {
	Strategy Strategy
	// Settle is how long to wait after a paste or copy chord before the
	// clipboard is read or restored.
	Settle time.Duration
	// TrackSelection copies the target's selection before injecting so
	// Reverse can put it back, and again before Reverse or Commit to make
	// sure the injected span is still what is selected.
	TrackSelection bool
	// Locator, when set, re-checks the focus target before injecting.
	Locator caret.Locator
}

func DefaultOptions() Options {
	return Options{Strategy: Auto, Settle: 100 * time.Millisecond, TrackSelection: true}
}

// Error wraps a failure talking to the target.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "inject " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

type handleState int

const (
	pending handleState = iota
	committed
	reversed
	// abandoned handles were left alone because the target changed.
	abandoned
)

// Handle refers to one injected span. It is only meaningful to the
// Injector that returned it.
type Handle struct {
	owner    *Injector
	id       uint64
	text     string
	steps    int
	method   Strategy
	anchor   caret.Anchor
	replaced string
	state    handleState
}

func (h *Handle) Text() string { return h.text }

// Method is the strategy that actually delivered the text.
func (h *Handle) Method() Strategy { return h.method }

// Replaced is the selection the injection overwrote, if one was seen.
func (h *Handle) Replaced() string { return h.replaced }

func (h *Handle) Pending() bool { return h != nil && h.state == pending }

type Injector struct {
	kb   Keyboard
	clip Clipboard
	opts Options

	mu  sync.Mutex
	seq uint64
}

func New(kb Keyboard, clip Clipboard, opts Options) *Injector {
	return &Injector{kb: kb, clip: clip, opts: opts}
}

// Steps is how many caret positions text occupies.
func Steps(text string) int {
	return uniseg.GraphemeClusterCount(text)
}

// Inject replaces the target's selection (or inserts at the caret) with
// text and leaves text selected.
func (in *Injector) Inject(ctx context.Context, text string, anchor caret.Anchor) (*Handle, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.validate(ctx, anchor); err != nil {
		return nil, err
	}

	var replaced string
	if in.opts.TrackSelection {
		replaced = in.captureSelection()
	}

	method, err := in.insert(text, anchor)
	if err != nil {
		return nil, err
	}
	steps := Steps(text)
	if err := in.kb.SelectLeft(steps); err != nil {
		in.unwind(steps, replaced, anchor)
		return nil, &Error{Op: "select", Err: err}
	}

	in.seq++
	h := &Handle{
		owner:    in,
		id:       in.seq,
		text:     text,
		steps:    steps,
		method:   method,
		anchor:   anchor,
		replaced: replaced,
	}
	log.Infof("inject: %d steps via %s (replaced %d)", steps, method, Steps(replaced))
	return h, nil
}

// Commit leaves the text in place and drops the selection. It is a no-op
// on a handle that is already committed or reversed.
func (in *Injector) Commit(h *Handle) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := in.check(h); err != nil {
		return err
	}
	if h.state != pending {
		return nil
	}
	if err := in.verify(h); err != nil {
		h.state = abandoned
		return err
	}
	h.state = committed
	if err := in.kb.CollapseRight(); err != nil {
		return &Error{Op: "commit", Err: err}
	}
	return nil
}

// Reverse deletes the injected span and restores whatever selection it
// replaced. It is a no-op on a handle that is already committed or
// reversed. When focus has moved or the span is no longer selected no
// keys are sent, the handle is abandoned and ErrTargetChanged returned.
func (in *Injector) Reverse(h *Handle) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := in.check(h); err != nil {
		return err
	}
	if h.state != pending {
		return nil
	}
	if err := in.verify(h); err != nil {
		h.state = abandoned
		return err
	}
	h.state = reversed
	if h.steps > 0 {
		if err := in.kb.Delete(); err != nil {
			return &Error{Op: "reverse", Err: err}
		}
	}
	if h.replaced == "" {
		return nil
	}
	if _, err := in.insert(h.replaced, h.anchor); err != nil {
		return err
	}
	if err := in.kb.SelectLeft(Steps(h.replaced)); err != nil {
		return &Error{Op: "restore selection", Err: err}
	}
	return nil
}

// validate fails when the anchor's window no longer has focus. A target
// that cannot be located now is given the benefit of the doubt.
func (in *Injector) validate(ctx context.Context, anchor caret.Anchor) error {
	if in.opts.Locator == nil || !anchor.Locatable() {
		return nil
	}
	cur, err := in.opts.Locator.CurrentAnchor(ctx)
	if err != nil {
		return nil
	}
	if !anchor.SameTarget(cur) {
		return &Error{Op: "validate", Err: fmt.Errorf("%w: %q is now %q", ErrTargetChanged, anchor.Title, cur.Title)}
	}
	return nil
}

// verify checks that h's span is still the selection in its anchored
// window. A selection that cannot be read is not held against it.
func (in *Injector) verify(h *Handle) error {
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()
	if err := in.validate(ctx, h.anchor); err != nil {
		return err
	}
	if !in.opts.TrackSelection || h.steps == 0 {
		return nil
	}
	got, ok := in.selection()
	if ok && normalizeNewlines(got) != normalizeNewlines(h.text) {
		log.Warnf("inject: selection changed since injection (%d steps, now %d)", h.steps, Steps(got))
		return &Error{Op: "verify", Err: fmt.Errorf("%w: injected text is no longer selected", ErrTargetChanged)}
	}
	return nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// unwind removes text that was inserted but could not be selected, and
// puts back the selection it replaced.
func (in *Injector) unwind(steps int, replaced string, anchor caret.Anchor) {
	if err := in.kb.Backspace(steps); err != nil {
		log.Warnf("inject: could not remove unselected text: %v", err)
		return
	}
	if replaced == "" {
		return
	}
	if _, err := in.insert(replaced, anchor); err != nil {
		log.Warnf("inject: could not restore replaced text: %v", err)
	}
}

func (in *Injector) check(h *Handle) error {
	if h == nil || h.owner != in {
		return ErrBadHandle
	}
	return nil
}

func (in *Injector) insert(text string, anchor caret.Anchor) (Strategy, error) {
	if text == "" {
		return in.opts.Strategy, nil
	}
	useType := in.opts.Strategy == Type || (in.opts.Strategy == Auto && !anchor.PasteOnly)
	if useType {
		err := in.kb.TypeText(text)
		if err == nil {
			return Type, nil
		}
		if in.opts.Strategy == Type || !errors.Is(err, ErrUnsupported) {
			return Type, &Error{Op: "type", Err: err}
		}
	}
	if err := in.paste(text); err != nil {
		return Paste, err
	}
	return Paste, nil
}

// paste puts text on the clipboard, sends the paste chord and then puts
// the previous clipboard contents back.
func (in *Injector) paste(text string) error {
	if in.clip == nil {
		return &Error{Op: "paste", Err: ErrUnsupported}
	}
	saved, readErr := in.clip.Read()
	if err := in.clip.Write(text); err != nil {
		return &Error{Op: "clipboard write", Err: err}
	}
	if err := in.kb.Paste(); err != nil {
		return &Error{Op: "paste", Err: err}
	}
	in.settle()
	if readErr == nil {
		if err := in.clip.Write(saved); err != nil {
			log.Warnf("inject: clipboard restore failed: %v", err)
		}
	}
	return nil
}

// captureSelection copies the current selection through the clipboard,
// or returns "" when it cannot.
func (in *Injector) captureSelection() string {
	got, _ := in.selection()
	return got
}

// selection reads the current selection through the clipboard. A
// sentinel detects an empty selection, where most apps leave the
// clipboard untouched. ok is false when the clipboard could not be used.
func (in *Injector) selection() (text string, ok bool) {
	if in.clip == nil {
		return "", false
	}
	saved, err := in.clip.Read()
	if err != nil {
		return "", false
	}
	defer in.clip.Write(saved)

	sentinel := fmt.Sprintf("\x00dictate-%d\x00", time.Now().UnixNano())
	if err := in.clip.Write(sentinel); err != nil {
		return "", false
	}
	if err := in.kb.Copy(); err != nil {
		return "", false
	}
	in.settle()
	got, err := in.clip.Read()
	if err != nil {
		return "", false
	}
	if got == sentinel {
		return "", true
	}
	return got, true
}

func (in *Injector) settle() {
	if in.opts.Settle > 0 {
		time.Sleep(in.opts.Settle)
	}
}
