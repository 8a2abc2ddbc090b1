//go:build darwin || windows

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

type xHotkey struct {
	name    string
	known   bool
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func New(t Trigger) Hotkey {
	key, ok := platformKeys[t]
	return newXHotkey(t.String(), ok, nil, key)
}

func newXHotkey(name string, known bool, mods []hotkey.Modifier, key hotkey.Key) *xHotkey {
	return &xHotkey{
		name:    name,
		known:   known,
		hk:      hotkey.New(mods, key),
		keydown: make(chan struct{}, 4),
		keyup:   make(chan struct{}, 4),
		stop:    make(chan struct{}),
	}
}

func (h *xHotkey) Register() error {
	if !h.known {
		return fmt.Errorf("%w: %s not available on this platform", ErrUnknownTrigger, h.name)
	}
	if err := h.hk.Register(); err != nil {
		return err
	}
	go h.forward(h.hk.Keydown(), h.keydown)
	go h.forward(h.hk.Keyup(), h.keyup)
	return nil
}

func (h *xHotkey) forward(src <-chan hotkey.Event, dst chan struct{}) {
	for {
		select {
		case <-src:
		case <-h.stop:
			return
		}
		select {
		case dst <- struct{}{}:
		case <-h.stop:
			return
		}
	}
}

func (h *xHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.hk.Unregister()
	})
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func Diagnose(t Trigger) (string, error) {
	if _, ok := platformKeys[t]; !ok {
		return "", fmt.Errorf("%s is not supported on this platform", t.Label())
	}
	return fmt.Sprintf("hotkey support available (%s)", t.Label()), nil
}
