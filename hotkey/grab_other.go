//go:build darwin || windows

package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

// xGrabber registers each armed overlay key as a system hotkey, which
// keeps it from reaching the focused application.
type xGrabber struct {
	keys chan OverlayKey

	mu     sync.Mutex
	active map[OverlayKey]*xHotkey
}

func NewGrabber() (KeyGrabber, error) {
	return &xGrabber{
		keys:   make(chan OverlayKey, 8),
		active: map[OverlayKey]*xHotkey{},
	}, nil
}

func (g *xGrabber) Keys() <-chan OverlayKey {
	return g.keys
}

func (g *xGrabber) Arm(keys ...OverlayKey) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	want := map[OverlayKey]bool{}
	for _, k := range keys {
		want[k] = true
	}
	for k, hk := range g.active {
		if !want[k] {
			hk.Unregister()
			delete(g.active, k)
		}
	}
	var errs []error
	for _, k := range keys {
		if g.active[k] != nil {
			continue
		}
		spec, ok := overlayKeys[k]
		hk := newXHotkey(k.String(), ok, spec.mods, spec.key)
		if err := hk.Register(); err != nil {
			errs = append(errs, fmt.Errorf("register %v: %w", k, err))
			continue
		}
		g.active[k] = hk
		go g.forward(k, hk)
	}
	return errors.Join(errs...)
}

func (g *xGrabber) forward(k OverlayKey, hk *xHotkey) {
	for {
		select {
		case <-hk.Keydown():
			select {
			case g.keys <- k:
			default:
			}
		case <-hk.Keyup():
		case <-hk.stop:
			return
		}
	}
}

func (g *xGrabber) Close() {
	g.Arm()
}

type keySpec struct {
	mods []hotkey.Modifier
	key  hotkey.Key
}
