//go:build linux

package inject

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"dictate/uinput"
)

// key codes from linux/input-event-codes.h
const (
	keyBackspace  = 14
	keyLeftCtrl   = 29
	keyLeftShift  = 42
	keyRightShift = 54
	keyC          = 46
	keyV          = 47
	keyLeft       = 105
	keyRight      = 106
	keyDelete     = 111
)

const (
	deviceName = "dictate-inject"
	tapDelay   = 5 * time.Millisecond
)

// UinputKeyboard drives a virtual keyboard created through /dev/uinput.
// It only types characters present on a US layout.
type UinputKeyboard struct {
	once sync.Once
	err  error
	dev  *uinput.Device
	mu   sync.Mutex
}

func NewKeyboard() *UinputKeyboard {
	return &UinputKeyboard{}
}

func (k *UinputKeyboard) init() error {
	k.once.Do(func() {
		k.dev, k.err = uinput.Create(deviceName, 0x5679)
		if k.err != nil {
			return
		}
		// compositor needs a moment to pick up the new device
		time.Sleep(200 * time.Millisecond)
	})
	return k.err
}

func (k *UinputKeyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.dev == nil {
		return nil
	}
	err := k.dev.Close()
	k.dev = nil
	k.err = os.ErrClosed
	return err
}

func (k *UinputKeyboard) write(code uint16, value int32) error {
	return k.dev.Key(code, value)
}

func (k *UinputKeyboard) tap(code uint16) error {
	if err := k.write(code, 1); err != nil {
		return err
	}
	return k.write(code, 0)
}

// chord holds mod while tapping code n times.
func (k *UinputKeyboard) chord(mod, code uint16, n int) error {
	if err := k.init(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if mod != 0 {
		if err := k.write(mod, 1); err != nil {
			return err
		}
		time.Sleep(tapDelay)
		defer k.write(mod, 0)
	}
	for range n {
		if err := k.tap(code); err != nil {
			return err
		}
	}
	time.Sleep(tapDelay)
	return nil
}

func (k *UinputKeyboard) Paste() error         { return k.chord(keyLeftCtrl, keyV, 1) }
func (k *UinputKeyboard) Copy() error          { return k.chord(keyLeftCtrl, keyC, 1) }
func (k *UinputKeyboard) Delete() error        { return k.chord(0, keyDelete, 1) }
func (k *UinputKeyboard) CollapseRight() error { return k.chord(0, keyRight, 1) }

func (k *UinputKeyboard) Backspace(n int) error {
	if n <= 0 {
		return nil
	}
	return k.chord(0, keyBackspace, n)
}

func (k *UinputKeyboard) SelectLeft(n int) error {
	if n <= 0 {
		return nil
	}
	return k.chord(keyLeftShift, keyLeft, n)
}

// TypeText sends text as keystrokes. Text with any character outside the
// keymap is rejected whole with ErrUnsupported.
func (k *UinputKeyboard) TypeText(text string) error {
	if !Typeable(text) {
		return ErrUnsupported
	}
	if err := k.init(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := 0; i < len(text); i++ {
		code, shift, _ := charToKey(text[i])
		if shift {
			if err := k.write(keyLeftShift, 1); err != nil {
				return err
			}
		}
		if err := k.tap(code); err != nil {
			return err
		}
		if shift {
			if err := k.write(keyLeftShift, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

// Probe creates the virtual keyboard, taps right shift and reads the
// events back from the kernel input layer.
func (k *UinputKeyboard) Probe() (string, error) {
	if err := k.init(); err != nil {
		return "", fmt.Errorf("uinput init: %w", err)
	}
	evdevPath, err := uinput.FindEvdev(deviceName)
	if err != nil {
		return "", err
	}
	evdev, err := os.Open(evdevPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", evdevPath, err)
	}
	defer evdev.Close()

	if err := k.chord(0, keyRightShift, 1); err != nil {
		return "", fmt.Errorf("key send: %w", err)
	}

	type result struct {
		seen bool
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, uinput.EventSize*32)
		n, err := evdev.Read(buf)
		if err != nil {
			ch <- result{err: err}
			return
		}
		var r result
		for i := 0; i+uinput.EventSize <= n; i += uinput.EventSize {
			if binary.LittleEndian.Uint16(buf[i+16:]) == uinput.EvKey &&
				binary.LittleEndian.Uint16(buf[i+18:]) == keyRightShift {
				r.seen = true
			}
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading events: %w", r.err)
		}
		if !r.seen {
			return "", errors.New("key event not delivered")
		}
		return "keystroke verified via " + evdevPath, nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for keystroke events")
	}
}
