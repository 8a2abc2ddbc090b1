//go:build darwin || windows

package inject

import (
	"sync"

	"github.com/micmonay/keybd_event"
)

// KeybdKeyboard sends chords through keybd_event. It cannot type
// arbitrary characters, so TypeText always defers to paste.
type KeybdKeyboard struct {
	once sync.Once
	err  error
	kb   keybd_event.KeyBonding
	mu   sync.Mutex
}

func NewKeyboard() *KeybdKeyboard {
	return &KeybdKeyboard{}
}

func (k *KeybdKeyboard) init() error {
	k.once.Do(func() {
		k.kb, k.err = keybd_event.NewKeyBonding()
	})
	return k.err
}

type mods struct {
	shift, shortcut bool
}

func (k *KeybdKeyboard) press(m mods, key int, n int) error {
	if err := k.init(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kb.HasSHIFT(m.shift)
	setShortcut(&k.kb, m.shortcut)
	k.kb.SetKeys(key)
	for range n {
		if err := k.kb.Launching(); err != nil {
			return err
		}
	}
	return nil
}

func (k *KeybdKeyboard) TypeText(string) error { return ErrUnsupported }

func (k *KeybdKeyboard) Paste() error {
	return k.press(mods{shortcut: true}, keybd_event.VK_V, 1)
}

func (k *KeybdKeyboard) Copy() error {
	return k.press(mods{shortcut: true}, keybd_event.VK_C, 1)
}

func (k *KeybdKeyboard) SelectLeft(n int) error {
	if n <= 0 {
		return nil
	}
	return k.press(mods{shift: true}, keybd_event.VK_LEFT, n)
}

func (k *KeybdKeyboard) Delete() error {
	return k.press(mods{}, keybd_event.VK_DELETE, 1)
}

func (k *KeybdKeyboard) Backspace(n int) error {
	if n <= 0 {
		return nil
	}
	return k.press(mods{}, keyBackspace, n)
}

func (k *KeybdKeyboard) CollapseRight() error {
	return k.press(mods{}, keybd_event.VK_RIGHT, 1)
}

func (k *KeybdKeyboard) Close() error { return nil }

// Probe checks that the key event binding initialises.
func (k *KeybdKeyboard) Probe() (string, error) {
	if err := k.init(); err != nil {
		return "", err
	}
	return "keyboard event binding OK", nil
}
