package inject

import "github.com/micmonay/keybd_event"

const keyBackspace = keybd_event.VK_BACKSPACE

func setShortcut(kb *keybd_event.KeyBonding, on bool) {
	kb.HasCTRL(on)
}
