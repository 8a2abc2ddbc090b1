package inject

import "github.com/micmonay/keybd_event"

// Backspace is labelled Delete on Mac keyboards.
const keyBackspace = keybd_event.VK_DELETE

// Cmd on macOS.
func setShortcut(kb *keybd_event.KeyBonding, on bool) {
	kb.HasSuper(on)
}
