package hotkey

import "golang.design/x/hotkey"

// Win32 virtual key codes.
var platformKeys = map[Trigger]hotkey.Key{
	CapsLock: hotkey.Key(0x14),
	RightAlt: hotkey.Key(0xA5),
	F1:       hotkey.Key(0x70),
}

var overlayKeys = map[OverlayKey]keySpec{
	Tab:      {key: hotkey.Key(0x09)},
	ShiftTab: {mods: []hotkey.Modifier{hotkey.ModShift}, key: hotkey.Key(0x09)},
	Enter:    {key: hotkey.Key(0x0D)},
	Esc:      {key: hotkey.Key(0x1B)},
}
