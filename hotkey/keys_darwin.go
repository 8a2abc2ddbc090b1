package hotkey

import "golang.design/x/hotkey"

// Carbon virtual key codes.
var platformKeys = map[Trigger]hotkey.Key{
	CapsLock: hotkey.Key(0x39),
	RightAlt: hotkey.Key(0x3D),
	F1:       hotkey.Key(0x7A),
}

var overlayKeys = map[OverlayKey]keySpec{
	Tab:      {key: hotkey.Key(0x30)},
	ShiftTab: {mods: []hotkey.Modifier{hotkey.ModShift}, key: hotkey.Key(0x30)},
	Enter:    {key: hotkey.Key(0x24)},
	Esc:      {key: hotkey.Key(0x35)},
}
