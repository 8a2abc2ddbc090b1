package session

import "dictate/caret"

// Key is an interactive gesture forwarded by the overlay.
type Key int

const (
	KeyTab Key = iota + 1
	KeyShiftTab
	KeyEnter
	KeyEsc
)

func (k Key) String() string {
	switch k {
	case KeyTab:
		return "tab"
	case KeyShiftTab:
		return "shift+tab"
	case KeyEnter:
		return "enter"
	case KeyEsc:
		return "esc"
	}
	return "unknown"
}

// ViewState is the read-only projection handed to presenters.
type ViewState struct {
	Phase              State
	SessionID          string
	ElapsedRecordingMs int64
	CurrentModeLabel   string
	Degraded           bool
	// Rerun is set while a mode change is being processed.
	Rerun bool
	// Failure is set when the last transition was caused by an error.
	Failure string
	Level   float64
	NoVoice bool
	// Text is what is currently injected, if anything.
	Text      string
	Modes     []string
	ModeIndex int
	Anchor    caret.Anchor
	Enabled   bool
	// Seq increases with every publish.
	Seq uint64
}

// ModeBarVisible reports whether Tab, Enter and Esc mean anything now.
func (v ViewState) ModeBarVisible() bool {
	return v.Phase == Interactive || (v.Phase == Processing && v.Rerun)
}
