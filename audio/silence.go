package audio

import "time"

const (
	// SpeechLevel is the frame RMS above which a tick counts as speech.
	SpeechLevel      = 0.02
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // still silent one window after the warning
)

// SilenceMonitor watches per-tick speech flags during a recording and
// raises a warning when the last window is mostly silent.
type SilenceMonitor struct {
	warnAt int

	ticks    int
	window   []bool
	warned   bool
	lastBeep int
}

// NewSilenceMonitor warns after warnAfter of silence when ticked every tick.
func NewSilenceMonitor(warnAfter, tick time.Duration) *SilenceMonitor {
	warnAt := max(int(warnAfter/tick), 1)
	return &SilenceMonitor{
		warnAt: warnAt,
		window: make([]bool, warnAt),
	}
}

func (m *SilenceMonitor) Warned() bool { return m.warned }

func (m *SilenceMonitor) ratio() float64 {
	n := min(m.ticks, m.warnAt)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.warnAt)%m.warnAt] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *SilenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	m.window[m.ticks%m.warnAt] = hasSpeech
	m.ticks++

	r := m.ratio()

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastBeep = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	if m.warned && m.ticks-m.lastBeep >= m.warnAt {
		m.lastBeep = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}
