// Package beep plays the short tones that mark a dictation session's
// start, stop and failure.
package beep

import (
	"math"
	"sync/atomic"
)

const sampleRate = 44100

type Cue int

const (
	Start Cue = iota
	Stop
	Error
)

func (c Cue) String() string {
	switch c {
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Error:
		return "error"
	}
	return "unknown"
}

type tone struct {
	freq   float64
	dur    float64
	volume float64
	decay  float64
	// repeat > 1 plays the tick again after gap seconds of silence.
	repeat int
	gap    float64
}

var tones = map[Cue]tone{
	Start: {freq: 1200, dur: 0.06, volume: 0.5, decay: 60, repeat: 1},
	Stop:  {freq: 900, dur: 0.08, volume: 0.5, decay: 40, repeat: 1},
	Error: {freq: 350, dur: 0.08, volume: 0.6, decay: 30, repeat: 2, gap: 0.05},
}

var disabled atomic.Bool

// Disable silences every later Play.
func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

// Play starts the tone for c and returns without waiting for it to end.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	if _, ok := tones[c]; !ok {
		return
	}
	play(c)
}

// Samples renders c as mono signed 16-bit PCM at rate Hz.
func Samples(c Cue, rate int) []int16 {
	t, ok := tones[c]
	if !ok {
		return nil
	}
	tick := generateTick(rate, t.freq, t.dur, t.volume, t.decay)
	out := append([]int16(nil), tick...)
	gap := make([]int16, int(float64(rate)*t.gap))
	for i := 1; i < t.repeat; i++ {
		out = append(out, gap...)
		out = append(out, tick...)
	}
	return out
}

func generateTick(rate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(rate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(rate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}
