package audio

import (
	"encoding/binary"
	"iter"
	"math"
	"time"
)

// Recording is a frozen capture buffer. The zero value is an empty
// recording. Nothing hands out the backing slice, so a Recording can be
// shared between goroutines freely.
type Recording struct {
	pcm []byte
}

// NewRecording copies pcm (S16LE mono at SampleRate).
func NewRecording(pcm []byte) Recording {
	return Recording{pcm: append([]byte(nil), pcm...)}
}

// SilentRecording is d of digital silence, mostly for tests and probes.
func SilentRecording(d time.Duration) Recording {
	n := int(d * SampleRate / time.Second)
	return Recording{pcm: make([]byte, n*BytesPerSample)}
}

func (r Recording) Len() int { return len(r.pcm) }

func (r Recording) Samples() int { return len(r.pcm) / BytesPerSample }

func (r Recording) Duration() time.Duration {
	return time.Duration(r.Samples()) * time.Second / SampleRate
}

func (r Recording) Empty() bool { return len(r.pcm) == 0 }

// Bytes returns a copy of the raw PCM.
func (r Recording) Bytes() []byte {
	return append([]byte(nil), r.pcm...)
}

// Blocks yields the samples in blocks of at most size, decoding lazily.
// The yielded slice is reused between iterations.
func (r Recording) Blocks(size int) iter.Seq[[]int16] {
	return func(yield func([]int16) bool) {
		if size <= 0 {
			return
		}
		buf := make([]int16, size)
		total := r.Samples()
		for start := 0; start < total; start += size {
			n := min(size, total-start)
			for i := range n {
				off := (start + i) * BytesPerSample
				buf[i] = int16(binary.LittleEndian.Uint16(r.pcm[off:]))
			}
			if !yield(buf[:n]) {
				return
			}
		}
	}
}

// RMS of the whole recording in [0,1].
func (r Recording) RMS() float64 { return RMS(r.pcm) }

// RMS of S16LE pcm normalised to [0,1].
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))) / 32768
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// WAV returns the recording wrapped in a canonical 44 byte WAV header.
func (r Recording) WAV() []byte {
	buf := make([]byte, WAVHeaderSize+len(r.pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(WAVHeaderSize-8+len(r.pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], SampleRate*Channels*BytesPerSample)
	binary.LittleEndian.PutUint16(buf[32:34], Channels*BytesPerSample)
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(r.pcm)))
	copy(buf[WAVHeaderSize:], r.pcm)
	return buf
}
