package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// STREAMINFO sits right after the "fLaC" magic and its 4-byte block
// header. Bytes 10..17 of it pack sample rate, channels, bit depth and
// the 36-bit sample count.
const (
	streamInfoOffset = 8
	sampleCountWord  = streamInfoOffset + 10
	sampleCountMask  = 1<<36 - 1
)

// FlacEncoder writes mono 16-bit FLAC into memory. Each block becomes one
// frame; the library picks the cheapest predictor per frame.
type FlacEncoder struct {
	out     bytes.Buffer
	stream  *flac.Encoder
	samples []int32
	frames  uint64
	closed  bool
}

func NewFlac() (*FlacEncoder, error) {
	e := &FlacEncoder{samples: make([]int32, 0, BlockSize)}
	stream, err := flac.NewEncoder(&e.out, &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	stream.EnablePredictionAnalysis(true)
	e.stream = stream
	return e, nil
}

// EncodeBlock writes block as one frame. Blocks longer than BlockSize are
// split; block is not retained.
func (e *FlacEncoder) EncodeBlock(block []int16) error {
	if e.closed {
		return fmt.Errorf("flac encoder closed")
	}
	for len(block) > 0 {
		n := min(len(block), BlockSize)
		if err := e.writeFrame(block[:n]); err != nil {
			return err
		}
		block = block[n:]
	}
	return nil
}

func (e *FlacEncoder) writeFrame(block []int16) error {
	e.samples = e.samples[:0]
	for _, s := range block {
		e.samples = append(e.samples, int32(s))
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   e.samples,
			NSamples:  len(block),
		}},
	}
	if err := e.stream.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame %d: %w", e.frames/BlockSize, err)
	}
	e.frames += uint64(len(block))
	return nil
}

// Close flushes the stream and records the sample count in STREAMINFO.
// The output buffer cannot seek, so the library leaves the count at zero
// and decoders would otherwise report an unknown duration.
func (e *FlacEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.stream.Close(); err != nil {
		return err
	}
	return stampSampleCount(e.out.Bytes(), e.frames)
}

func stampSampleCount(b []byte, n uint64) error {
	if len(b) < sampleCountWord+8 || string(b[:4]) != "fLaC" || b[4]&0x7f != 0 {
		return fmt.Errorf("flac output does not start with STREAMINFO")
	}
	if n > sampleCountMask {
		return fmt.Errorf("%d samples do not fit STREAMINFO", n)
	}
	word := binary.BigEndian.Uint64(b[sampleCountWord:])
	word = word&^sampleCountMask | n
	binary.BigEndian.PutUint64(b[sampleCountWord:], word)
	return nil
}

func (e *FlacEncoder) Bytes() []byte       { return e.out.Bytes() }
func (e *FlacEncoder) TotalFrames() uint64 { return e.frames }
func (e *FlacEncoder) Format() string      { return "flac" }
