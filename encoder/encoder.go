// Package encoder turns a Recording into an upload body.
package encoder

import (
	"fmt"
	"time"

	"dictate/audio"
)

const (
	SampleRate    = audio.SampleRate
	Channels      = audio.Channels
	BitsPerSample = audio.BitsPerSample
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	Format() string
}

// Result is an encoded recording plus what it cost to produce.
type Result struct {
	Data       []byte
	Format     string
	RawBytes   int
	EncodeTime time.Duration
}

// CompressionPct is how much smaller Data is than the raw PCM.
func (r Result) CompressionPct() float64 {
	if r.RawBytes == 0 {
		return 0
	}
	return (1 - float64(len(r.Data))/float64(r.RawBytes)) * 100
}

// New returns an encoder for "flac" or "wav".
func New(format string) (Encoder, error) {
	switch format {
	case "", "flac":
		return NewFlac()
	case "wav":
		return NewWAV(), nil
	}
	return nil, fmt.Errorf("unknown audio format %q", format)
}

// Encode streams rec through enc block by block and closes it.
func Encode(enc Encoder, rec audio.Recording) (Result, error) {
	start := time.Now()
	for block := range rec.Blocks(BlockSize) {
		if err := enc.EncodeBlock(block); err != nil {
			return Result{}, err
		}
	}
	if err := enc.Close(); err != nil {
		return Result{}, fmt.Errorf("closing %s encoder: %w", enc.Format(), err)
	}
	return Result{
		Data:       enc.Bytes(),
		Format:     enc.Format(),
		RawBytes:   rec.Len(),
		EncodeTime: time.Since(start),
	}, nil
}
