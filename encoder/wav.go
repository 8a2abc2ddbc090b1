package encoder

import (
	"encoding/binary"

	"dictate/audio"
)

// WAVEncoder collects PCM and wraps it in a WAV header on Close.
type WAVEncoder struct {
	pcm    []byte
	out    []byte
	frames uint64
}

func NewWAV() *WAVEncoder { return &WAVEncoder{} }

func (e *WAVEncoder) EncodeBlock(block []int16) error {
	for _, s := range block {
		e.pcm = binary.LittleEndian.AppendUint16(e.pcm, uint16(s))
	}
	e.frames += uint64(len(block))
	return nil
}

func (e *WAVEncoder) Close() error {
	e.out = audio.NewRecording(e.pcm).WAV()
	return nil
}

func (e *WAVEncoder) Bytes() []byte       { return e.out }
func (e *WAVEncoder) TotalFrames() uint64 { return e.frames }
func (e *WAVEncoder) Format() string      { return "wav" }
