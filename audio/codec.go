package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/rfvox/limits"
)

// Codec compresses fixed-size PCM frames. frameSize is the number of samples
// per channel in one frame.
type Codec interface {
	Encode(pcm []int16, frameSize int) ([]byte, error)
	Decode(data []byte, frameSize int) ([]int16, error)
}

// Format describes the PCM stream shared by codec and devices.
type Format struct {
	SampleRate int
	Channels   int
	FrameSize  int
}

// DefaultFormat is 48 kHz mono with 20 ms frames.
var DefaultFormat = Format{SampleRate: 48000, Channels: 1, FrameSize: 960}

// Samples returns the number of interleaved samples in one frame.
func (f Format) Samples() int {
	return f.FrameSize * f.Channels
}

// Validate checks that the format is usable.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	return limits.ValidateFrameSamples(f.FrameSize)
}

// PCMCodec carries 16-bit little-endian samples without compression.
type PCMCodec struct {
	Channels int
}

// Encode serializes pcm. It must hold exactly frameSize*Channels samples.
func (c PCMCodec) Encode(pcm []int16, frameSize int) ([]byte, error) {
	if want := frameSize * c.channels(); len(pcm) != want {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrFrameSize, len(pcm), want)
	}
	return SamplesToBytes(pcm), nil
}

// Decode parses a frame produced by Encode.
func (c PCMCodec) Decode(data []byte, frameSize int) ([]int16, error) {
	if want := 2 * frameSize * c.channels(); len(data) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrCorruptFrame, len(data), want)
	}
	return BytesToSamples(data), nil
}

func (c PCMCodec) channels() int {
	if c.Channels < 1 {
		return 1
	}
	return c.Channels
}

// SamplesToBytes encodes samples as little-endian 16-bit values.
func SamplesToBytes(pcm []int16) []byte {
	out := make([]byte, 2*len(pcm))
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// BytesToSamples decodes little-endian 16-bit values. A trailing odd byte is
// ignored.
func BytesToSamples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}

// NewCodec returns the built-in codec called name: "pcm", "lz4" or
// "opus-decode". The cgo Opus codec is constructed by package audio/opus.
func NewCodec(name string, f Format) (Codec, error) {
	switch name {
	case "pcm":
		return PCMCodec{Channels: f.Channels}, nil
	case "lz4":
		return NewLZ4Codec(f.Channels), nil
	case "opus-decode":
		return NewOpusDecoder(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
