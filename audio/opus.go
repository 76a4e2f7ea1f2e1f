package audio

import (
	"fmt"
	"sync"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rfvox/limits"
)

// opusDecodeRate is the rate of the S16LE output written by pion/opus.
const opusDecodeRate = 48000

// OpusDecoder decodes Opus (SILK) frames in pure Go. It is decode-only and
// intended for receive-only monitoring of Opus transmitters.
type OpusDecoder struct {
	mu        sync.Mutex
	decoder   opus.Decoder
	resampler *Resampler
	out       []byte
	format    Format
}

// NewOpusDecoder creates a decoder producing PCM in format f.
func NewOpusDecoder(f Format) (*OpusDecoder, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	rs, err := NewResampler(opusDecodeRate, f.SampleRate, 1)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewOpusDecoder",
		"sample_rate": f.SampleRate,
		"frame_size":  f.FrameSize,
	}).Info("Created pure-Go Opus decoder")

	return &OpusDecoder{
		decoder:   opus.NewDecoder(),
		resampler: rs,
		out:       make([]byte, 4*limits.MaxFrameSamples),
		format:    f,
	}, nil
}

// Encode always fails; see package audio/opus for an encoder.
func (d *OpusDecoder) Encode(pcm []int16, frameSize int) ([]byte, error) {
	return nil, ErrEncodeUnsupported
}

// Decode decodes one Opus packet into frameSize samples.
func (d *OpusDecoder) Decode(data []byte, frameSize int) ([]int16, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrCorruptFrame)
	}
	if err := limits.ValidateFrameSamples(frameSize); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.out {
		d.out[i] = 0
	}

	bandwidth, isStereo, err := d.decoder.Decode(data, d.out)
	if err != nil {
		return nil, fmt.Errorf("%w: opus: %v", ErrCorruptFrame, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "OpusDecoder.Decode",
		"bandwidth": bandwidth.String(),
		"is_stereo": isStereo,
		"data_size": len(data),
	}).Debug("Decoded Opus frame")

	srcSamples := frameSize * opusDecodeRate / d.format.SampleRate
	if 2*srcSamples > len(d.out) {
		srcSamples = len(d.out) / 2
	}
	pcm := BytesToSamples(d.out[:2*srcSamples])
	return fitFrame(d.resampler.Resample(pcm), frameSize), nil
}
