package opus

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	hopus "gopkg.in/hraban/opus.v2"

	"github.com/opd-ai/rfvox/audio"
	"github.com/opd-ai/rfvox/limits"
)

// maxPacketSize bounds one encoded Opus packet.
const maxPacketSize = 1275

// Codec encodes and decodes Opus frames in VoIP mode.
type Codec struct {
	encMu   sync.Mutex
	decMu   sync.Mutex
	encoder *hopus.Encoder
	decoder *hopus.Decoder
	format  audio.Format
}

// NewCodec creates an Opus codec for f. bitrate is in bits per second; zero
// keeps the libopus default.
func NewCodec(f audio.Format, bitrate int) (*Codec, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	encoder, err := hopus.NewEncoder(f.SampleRate, f.Channels, hopus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	if bitrate > 0 {
		if err := encoder.SetBitrate(bitrate); err != nil {
			return nil, fmt.Errorf("set opus bitrate %d: %w", bitrate, err)
		}
	}

	decoder, err := hopus.NewDecoder(f.SampleRate, f.Channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewCodec",
		"sample_rate": f.SampleRate,
		"channels":    f.Channels,
		"bitrate":     bitrate,
	}).Info("Created Opus codec")

	return &Codec{encoder: encoder, decoder: decoder, format: f}, nil
}

// Encode compresses one frame of frameSize samples per channel.
func (c *Codec) Encode(pcm []int16, frameSize int) ([]byte, error) {
	if err := limits.ValidateFrameSamples(frameSize); err != nil {
		return nil, err
	}
	if want := frameSize * c.format.Channels; len(pcm) != want {
		return nil, fmt.Errorf("%w: got %d samples, want %d", audio.ErrFrameSize, len(pcm), want)
	}

	buf := make([]byte, maxPacketSize)

	c.encMu.Lock()
	n, err := c.encoder.Encode(pcm, buf)
	c.encMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	return buf[:n], nil
}

// Decode decompresses one packet into exactly frameSize samples per channel.
func (c *Codec) Decode(data []byte, frameSize int) ([]int16, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", audio.ErrCorruptFrame)
	}
	if err := limits.ValidateFrameSamples(frameSize); err != nil {
		return nil, err
	}

	pcm := make([]int16, frameSize*c.format.Channels)

	c.decMu.Lock()
	n, err := c.decoder.Decode(data, pcm)
	c.decMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: opus: %v", audio.ErrCorruptFrame, err)
	}

	if n != frameSize {
		logrus.WithFields(logrus.Fields{
			"function": "Codec.Decode",
			"decoded":  n,
			"expected": frameSize,
		}).Debug("Opus frame size differs from configured frame size")
	}
	return pcm, nil
}

var _ audio.Codec = (*Codec)(nil)
