package opus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rfvox/audio"
)

func TestCodecRoundTrip(t *testing.T) {
	c, err := NewCodec(audio.DefaultFormat, 24000)
	require.NoError(t, err)

	pcm := make([]int16, 960)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}

	var last []int16
	for i := 0; i < 5; i++ {
		data, err := c.Encode(pcm, 960)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		assert.Less(t, len(data), 2*len(pcm))

		last, err = c.Decode(data, 960)
		require.NoError(t, err)
		assert.Len(t, last, 960)
	}
	assert.Greater(t, audio.RMS(last), 1000.0)
}

func TestCodecErrors(t *testing.T) {
	c, err := NewCodec(audio.DefaultFormat, 0)
	require.NoError(t, err)

	_, err = c.Encode(make([]int16, 100), 960)
	assert.ErrorIs(t, err, audio.ErrFrameSize)

	_, err = c.Decode(nil, 960)
	assert.ErrorIs(t, err, audio.ErrCorruptFrame)

	_, err = NewCodec(audio.Format{SampleRate: 48000, Channels: 5, FrameSize: 960}, 0)
	assert.Error(t, err)
}
