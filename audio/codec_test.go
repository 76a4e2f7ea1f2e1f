package audio

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineFrame(n int, amplitude float64) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/48000))
	}
	return pcm
}

func TestPCMCodecRoundTrip(t *testing.T) {
	c := PCMCodec{Channels: 1}
	pcm := sineFrame(960, 8000)

	data, err := c.Encode(pcm, 960)
	require.NoError(t, err)
	assert.Len(t, data, 1920)

	out, err := c.Decode(data, 960)
	require.NoError(t, err)
	assert.Equal(t, pcm, out)
}

func TestPCMCodecSizeChecks(t *testing.T) {
	c := PCMCodec{Channels: 2}

	_, err := c.Encode(make([]int16, 960), 960)
	assert.ErrorIs(t, err, ErrFrameSize)

	_, err = c.Decode(make([]byte, 100), 960)
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestSampleByteOrder(t *testing.T) {
	assert.Equal(t, []byte{0x34, 0x12, 0xFF, 0xFF}, SamplesToBytes([]int16{0x1234, -1}))
	assert.Equal(t, []int16{0x1234, -1}, BytesToSamples([]byte{0x34, 0x12, 0xFF, 0xFF, 0x00}))
}

func TestLZ4CodecCompressesSilence(t *testing.T) {
	c := NewLZ4Codec(1)

	data, err := c.Encode(make([]int16, 960), 960)
	require.NoError(t, err)
	assert.Equal(t, lz4TagBlock, data[0])
	assert.Less(t, len(data), 100)

	out, err := c.Decode(data, 960)
	require.NoError(t, err)
	assert.Equal(t, make([]int16, 960), out)
}

func TestLZ4CodecNoiseFallsBackToRaw(t *testing.T) {
	c := NewLZ4Codec(1)
	rng := rand.New(rand.NewSource(7))
	pcm := make([]int16, 960)
	for i := range pcm {
		pcm[i] = int16(rng.Intn(65536) - 32768)
	}

	data, err := c.Encode(pcm, 960)
	require.NoError(t, err)
	assert.Equal(t, lz4TagRaw, data[0])
	assert.Len(t, data, 1+1920)

	out, err := c.Decode(data, 960)
	require.NoError(t, err)
	assert.Equal(t, pcm, out)
}

func TestLZ4CodecRoundTripTone(t *testing.T) {
	c := NewLZ4Codec(1)
	pcm := sineFrame(960, 1000)

	data, err := c.Encode(pcm, 960)
	require.NoError(t, err)
	out, err := c.Decode(data, 960)
	require.NoError(t, err)
	assert.Equal(t, pcm, out)
}

func TestLZ4CodecCorrupt(t *testing.T) {
	c := NewLZ4Codec(1)

	_, err := c.Decode(nil, 960)
	assert.ErrorIs(t, err, ErrCorruptFrame)

	_, err = c.Decode([]byte{9, 1, 2}, 960)
	assert.ErrorIs(t, err, ErrCorruptFrame)

	_, err = c.Decode([]byte{lz4TagBlock, 0xFF, 0xFF, 0xFF}, 960)
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestOpusDecoderCannotEncode(t *testing.T) {
	d, err := NewOpusDecoder(DefaultFormat)
	require.NoError(t, err)

	_, err = d.Encode(make([]int16, 960), 960)
	assert.ErrorIs(t, err, ErrEncodeUnsupported)

	_, err = d.Decode(nil, 960)
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestNewCodec(t *testing.T) {
	for _, name := range []string{"pcm", "lz4", "opus-decode"} {
		c, err := NewCodec(name, DefaultFormat)
		require.NoError(t, err, name)
		assert.NotNil(t, c)
	}

	_, err := NewCodec("mp3", DefaultFormat)
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestFormatValidate(t *testing.T) {
	assert.NoError(t, DefaultFormat.Validate())
	assert.Equal(t, 960, DefaultFormat.Samples())

	assert.Error(t, Format{SampleRate: 0, Channels: 1, FrameSize: 960}.Validate())
	assert.Error(t, Format{SampleRate: 48000, Channels: 3, FrameSize: 960}.Validate())
	assert.Error(t, Format{SampleRate: 48000, Channels: 1, FrameSize: 0}.Validate())
}

func TestResampler(t *testing.T) {
	up, err := NewResampler(24000, 48000, 1)
	require.NoError(t, err)

	out := up.Resample([]int16{0, 300, 600, 900})
	require.Len(t, out, 8)
	assert.Equal(t, int16(0), out[0])
	assert.Equal(t, int16(150), out[1])
	assert.Equal(t, int16(300), out[2])
	assert.Equal(t, int16(900), out[7])

	down, err := NewResampler(48000, 24000, 2)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, -1, 5, -5}, down.Resample([]int16{1, -1, 3, -3, 5, -5, 7, -7}))

	same, err := NewResampler(48000, 48000, 1)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3}, same.Resample([]int16{1, 2, 3}))

	_, err = NewResampler(0, 48000, 1)
	assert.Error(t, err)
}

func TestFitFrame(t *testing.T) {
	assert.Equal(t, []int16{1, 2, 0}, fitFrame([]int16{1, 2}, 3))
	assert.Equal(t, []int16{1}, fitFrame([]int16{1, 2}, 1))
}
