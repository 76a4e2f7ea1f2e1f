package malgo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/rfvox/audio"
)

func TestClosedDevices(t *testing.T) {
	in := NewInput(Config{Format: audio.DefaultFormat})
	_, err := in.Read(960)
	assert.ErrorIs(t, err, audio.ErrDeviceClosed)
	assert.NoError(t, in.Close())

	out := NewOutput(Config{Format: audio.DefaultFormat})
	assert.ErrorIs(t, out.Write(make([]int16, 960)), audio.ErrDeviceClosed)
	assert.NoError(t, out.Close())
}

func TestOpenRejectsBadFormat(t *testing.T) {
	in := NewInput(Config{Format: audio.Format{SampleRate: 48000, Channels: 3, FrameSize: 960}})
	assert.Error(t, in.Open())
}
