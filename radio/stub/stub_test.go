package stub

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rfvox/radio"
)

func TestLoopbackDelivery(t *testing.T) {
	a, b := New(), New()
	defer a.Close()
	defer b.Close()
	Connect(a, b)

	require.NoError(t, a.Send([]byte{1, 2, 3}))
	require.NoError(t, a.Send([]byte{4}))

	assert.True(t, b.PayloadReady())
	p, err := b.Receive(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p)

	p, err = b.Receive(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, p)

	assert.False(t, b.PayloadReady())
	assert.Len(t, a.TxLog(), 2)
}

func TestReceiveTimeout(t *testing.T) {
	r := New()
	defer r.Close()

	start := time.Now()
	_, err := r.Receive(20 * time.Millisecond)
	assert.ErrorIs(t, err, radio.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestInterruptPerPacket(t *testing.T) {
	r := New()
	defer r.Close()

	var fired atomic.Int32
	r.OnPayloadReady(func() { fired.Add(1) })

	for i := 0; i < 5; i++ {
		r.Inject([]byte{byte(i)})
	}
	assert.Eventually(t, func() bool { return fired.Load() == 5 }, time.Second, time.Millisecond)
}

func TestSendRejectsOversizedPacket(t *testing.T) {
	r := New()
	defer r.Close()
	assert.ErrorIs(t, r.Send(make([]byte, 61)), radio.ErrPacketSize)
}

func TestListenAndClose(t *testing.T) {
	r := New()
	require.NoError(t, r.Listen())
	assert.True(t, r.Listening())
	require.NoError(t, r.Send([]byte{1}))
	assert.False(t, r.Listening())
	assert.Equal(t, 1, r.Listens())

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Send([]byte{1}), radio.ErrClosed)
	assert.ErrorIs(t, r.Listen(), radio.ErrClosed)
	_, err := r.Receive(0)
	assert.ErrorIs(t, err, radio.ErrClosed)
}

func TestRingOverwritesOldest(t *testing.T) {
	r := New()
	defer r.Close()

	for i := 0; i < ringCapacity+2; i++ {
		r.Inject([]byte{byte(i)})
	}
	p, err := r.Receive(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, p)
}
