package audio

import (
	"sync"
)

// PCMBuffer is a bounded byte FIFO between a device callback and a blocking
// reader. When a write would exceed the capacity the oldest bytes are
// discarded, so a slow consumer hears the most recent audio.
type PCMBuffer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	max     int
	dropped uint64
	closed  bool
}

// NewPCMBuffer creates a buffer holding at most maxBytes.
func NewPCMBuffer(maxBytes int) *PCMBuffer {
	b := &PCMBuffer{max: maxBytes}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Write appends p. It never blocks and is a no-op after Close.
func (b *PCMBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || len(p) == 0 {
		return
	}

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.dropped += uint64(over)
	}
	b.cond.Broadcast()
}

// ReadFull blocks until n bytes are buffered and returns them. It returns
// ErrDeviceClosed once the buffer is closed.
func (b *PCMBuffer) ReadFull(n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.buf) < n && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return nil, ErrDeviceClosed
	}

	out := make([]byte, n)
	copy(out, b.buf)
	b.buf = append(b.buf[:0], b.buf[n:]...)
	return out, nil
}

// Drain fills p with buffered bytes without blocking, zero-filling the rest,
// and returns how many bytes came from the buffer.
func (b *PCMBuffer) Drain(p []byte) int {
	b.mu.Lock()
	n := copy(p, b.buf)
	b.buf = append(b.buf[:0], b.buf[n:]...)
	b.mu.Unlock()

	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return n
}

// Len returns the number of buffered bytes.
func (b *PCMBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Dropped returns the number of bytes discarded on overflow.
func (b *PCMBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Reset empties and reopens the buffer.
func (b *PCMBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = b.buf[:0]
	b.closed = false
}

// Close wakes blocked readers. Further writes are ignored.
func (b *PCMBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}
