// Package stub provides an in-memory radio for host-side testing. Two stubs
// joined with Connect behave as a lossless link: every Send on one side is
// received by the other and raises its payload-ready interrupt.
package stub

import (
	"sync"
	"time"

	"github.com/opd-ai/rfvox/limits"
	"github.com/opd-ai/rfvox/radio"
)

const ringCapacity = 256

// Radio implements radio.Radio and radio.Interrupter in memory.
type Radio struct {
	mu        sync.Mutex
	rxBuf     ringBuffer
	txLog     ringBuffer
	peer      *Radio
	handler   func()
	listening bool
	listens   int
	closed    bool

	irq  chan struct{}
	done chan struct{}
}

// New creates a stub radio and starts its interrupt goroutine.
func New() *Radio {
	r := &Radio{
		irq:  make(chan struct{}, ringCapacity),
		done: make(chan struct{}),
	}
	go r.dispatch()
	return r
}

// Connect links a and b so each receives what the other sends.
func Connect(a, b *Radio) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()

	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

// Send records packet in the transmit log and delivers it to the peer.
func (r *Radio) Send(packet []byte) error {
	if len(packet) > limits.PacketSize {
		return radio.ErrPacketSize
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return radio.ErrClosed
	}
	r.listening = false
	r.txLog.push(clone(packet))
	peer := r.peer
	r.mu.Unlock()

	if peer != nil {
		peer.Inject(packet)
	}
	return nil
}

// Receive pops the oldest received packet, polling until timeout.
func (r *Radio) Receive(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, radio.ErrClosed
		}
		packet, ok := r.rxBuf.pop()
		r.mu.Unlock()
		if ok {
			return packet, nil
		}

		if !time.Now().Before(deadline) {
			return nil, radio.ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

// PayloadReady reports whether a packet is waiting.
func (r *Radio) PayloadReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rxBuf.count > 0
}

// Listen arms receive mode.
func (r *Radio) Listen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return radio.ErrClosed
	}
	r.listening = true
	r.listens++
	return nil
}

// Listening reports whether Listen was called since the last Send.
func (r *Radio) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Listens returns how many times Listen was called.
func (r *Radio) Listens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listens
}

// OnPayloadReady registers the interrupt handler.
func (r *Radio) OnPayloadReady(handler func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Inject queues packet as if it had been received over the air and raises
// the interrupt. When the receive ring is full the oldest packet is lost.
func (r *Radio) Inject(packet []byte) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.rxBuf.push(clone(packet))
	r.mu.Unlock()

	select {
	case r.irq <- struct{}{}:
	default:
	}
}

// TxLog returns copies of the packets sent so far, oldest first, limited to
// the most recent ring capacity.
func (r *Radio) TxLog() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txLog.snapshot()
}

// Close stops the interrupt goroutine. Later calls fail with
// radio.ErrClosed.
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.done)
	return nil
}

func (r *Radio) dispatch() {
	for {
		select {
		case <-r.done:
			return
		case <-r.irq:
			r.mu.Lock()
			handler := r.handler
			r.mu.Unlock()
			if handler != nil {
				handler()
			}
		}
	}
}

func clone(p []byte) []byte {
	out := make([]byte, len(p))
	copy(out, p)
	return out
}

type ringBuffer struct {
	data       [ringCapacity][]byte
	head, tail int // head = next pop, tail = next push
	count      int
}

func (rb *ringBuffer) push(packet []byte) {
	if rb.count == ringCapacity {
		// Overwrite the oldest when buffer is full to keep memory bounded
		rb.data[rb.tail] = nil
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = packet
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

func (rb *ringBuffer) pop() ([]byte, bool) {
	if rb.count == 0 {
		return nil, false
	}
	packet := rb.data[rb.head]
	rb.data[rb.head] = nil
	rb.head = (rb.head + 1) % ringCapacity
	rb.count--
	return packet, true
}

func (rb *ringBuffer) snapshot() [][]byte {
	out := make([][]byte, 0, rb.count)
	for c, i := 0, rb.head; c < rb.count; c, i = c+1, (i+1)%ringCapacity {
		out = append(out, clone(rb.data[i]))
	}
	return out
}

var (
	_ radio.Radio       = (*Radio)(nil)
	_ radio.Interrupter = (*Radio)(nil)
)
