package radio

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by Receive when no packet arrives in time.
	ErrTimeout = errors.New("radio receive timed out")
	// ErrClosed is returned by drivers used after Close.
	ErrClosed = errors.New("radio closed")
	// ErrPacketSize is returned by Send for packets longer than the link
	// allows.
	ErrPacketSize = errors.New("packet exceeds radio limit")
)

// Radio is a half-duplex packet transceiver.
type Radio interface {
	// Send transmits one packet.
	Send(packet []byte) error
	// Receive returns the next received packet, waiting up to timeout. A
	// timeout of zero only checks for a packet already waiting.
	Receive(timeout time.Duration) ([]byte, error)
	// PayloadReady reports whether a received packet is waiting.
	PayloadReady() bool
	// Listen arms receive mode.
	Listen() error
}

// Interrupter is implemented by radios that notify packet arrival. The
// handler runs on the driver's goroutine, once per received packet, and
// must not block.
type Interrupter interface {
	OnPayloadReady(handler func())
}
