package transport

import (
	"fmt"
	"time"

	"github.com/opd-ai/rfvox/frame"
	"github.com/opd-ai/rfvox/limits"
)

// Task names registered with the scheduler.
const (
	TransmitTask = "transmit"
	ReceiveTask  = "receive"
)

// Config tunes the orchestrator.
type Config struct {
	// Version selects the frame envelope.
	Version frame.Version
	// FrameSize is the PCM frame length in samples per channel.
	FrameSize int
	// BufferTimeout is how long the receive task waits for a packet
	// before ending the session.
	BufferTimeout time.Duration
	// PacketDelay is the minimum spacing between transmitted packets.
	PacketDelay time.Duration
	// QueueDepth bounds the packet queue between interrupt and receive
	// task.
	QueueDepth int
	// PullTimeout bounds the Receive call made from the interrupt
	// handler.
	PullTimeout time.Duration
	// OpenRetry is the delay between attempts to open the audio input.
	OpenRetry time.Duration
}

// DefaultConfig returns the settings of the reference hardware: v2 frames,
// 20 ms frames at 48 kHz, 1 s buffer timeout and 1.4 ms packet spacing.
func DefaultConfig() Config {
	return Config{
		Version:       frame.V2,
		FrameSize:     960,
		BufferTimeout: time.Second,
		PacketDelay:   1400 * time.Microsecond,
		QueueDepth:    256,
		PullTimeout:   50 * time.Millisecond,
		OpenRetry:     time.Second,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if !c.Version.Valid() {
		return fmt.Errorf("%w: protocol version %d", ErrInvalidConfig, int(c.Version))
	}
	if err := limits.ValidateFrameSamples(c.FrameSize); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.BufferTimeout <= 0 {
		return fmt.Errorf("%w: buffer timeout %s", ErrInvalidConfig, c.BufferTimeout)
	}
	if c.PacketDelay < 0 {
		return fmt.Errorf("%w: packet delay %s", ErrInvalidConfig, c.PacketDelay)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("%w: queue depth %d", ErrInvalidConfig, c.QueueDepth)
	}
	if c.PullTimeout < 0 || c.OpenRetry < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}
