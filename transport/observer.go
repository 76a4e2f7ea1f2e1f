package transport

import "github.com/opd-ai/rfvox/frame"

// Failure stages reported through Observer.Failure.
const (
	StageEncode  = "encode"
	StageEncrypt = "encrypt"
	StageSplit   = "split"
	StageSend    = "send"
	StageDecrypt = "decrypt"
	StageDecode  = "decode"
	StageEffects = "effects"
	StageWrite   = "write"
)

// Observer receives transport events. Calls come from the transmit task, the
// receive task and the radio interrupt, so implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	frame.Observer

	PacketSent()
	PacketReceived()
	// PacketDropped is called when the receive queue is full.
	PacketDropped()
	FrameSent(size int)
	FramePlayed()
	// Failure reports a per-frame error at the given stage; the frame is
	// dropped.
	Failure(stage string)
	ReceiveTimeout()
}

// NopObserver ignores every event. Embed it to implement a subset of
// Observer.
type NopObserver struct{}

func (NopObserver) FrameReassembled(int)          {}
func (NopObserver) FrameDropped(frame.DropReason) {}
func (NopObserver) SequenceGap(int)               {}
func (NopObserver) PacketSent()                   {}
func (NopObserver) PacketReceived()               {}
func (NopObserver) PacketDropped()                {}
func (NopObserver) FrameSent(int)                 {}
func (NopObserver) FramePlayed()                  {}
func (NopObserver) Failure(string)                {}
func (NopObserver) ReceiveTimeout()               {}
