package frame

import (
	"fmt"

	"github.com/opd-ai/rfvox/limits"
)

const (
	// PacketSize is the fixed size of every radio packet.
	PacketSize = limits.PacketSize

	// MaxPayload is the largest frame payload the length prefix can carry.
	MaxPayload = limits.MaxFramePayload

	markerSize   = 2
	lengthSize   = 2
	sequenceSize = 2
	crcSize      = 4

	// HeaderSizeV1 is marker + length.
	HeaderSizeV1 = markerSize + lengthSize
	// HeaderSizeV2 is marker + length + sequence + CRC-32.
	HeaderSizeV2 = markerSize + lengthSize + sequenceSize + crcSize
)

var (
	// StartMarker opens a v1 frame.
	StartMarker = [2]byte{0xA5, 0x5A}
	// StartMarkerV2 opens a v2 frame.
	StartMarkerV2 = [2]byte{0xA5, 0x5B}
)

// Version selects the envelope format.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

func (v Version) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// Valid reports whether v is a supported protocol version.
func (v Version) Valid() bool {
	return v == V1 || v == V2
}

// HeaderSize returns the envelope header size for v.
func (v Version) HeaderSize() int {
	if v == V2 {
		return HeaderSizeV2
	}
	return HeaderSizeV1
}

func (v Version) marker() [2]byte {
	if v == V2 {
		return StartMarkerV2
	}
	return StartMarker
}

// PacketCount returns how many packets a payload of n bytes occupies.
func PacketCount(v Version, n int) int {
	total := v.HeaderSize() + n
	return (total + PacketSize - 1) / PacketSize
}
