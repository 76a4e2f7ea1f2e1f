package frame

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/opd-ai/rfvox/limits"
)

// Split builds a v1 envelope around payload and cuts it into PacketSize
// packets. The last packet is zero-padded. An empty payload yields one
// packet holding only the header.
func Split(payload []byte) ([][]byte, error) {
	if err := limits.ValidateFramePayload(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
	}

	header := make([]byte, HeaderSizeV1)
	copy(header, StartMarker[:])
	binary.BigEndian.PutUint16(header[markerSize:], uint16(len(payload)))
	return packetize(header, payload), nil
}

// Splitter splits frames with a given envelope version. For V2 it owns the
// transmit sequence counter, so one Splitter serves one transmit stream.
type Splitter struct {
	mu      sync.Mutex
	version Version
	seq     uint16
}

// NewSplitter creates a splitter for version v.
func NewSplitter(v Version) (*Splitter, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, int(v))
	}
	return &Splitter{version: v}, nil
}

// Version returns the envelope version.
func (s *Splitter) Version() Version {
	return s.version
}

// Split envelopes payload and returns its packets. Under V2 each call
// consumes one sequence number.
func (s *Splitter) Split(payload []byte) ([][]byte, error) {
	if s.version == V1 {
		return Split(payload)
	}

	if err := limits.ValidateFramePayload(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
	}

	s.mu.Lock()
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	header := make([]byte, HeaderSizeV2)
	copy(header, StartMarkerV2[:])
	binary.BigEndian.PutUint16(header[2:4], uint16(len(payload)))
	binary.BigEndian.PutUint16(header[4:6], seq)
	binary.BigEndian.PutUint32(header[6:10], crc32.ChecksumIEEE(payload))
	return packetize(header, payload), nil
}

func packetize(header, payload []byte) [][]byte {
	total := len(header) + len(payload)
	n := (total + PacketSize - 1) / PacketSize

	// One backing array; each packet is a full-capacity slice of it so
	// appends by a caller cannot run into the next packet.
	buf := make([]byte, n*PacketSize)
	copy(buf, header)
	copy(buf[len(header):], payload)

	packets := make([][]byte, n)
	for i := range packets {
		off := i * PacketSize
		packets[i] = buf[off : off+PacketSize : off+PacketSize]
	}
	return packets
}
