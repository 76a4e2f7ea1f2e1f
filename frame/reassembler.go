package frame

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/sirupsen/logrus"
)

// DropReason says why the reassembler discarded data.
type DropReason int

const (
	// DropCorrupt: a v2 frame whose payload failed the CRC.
	DropCorrupt DropReason = iota
	// DropStale: a v2 frame whose sequence is not newer than the last one
	// delivered.
	DropStale
	// DropOrphan: a continuation packet with nothing to attach to.
	DropOrphan
	// DropRunt: a start packet too short to hold the header.
	DropRunt
	// DropTruncated: a frame in progress abandoned for a new start marker.
	DropTruncated

	numDropReasons
)

func (r DropReason) String() string {
	switch r {
	case DropCorrupt:
		return "corrupt"
	case DropStale:
		return "stale"
	case DropOrphan:
		return "orphan"
	case DropRunt:
		return "runt"
	case DropTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Observer receives reassembly events. Implementations must not block.
type Observer interface {
	FrameReassembled(size int)
	FrameDropped(reason DropReason)
	SequenceGap(missed int)
}

type nopObserver struct{}

func (nopObserver) FrameReassembled(int)    {}
func (nopObserver) FrameDropped(DropReason) {}
func (nopObserver) SequenceGap(int)         {}

// Stats counts reassembler activity since creation.
type Stats struct {
	Packets uint64
	Frames  uint64
	Gaps    uint64
	Dropped map[DropReason]uint64
}

// Reassembler rebuilds frames from packets. It is owned by a single receive
// loop and is not safe for concurrent use.
type Reassembler struct {
	version  Version
	observer Observer

	buf        []byte
	frameLen   int
	inProgress bool
	// started is set by the first start marker; v1 appends continuations
	// against the last frameLen from then on.
	started bool

	seq      uint16
	crc      uint32
	lastSeq  uint16
	haveLast bool

	packets uint64
	frames  uint64
	gaps    uint64
	dropped [numDropReasons]uint64
}

// NewReassembler creates a reassembler for version v. An invalid version is
// treated as V1. obs may be nil.
func NewReassembler(v Version, obs Observer) *Reassembler {
	if !v.Valid() {
		v = V1
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Reassembler{version: v, observer: obs}
}

// Version returns the envelope version the reassembler expects.
func (r *Reassembler) Version() Version {
	return r.version
}

// Push feeds one packet. It returns the payload and true when the packet
// completes a frame. The returned slice is owned by the caller.
func (r *Reassembler) Push(packet []byte) ([]byte, bool) {
	r.packets++

	if r.version == V2 {
		return r.pushV2(packet)
	}
	return r.pushV1(packet)
}

func (r *Reassembler) pushV1(packet []byte) ([]byte, bool) {
	if hasMarker(packet, StartMarker) {
		if r.inProgress {
			r.drop(DropTruncated)
		}
		if len(packet) < HeaderSizeV1 {
			r.reset()
			r.drop(DropRunt)
			return nil, false
		}
		r.frameLen = int(binary.BigEndian.Uint16(packet[markerSize:HeaderSizeV1]))
		r.buf = append(r.buf[:0], packet[HeaderSizeV1:]...)
		r.inProgress = true
		r.started = true
	} else {
		if !r.started {
			r.drop(DropOrphan)
			return nil, false
		}
		r.buf = append(r.buf, packet...)
		r.inProgress = true
	}

	if len(r.buf) < r.frameLen {
		return nil, false
	}
	return r.complete(), true
}

func (r *Reassembler) pushV2(packet []byte) ([]byte, bool) {
	if hasMarker(packet, StartMarkerV2) {
		if r.inProgress {
			r.drop(DropTruncated)
		}
		if len(packet) < HeaderSizeV2 {
			r.reset()
			r.drop(DropRunt)
			return nil, false
		}
		r.frameLen = int(binary.BigEndian.Uint16(packet[2:4]))
		r.seq = binary.BigEndian.Uint16(packet[4:6])
		r.crc = binary.BigEndian.Uint32(packet[6:10])
		r.buf = append(r.buf[:0], packet[HeaderSizeV2:]...)
		r.inProgress = true
	} else {
		if !r.inProgress {
			r.drop(DropOrphan)
			return nil, false
		}
		r.buf = append(r.buf, packet...)
	}

	if len(r.buf) < r.frameLen {
		return nil, false
	}

	seq, crc := r.seq, r.crc
	payload := r.complete()

	if crc32.ChecksumIEEE(payload) != crc {
		r.frames--
		r.drop(DropCorrupt)
		return nil, false
	}

	if r.haveLast {
		delta := seq - r.lastSeq
		if delta == 0 || delta >= 0x8000 {
			r.frames--
			r.drop(DropStale)
			return nil, false
		}
		if delta > 1 {
			r.gaps++
			r.observer.SequenceGap(int(delta - 1))
		}
	}
	r.lastSeq = seq
	r.haveLast = true

	r.observer.FrameReassembled(len(payload))
	return payload, true
}

// complete cuts the frame out of the buffer and clears the in-progress
// state. frameLen is kept for v1 stale appends.
func (r *Reassembler) complete() []byte {
	payload := make([]byte, r.frameLen)
	copy(payload, r.buf[:r.frameLen])
	r.buf = r.buf[:0]
	r.inProgress = false
	r.frames++

	if r.version == V1 {
		r.observer.FrameReassembled(len(payload))
	}
	return payload
}

// Reset discards any frame in progress and the v2 sequence history.
func (r *Reassembler) Reset() {
	r.reset()
	r.started = false
	r.frameLen = 0
	r.haveLast = false
}

func (r *Reassembler) reset() {
	r.buf = r.buf[:0]
	r.inProgress = false
}

func (r *Reassembler) drop(reason DropReason) {
	r.dropped[reason]++
	r.observer.FrameDropped(reason)

	logrus.WithFields(logrus.Fields{
		"function": "Reassembler.Push",
		"version":  r.version.String(),
		"reason":   reason.String(),
	}).Debug("Dropped frame data")
}

// Stats returns a snapshot of the counters.
func (r *Reassembler) Stats() Stats {
	s := Stats{
		Packets: r.packets,
		Frames:  r.frames,
		Gaps:    r.gaps,
		Dropped: make(map[DropReason]uint64, numDropReasons),
	}
	for reason, n := range r.dropped {
		if n > 0 {
			s.Dropped[DropReason(reason)] = n
		}
	}
	return s
}

func hasMarker(packet []byte, marker [2]byte) bool {
	return len(packet) >= markerSize && packet[0] == marker[0] && packet[1] == marker[1]
}
