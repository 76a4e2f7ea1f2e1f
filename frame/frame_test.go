package frame

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	frames []int
	drops  []DropReason
	gaps   []int
}

func (o *recordingObserver) FrameReassembled(size int)      { o.frames = append(o.frames, size) }
func (o *recordingObserver) FrameDropped(reason DropReason) { o.drops = append(o.drops, reason) }
func (o *recordingObserver) SequenceGap(missed int)         { o.gaps = append(o.gaps, missed) }

func randomPayload(t *testing.T, rng *rand.Rand, n int) []byte {
	t.Helper()
	p := make([]byte, n)
	rng.Read(p)
	// A continuation packet that starts with a start marker is taken for a
	// new frame; TestMarkerInPayloadDesyncs covers that case.
	for i := range p {
		if p[i] == 0xA5 {
			p[i] = 0xA4
		}
	}
	return p
}

func feed(r *Reassembler, packets [][]byte) (out [][]byte) {
	for _, p := range packets {
		if payload, ok := r.Push(p); ok {
			out = append(out, payload)
		}
	}
	return out
}

func TestSplitReassembleRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, v := range []Version{V1, V2} {
		t.Run(v.String(), func(t *testing.T) {
			s, err := NewSplitter(v)
			require.NoError(t, err)
			r := NewReassembler(v, nil)

			for n := 0; n <= 4000; n += 7 {
				payload := randomPayload(t, rng, n)
				packets, err := s.Split(payload)
				require.NoError(t, err)
				require.Len(t, packets, PacketCount(v, n), "n=%d", n)

				for _, p := range packets {
					require.Len(t, p, PacketSize)
				}

				out := feed(r, packets)
				require.Len(t, out, 1, "n=%d", n)
				assert.True(t, bytes.Equal(payload, out[0]), "n=%d", n)
			}
		})
	}
}

func TestMarkerInPayloadDesyncs(t *testing.T) {
	for _, v := range []Version{V1, V2} {
		t.Run(v.String(), func(t *testing.T) {
			s, err := NewSplitter(v)
			require.NoError(t, err)
			obs := &recordingObserver{}
			r := NewReassembler(v, obs)

			// The second packet begins with the marker and a length that
			// can never be satisfied.
			payload := bytes.Repeat([]byte{0x11}, 200)
			at := PacketSize - v.HeaderSize()
			marker := v.marker()
			copy(payload[at:], []byte{marker[0], marker[1], 0xFF, 0xFF})

			packets, err := s.Split(payload)
			require.NoError(t, err)
			assert.Empty(t, feed(r, packets))
			assert.Equal(t, []DropReason{DropTruncated}, obs.drops)

			// The next real start marker resynchronizes.
			fresh := bytes.Repeat([]byte{0x22}, 100)
			packets, err = s.Split(fresh)
			require.NoError(t, err)
			out := feed(r, packets)
			require.Len(t, out, 1)
			assert.Equal(t, fresh, out[0])
			assert.Equal(t, []DropReason{DropTruncated, DropTruncated}, obs.drops)
		})
	}
}

func TestPacketCount(t *testing.T) {
	tests := []struct {
		v    Version
		n    int
		want int
	}{
		{V1, 0, 1},
		{V1, 56, 1},
		{V1, 57, 2},
		{V1, 58, 2},
		{V1, 116, 2},
		{V1, 117, 3},
		{V2, 50, 1},
		{V2, 51, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PacketCount(tt.v, tt.n), "%s n=%d", tt.v, tt.n)
	}
}

// A 58-byte compressed frame is the common case on the air.
func TestSplit58ByteFrame(t *testing.T) {
	payload := make([]byte, 58)
	for i := range payload {
		payload[i] = byte(i + 1)
	}

	packets, err := Split(payload)
	require.NoError(t, err)
	require.Len(t, packets, 2)

	assert.Equal(t, []byte{0xA5, 0x5A, 0x00, 0x3A}, packets[0][:4])
	assert.Equal(t, payload[:56], packets[0][4:])
	assert.Equal(t, payload[56:], packets[1][:2])
	assert.Equal(t, make([]byte, 58), packets[1][2:])

	r := NewReassembler(V1, nil)
	_, ok := r.Push(packets[0])
	assert.False(t, ok)
	out, ok := r.Push(packets[1])
	require.True(t, ok)
	assert.Equal(t, payload, out)
}

func TestSplitEmptyPayload(t *testing.T) {
	packets, err := Split(nil)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, []byte{0xA5, 0x5A, 0x00, 0x00}, packets[0][:4])

	out, ok := NewReassembler(V1, nil).Push(packets[0])
	require.True(t, ok)
	assert.Empty(t, out)
}

func TestSplitTooLarge(t *testing.T) {
	_, err := Split(make([]byte, MaxPayload+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	s, err := NewSplitter(V2)
	require.NoError(t, err)
	_, err = s.Split(make([]byte, MaxPayload+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	packets, err := Split(make([]byte, MaxPayload))
	require.NoError(t, err)
	assert.Len(t, packets, PacketCount(V1, MaxPayload))
}

func TestNewSplitterRejectsUnknownVersion(t *testing.T) {
	_, err := NewSplitter(Version(3))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSplitPacketsAreIndependent(t *testing.T) {
	packets, err := Split(make([]byte, 200))
	require.NoError(t, err)

	_ = append(packets[0], 0xFF)
	assert.Equal(t, byte(0), packets[1][0])
}

func TestV1StaleContinuation(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReassembler(V1, obs)

	packets, err := Split(bytes.Repeat([]byte{0x11}, 58))
	require.NoError(t, err)
	require.Len(t, feed(r, packets), 1)

	// A continuation with no frame in progress is measured against the
	// previous frame length.
	garbage := bytes.Repeat([]byte{0x77}, PacketSize)
	out, ok := r.Push(garbage)
	require.True(t, ok)
	assert.Equal(t, garbage[:58], out)

	// The next start marker resynchronizes.
	want := []byte("resync")
	packets, err = Split(want)
	require.NoError(t, err)
	got := feed(r, packets)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestV1OrphanBeforeFirstMarker(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReassembler(V1, obs)

	_, ok := r.Push(bytes.Repeat([]byte{0x01}, PacketSize))
	assert.False(t, ok)
	assert.Equal(t, []DropReason{DropOrphan}, obs.drops)
	assert.Equal(t, uint64(1), r.Stats().Dropped[DropOrphan])
}

func TestV1LostContinuation(t *testing.T) {
	r := NewReassembler(V1, nil)

	first, err := Split(bytes.Repeat([]byte{0xAA}, 150))
	require.NoError(t, err)
	second, err := Split(bytes.Repeat([]byte{0xBB}, 20))
	require.NoError(t, err)

	// Lose the middle packet of the first frame.
	out := feed(r, [][]byte{first[0], first[2], second[0]})
	require.Len(t, out, 1)
	assert.Equal(t, bytes.Repeat([]byte{0xBB}, 20), out[0])
	assert.Equal(t, uint64(1), r.Stats().Dropped[DropTruncated])
}

func TestV1ShortPackets(t *testing.T) {
	r := NewReassembler(V1, nil)

	payload := []byte("0123456789abcdef")
	packets, err := Split(payload)
	require.NoError(t, err)

	// Drivers may trim trailing padding.
	head := packets[0][:HeaderSizeV1+10]
	_, ok := r.Push(head)
	require.False(t, ok)
	out, ok := r.Push(payload[10:])
	require.True(t, ok)
	assert.Equal(t, payload, out)

	_, ok = r.Push([]byte{0xA5, 0x5A, 0x00})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), r.Stats().Dropped[DropRunt])
}

func TestV2DropsCorruptFrame(t *testing.T) {
	obs := &recordingObserver{}
	s, err := NewSplitter(V2)
	require.NoError(t, err)
	r := NewReassembler(V2, obs)

	packets, err := s.Split(bytes.Repeat([]byte{0x42}, 100))
	require.NoError(t, err)
	packets[1][3] ^= 0x01

	assert.Empty(t, feed(r, packets))
	assert.Equal(t, []DropReason{DropCorrupt}, obs.drops)
	assert.Empty(t, obs.frames)

	// Corruption does not poison the sequence history.
	packets, err = s.Split([]byte("next"))
	require.NoError(t, err)
	out := feed(r, packets)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("next"), out[0])
	assert.Equal(t, uint64(1), r.Stats().Frames)
}

func TestV2DropsStaleAndReplayedFrames(t *testing.T) {
	obs := &recordingObserver{}
	s, err := NewSplitter(V2)
	require.NoError(t, err)
	r := NewReassembler(V2, obs)

	first, err := s.Split([]byte("first"))
	require.NoError(t, err)
	second, err := s.Split([]byte("second"))
	require.NoError(t, err)

	require.Len(t, feed(r, second), 1)
	assert.Empty(t, feed(r, second), "replay")
	assert.Empty(t, feed(r, first), "older")
	assert.Equal(t, []DropReason{DropStale, DropStale}, obs.drops)
}

func TestV2Orphan(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReassembler(V2, obs)

	_, ok := r.Push(bytes.Repeat([]byte{0x33}, PacketSize))
	assert.False(t, ok)

	s, err := NewSplitter(V2)
	require.NoError(t, err)
	packets, err := s.Split(make([]byte, 30))
	require.NoError(t, err)
	require.Len(t, feed(r, packets), 1)

	// After a frame completes there is no stale length in v2.
	_, ok = r.Push(bytes.Repeat([]byte{0x33}, PacketSize))
	assert.False(t, ok)
	assert.Equal(t, []DropReason{DropOrphan, DropOrphan}, obs.drops)
}

func TestV2SequenceGapAndWrap(t *testing.T) {
	obs := &recordingObserver{}
	s, err := NewSplitter(V2)
	require.NoError(t, err)
	s.seq = 0xFFFE
	r := NewReassembler(V2, obs)

	var delivered int
	for i := 0; i < 5; i++ {
		packets, err := s.Split([]byte{byte(i)})
		require.NoError(t, err)
		if i == 2 {
			continue // lost on the air
		}
		delivered += len(feed(r, packets))
	}

	assert.Equal(t, 4, delivered)
	assert.Equal(t, []int{1}, obs.gaps)
	assert.Empty(t, obs.drops)
	assert.Equal(t, uint64(1), r.Stats().Gaps)
}

func TestV2HeaderLayout(t *testing.T) {
	s, err := NewSplitter(V2)
	require.NoError(t, err)
	s.seq = 0x0102

	packets, err := s.Split([]byte("abc"))
	require.NoError(t, err)
	require.Len(t, packets, 1)

	p := packets[0]
	assert.Equal(t, []byte{0xA5, 0x5B}, p[:2])
	assert.Equal(t, uint16(3), binary.BigEndian.Uint16(p[2:4]))
	assert.Equal(t, uint16(0x0102), binary.BigEndian.Uint16(p[4:6]))
	assert.Equal(t, uint32(0x352441C2), binary.BigEndian.Uint32(p[6:10]))
	assert.Equal(t, []byte("abc"), p[10:13])
}

func TestV1IgnoresV2Marker(t *testing.T) {
	s, err := NewSplitter(V2)
	require.NoError(t, err)
	packets, err := s.Split([]byte("v2 frame"))
	require.NoError(t, err)

	r := NewReassembler(V1, nil)
	_, ok := r.Push(packets[0])
	assert.False(t, ok)
	assert.Equal(t, uint64(1), r.Stats().Dropped[DropOrphan])
}

func TestReassemblerReset(t *testing.T) {
	r := NewReassembler(V1, nil)
	packets, err := Split(make([]byte, 10))
	require.NoError(t, err)
	feed(r, packets)

	r.Reset()
	_, ok := r.Push(make([]byte, PacketSize))
	assert.False(t, ok, "no stale length after Reset")
}

func TestDropReasonString(t *testing.T) {
	assert.Equal(t, "corrupt", DropCorrupt.String())
	assert.Equal(t, "truncated", DropTruncated.String())
	assert.Equal(t, "unknown", DropReason(99).String())
}
