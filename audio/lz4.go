package audio

import (
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// LZ4 frame layout: one tag byte, then either the raw PCM bytes or an LZ4
// block.
const (
	lz4TagRaw   byte = 0
	lz4TagBlock byte = 1
)

// compressorPool reuses LZ4 block compressors and their hash tables.
var compressorPool = sync.Pool{
	New: func() interface{} {
		return new(lz4.Compressor)
	},
}

// LZ4Codec compresses PCM frames with LZ4 block compression. Frames that do
// not shrink are sent raw.
type LZ4Codec struct {
	pcm PCMCodec
}

// NewLZ4Codec creates an LZ4 codec for the given channel count.
func NewLZ4Codec(channels int) *LZ4Codec {
	return &LZ4Codec{pcm: PCMCodec{Channels: channels}}
}

// Encode compresses one frame.
func (c *LZ4Codec) Encode(pcm []int16, frameSize int) ([]byte, error) {
	raw, err := c.pcm.Encode(pcm, frameSize)
	if err != nil {
		return nil, err
	}

	comp := compressorPool.Get().(*lz4.Compressor)
	defer compressorPool.Put(comp)

	out := make([]byte, 1+lz4.CompressBlockBound(len(raw)))
	n, err := comp.CompressBlock(raw, out[1:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	if n == 0 || n >= len(raw) {
		out = append(out[:1], raw...)
		out[0] = lz4TagRaw
		return out, nil
	}
	out[0] = lz4TagBlock
	return out[:1+n], nil
}

// Decode decompresses one frame.
func (c *LZ4Codec) Decode(data []byte, frameSize int) ([]int16, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrCorruptFrame)
	}

	switch data[0] {
	case lz4TagRaw:
		return c.pcm.Decode(data[1:], frameSize)
	case lz4TagBlock:
		raw := make([]byte, 2*frameSize*c.pcm.channels())
		n, err := lz4.UncompressBlock(data[1:], raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorruptFrame, err)
		}
		return c.pcm.Decode(raw[:n], frameSize)
	default:
		return nil, fmt.Errorf("%w: unknown tag %#x", ErrCorruptFrame, data[0])
	}
}
