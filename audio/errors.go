package audio

import "errors"

var (
	// ErrEncodeUnsupported is returned by decode-only codecs.
	ErrEncodeUnsupported = errors.New("codec cannot encode")
	// ErrCorruptFrame is returned when a compressed frame cannot be decoded.
	ErrCorruptFrame = errors.New("corrupt audio frame")
	// ErrFrameSize is returned when a frame does not hold frameSize samples.
	ErrFrameSize = errors.New("audio frame size mismatch")
	// ErrDeviceClosed is returned by devices used before Open or after Close.
	ErrDeviceClosed = errors.New("audio device closed")
	// ErrUnknownCodec is returned by NewCodec for an unrecognized name.
	ErrUnknownCodec = errors.New("unknown audio codec")
)
