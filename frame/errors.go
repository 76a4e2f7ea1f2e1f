package frame

import "errors"

var (
	// ErrPayloadTooLarge is returned by Split for payloads the 16-bit length
	// prefix cannot describe.
	ErrPayloadTooLarge = errors.New("frame payload too large")

	// ErrUnsupportedVersion is returned for a protocol version other than
	// V1 or V2.
	ErrUnsupportedVersion = errors.New("unsupported frame protocol version")
)
