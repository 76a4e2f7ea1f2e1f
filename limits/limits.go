// Package limits provides centralized size limits for the rfvox radio protocol.
// This ensures consistent validation across the frame codec, the crypto engine
// and the key loader.
package limits

import (
	"errors"
	"fmt"
)

const (
	// PacketSize is the fixed radio packet size in bytes. Every packet on the
	// air is exactly this long; the last packet of a frame is zero-padded.
	PacketSize = 60

	// MaxFramePayload is the largest payload a frame envelope can describe.
	// The envelope length prefix is an unsigned 16-bit big-endian integer.
	MaxFramePayload = 0xFFFF

	// RSAKeyBits is the default RSA modulus size for both the plain and the
	// hybrid key pairs.
	RSAKeyBits = 4096

	// RSACiphertextChunk is the ciphertext block produced for each RSA chunk
	// (the modulus size in bytes).
	RSACiphertextChunk = RSAKeyBits / 8

	// RSAPlaintextChunk is the largest plaintext chunk OAEP-SHA256 can seal
	// with a 4096-bit key: k - 2*hLen - 2 = 512 - 64 - 2.
	RSAPlaintextChunk = RSACiphertextChunk - 2*32 - 2

	// MaxFrameSamples bounds a single PCM frame (120 ms at 48 kHz, the
	// longest Opus frame duration).
	MaxFrameSamples = 5760

	// MaxKeyFileSize is the largest key file the loader will read.
	MaxKeyFileSize = 64 * 1024
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateFramePayload checks that a payload fits in one frame envelope.
// Empty payloads are valid frames.
func ValidateFramePayload(payload []byte) error {
	if len(payload) > MaxFramePayload {
		return fmt.Errorf("%w: frame payload %d exceeds limit %d", ErrMessageTooLarge, len(payload), MaxFramePayload)
	}
	return nil
}

// ValidateFrameSamples checks a PCM frame length requested from an audio
// device or codec.
func ValidateFrameSamples(frameSize int) error {
	if frameSize <= 0 {
		return fmt.Errorf("invalid frame size %d", frameSize)
	}
	if frameSize > MaxFrameSamples {
		return fmt.Errorf("%w: frame size %d exceeds limit %d", ErrMessageTooLarge, frameSize, MaxFrameSamples)
	}
	return nil
}

// ValidateKeyFile validates raw key file contents before parsing.
func ValidateKeyFile(data []byte) error {
	return ValidateMessageSize(data, MaxKeyFileSize)
}
