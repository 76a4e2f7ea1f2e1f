// Package limits provides centralized size constants and validation functions
// for the rfvox radio protocol.
//
// # Size Hierarchy
//
//   - PacketSize (60 bytes): the fixed radio packet. Frames are split into an
//     integral number of packets and the last one is zero-padded.
//
//   - MaxFramePayload (65535 bytes): the envelope length prefix is a 16-bit
//     big-endian integer, so no single frame can carry more.
//
//   - RSAPlaintextChunk / RSACiphertextChunk (446 / 512 bytes): the chunking
//     granularity of RSA-4096 with OAEP-SHA256. These are protocol constants
//     and are not carried in-band; they must change together with RSAKeyBits.
//
// # Validation Functions
//
//	if err := limits.ValidateFramePayload(payload); err != nil {
//	    // errors.Is(err, limits.ErrMessageTooLarge)
//	}
//
// The generic ValidateMessageSize rejects empty input as well; frame payloads
// may legitimately be empty and use ValidateFramePayload instead.
package limits
