// Package frame splits compressed audio frames into fixed-size radio packets
// and reassembles them on the receiving side.
//
// # Wire Format
//
// Every packet on the air is exactly [PacketSize] (60) bytes. A frame is
// prefixed with an envelope header and the result is cut into packets, the
// last one zero-padded:
//
//	v1:  A5 5A | len u16 BE | payload
//	v2:  A5 5B | len u16 BE | seq u16 BE | crc32 u32 BE | payload
//
// The first packet carries the header and the start of the payload;
// continuation packets carry raw payload bytes and have no header of their
// own. The length counts payload bytes only.
//
// # Version 1
//
// v1 has no integrity check. A continuation packet that arrives with no
// frame in progress is appended against the last expected length, so a lost
// start packet can produce garbage frames until the next start marker. This
// matches deployed v1 transmitters.
//
// # Version 2
//
// v2 adds a 16-bit frame sequence number and a CRC-32 (IEEE) of the payload.
// The [Reassembler] drops frames that fail the CRC, frames whose sequence is
// not newer than the last delivered one, and continuation packets with no
// frame in progress. Sequence gaps are counted but the frame is delivered.
//
//	s, _ := frame.NewSplitter(frame.V2)
//	packets, err := s.Split(payload)
//
//	r := frame.NewReassembler(frame.V2, nil)
//	for _, p := range packets {
//	    if out, ok := r.Push(p); ok {
//	        // out == payload
//	    }
//	}
package frame
