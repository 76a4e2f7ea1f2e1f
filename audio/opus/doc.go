// Package opus provides an audio.Codec backed by libopus through
// gopkg.in/hraban/opus.v2. It requires cgo and the libopus development
// headers. For decode-only use without cgo see audio.OpusDecoder.
package opus
