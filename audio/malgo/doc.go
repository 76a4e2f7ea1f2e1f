// Package malgo implements audio.Input and audio.Output on top of miniaudio
// through github.com/gen2brain/malgo. It requires cgo.
//
// Both devices buffer between the miniaudio callback thread and the
// blocking Read/Write calls with an audio.PCMBuffer. Capture keeps the most
// recent buffered audio when the reader falls behind; playback outputs
// silence on underflow.
package malgo
