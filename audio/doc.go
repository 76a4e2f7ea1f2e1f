// Package audio defines the audio boundary of rfvox: the codec that turns PCM
// frames into compressed payloads, the capture and playback devices, and the
// optional output effects applied before playback.
//
// # Pipeline
//
//	Transmit: Input.Read → Codec.Encode → (crypto, frame, radio)
//	Receive:  (radio, frame, crypto) → Codec.Decode → EffectChain → Output.Write
//
// # Codecs
//
//   - [PCMCodec]: raw little-endian samples, useful over links with room to
//     spare and in tests.
//   - [LZ4Codec]: PCM compressed with LZ4 block compression.
//   - [OpusDecoder]: pure-Go Opus decoding for receive-only monitoring of
//     Opus transmitters. It cannot encode.
//
// Full Opus encode and decode (cgo, libopus) lives in package audio/opus;
// a miniaudio device implementation lives in package audio/malgo.
//
// # Effects
//
// Effects run on decoded PCM in order:
//
//	chain := audio.NewEffectChain()
//	chain.AddEffect(audio.NewNoiseGateEffect(300))
//	chain.AddEffect(audio.NewNormalizeEffect(3000, 0.9))
//	gain, _ := audio.NewVolumeEffect(80)
//	chain.AddEffect(gain)
//	out, err := chain.Process(pcm)
package audio
