package audio

import "fmt"

// Resampler converts mono or interleaved PCM between sample rates with
// linear interpolation. It keeps no state between calls; each frame is
// resampled independently.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
}

// NewResampler creates a resampler.
func NewResampler(inputRate, outputRate, channels int) (*Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", inputRate, outputRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	return &Resampler{inputRate: inputRate, outputRate: outputRate, channels: channels}, nil
}

// Resample returns input converted to the output rate.
func (r *Resampler) Resample(input []int16) []int16 {
	if r.inputRate == r.outputRate || len(input) == 0 {
		out := make([]int16, len(input))
		copy(out, input)
		return out
	}

	inFrames := len(input) / r.channels
	outFrames := int(int64(inFrames) * int64(r.outputRate) / int64(r.inputRate))
	out := make([]int16, outFrames*r.channels)
	step := float64(r.inputRate) / float64(r.outputRate)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		for ch := 0; ch < r.channels; ch++ {
			a := input[idx*r.channels+ch]
			b := a
			if idx+1 < inFrames {
				b = input[(idx+1)*r.channels+ch]
			}
			out[i*r.channels+ch] = int16(float64(a) + (float64(b)-float64(a))*frac)
		}
	}
	return out
}

// fitFrame pads with silence or truncates pcm to exactly n samples.
func fitFrame(pcm []int16, n int) []int16 {
	if len(pcm) == n {
		return pcm
	}
	out := make([]int16, n)
	copy(out, pcm)
	return out
}
