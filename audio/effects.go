package audio

import (
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// AudioEffect processes decoded PCM before playback. Effects may modify
// samples in place.
type AudioEffect interface {
	Process(samples []int16) ([]int16, error)
	GetName() string
	Close() error
}

// MaxNormalizeGain caps the gain NormalizeEffect applies to quiet input.
const MaxNormalizeGain = 10.0

// GainEffect multiplies samples by a fixed factor with clipping.
//
// Gain values: 0.0 = silence, 1.0 = no change, >1.0 = amplification.
type GainEffect struct {
	mu   sync.RWMutex
	gain float64
}

// NewGainEffect creates a gain effect. gain must be within [0, 4].
func NewGainEffect(gain float64) (*GainEffect, error) {
	g := &GainEffect{}
	if err := g.SetGain(gain); err != nil {
		return nil, err
	}
	return g, nil
}

// NewVolumeEffect creates a gain effect from a volume percentage, where 100
// leaves samples unchanged.
func NewVolumeEffect(percent int) (*GainEffect, error) {
	return NewGainEffect(float64(percent) / 100)
}

// SetGain updates the gain during playback.
func (g *GainEffect) SetGain(gain float64) error {
	if gain < 0.0 || math.IsNaN(gain) {
		return fmt.Errorf("gain cannot be negative: %f", gain)
	}
	if gain > 4.0 {
		return fmt.Errorf("gain too high (max 4.0): %f", gain)
	}

	g.mu.Lock()
	g.gain = gain
	g.mu.Unlock()
	return nil
}

// GetGain returns the current gain.
func (g *GainEffect) GetGain() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gain
}

// Process applies the gain in place.
func (g *GainEffect) Process(samples []int16) ([]int16, error) {
	gain := g.GetGain()
	if gain == 1.0 {
		return samples, nil
	}

	clipped := applyGain(samples, gain)
	if clipped > 0 {
		logrus.WithFields(logrus.Fields{
			"function":      "GainEffect.Process",
			"clipped_count": clipped,
			"total_samples": len(samples),
			"gain":          gain,
		}).Debug("Audio clipping during gain processing")
	}
	return samples, nil
}

func (g *GainEffect) GetName() string {
	return fmt.Sprintf("Gain(%.2f)", g.GetGain())
}

func (g *GainEffect) Close() error {
	return nil
}

// NoiseGateEffect silences frames whose RMS level is below a threshold.
type NoiseGateEffect struct {
	threshold float64
}

// NewNoiseGateEffect creates a noise gate with an RMS threshold in sample
// units.
func NewNoiseGateEffect(threshold float64) *NoiseGateEffect {
	return &NoiseGateEffect{threshold: threshold}
}

// Process zeroes the frame if it is below the threshold.
func (n *NoiseGateEffect) Process(samples []int16) ([]int16, error) {
	if RMS(samples) < n.threshold {
		for i := range samples {
			samples[i] = 0
		}
	}
	return samples, nil
}

func (n *NoiseGateEffect) GetName() string {
	return fmt.Sprintf("NoiseGate(%.0f)", n.threshold)
}

func (n *NoiseGateEffect) Close() error {
	return nil
}

// NormalizeEffect steers the frame RMS toward a target with exponential
// smoothing of the gain between frames. The gain never exceeds
// MaxNormalizeGain. Silent frames leave the gain unchanged.
type NormalizeEffect struct {
	mu        sync.Mutex
	targetRMS float64
	smoothing float64
	gain      float64
}

// NewNormalizeEffect creates a normalizer. smoothing is clamped to [0, 1];
// higher values change the gain more slowly.
func NewNormalizeEffect(targetRMS, smoothing float64) *NormalizeEffect {
	return &NormalizeEffect{
		targetRMS: targetRMS,
		smoothing: math.Min(math.Max(smoothing, 0), 1),
		gain:      1.0,
	}
}

// Process applies the smoothed gain in place.
func (n *NormalizeEffect) Process(samples []int16) ([]int16, error) {
	rms := RMS(samples)
	if rms == 0 {
		return samples, nil
	}

	n.mu.Lock()
	target := n.targetRMS / (rms + 1e-10)
	n.gain = n.smoothing*n.gain + (1-n.smoothing)*target
	if n.gain > MaxNormalizeGain {
		n.gain = MaxNormalizeGain
	}
	gain := n.gain
	n.mu.Unlock()

	applyGain(samples, gain)
	return samples, nil
}

// CurrentGain returns the smoothed gain applied to the last frame.
func (n *NormalizeEffect) CurrentGain() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gain
}

func (n *NormalizeEffect) GetName() string {
	return fmt.Sprintf("Normalize(%.0f)", n.targetRMS)
}

func (n *NormalizeEffect) Close() error {
	return nil
}

// RMS returns the root mean square of samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// applyGain scales samples in place and returns how many were clipped.
func applyGain(samples []int16, gain float64) int {
	clipped := 0
	for i, s := range samples {
		f := float64(s) * gain
		switch {
		case f > math.MaxInt16:
			samples[i] = math.MaxInt16
			clipped++
		case f < math.MinInt16:
			samples[i] = math.MinInt16
			clipped++
		default:
			samples[i] = int16(f)
		}
	}
	return clipped
}

// EffectChain applies effects in the order they were added. It is safe for
// concurrent use.
type EffectChain struct {
	mu      sync.RWMutex
	effects []AudioEffect
}

// NewEffectChain creates an empty chain.
func NewEffectChain() *EffectChain {
	return &EffectChain{}
}

// AddEffect appends an effect.
func (e *EffectChain) AddEffect(effect AudioEffect) {
	e.mu.Lock()
	e.effects = append(e.effects, effect)
	n := len(e.effects)
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":     "EffectChain.AddEffect",
		"effect_name":  effect.GetName(),
		"effect_count": n,
	}).Debug("Added effect to chain")
}

// Process runs samples through every effect. The first error stops the
// chain.
func (e *EffectChain) Process(samples []int16) ([]int16, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	current := samples
	for i, effect := range e.effects {
		out, err := effect.Process(current)
		if err != nil {
			return nil, fmt.Errorf("effect %d (%s) failed: %w", i, effect.GetName(), err)
		}
		current = out
	}
	return current, nil
}

// GetEffectCount returns the number of effects in the chain.
func (e *EffectChain) GetEffectCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.effects)
}

// GetEffectNames returns the names of the effects in order.
func (e *EffectChain) GetEffectNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, len(e.effects))
	for i, effect := range e.effects {
		names[i] = effect.GetName()
	}
	return names
}

// Close closes every effect and empties the chain.
func (e *EffectChain) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for i, effect := range e.effects {
		if err := effect.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("effect %d (%s) close failed: %w", i, effect.GetName(), err)
		}
	}
	e.effects = nil
	return firstErr
}
