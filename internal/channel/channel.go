// Package channel applies the simulated propagation path: a slow
// deterministic amplitude fade followed by additive white Gaussian noise.
package channel

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/jeongseonghan/modulation-studio/internal/dsp"
)

const (
	// FadeHz is the rate of the deterministic fading envelope.
	FadeHz = 2.0
	// MaxFadingDepth is the upper bound applied to Params.FadingDepth.
	MaxFadingDepth = 0.95
	// DefaultSNRdB replaces a non-finite SNR.
	DefaultSNRdB = 30.0

	minPower     = 1e-10
	minLinearSNR = 1e-9
)

// Params describes the channel impairments.
type Params struct {
	SNRdB       float64 `json:"snrDb" yaml:"snr_db"`
	FadingDepth float64 `json:"fadingDepth" yaml:"fading_depth"`
}

// NoiseSource supplies standard normal deviates.
type NoiseSource interface {
	Gaussian() float64
}

// Envelope returns the fading gain at time t for the given depth.
func Envelope(t, depth float64) float64 {
	return 1 - depth + depth*(0.5+0.5*math.Sin(2*math.Pi*FadeHz*t))
}

// SignalPower returns the mean squared value of the signal, floored at 1e-10.
func SignalPower(signal []float64) float64 {
	if len(signal) == 0 {
		return minPower
	}
	return math.Max(minPower, floats.Dot(signal, signal)/float64(len(signal)))
}

// NoiseVariance returns the noise variance that yields snrDB against power.
func NoiseVariance(power, snrDB float64) float64 {
	if !dsp.IsFinite(snrDB) {
		snrDB = DefaultSNRdB
	}
	return power / math.Max(minLinearSNR, math.Pow(10, snrDB/10))
}

// Apply fades and corrupts a clean signal. Noise variance is derived from the
// power of the faded signal, so SNRdB holds at the receiver input. Time
// samples missing from t are taken as i/SampleRate. The input is never
// modified.
func Apply(signal, t []float64, p Params, noise NoiseSource) []float64 {
	out := make([]float64, len(signal))
	if len(signal) == 0 {
		return out
	}

	depth := dsp.Clamp(p.FadingDepth, 0, MaxFadingDepth)
	for i, s := range signal {
		out[i] = s * Envelope(dsp.TimeAt(t, i), depth)
	}

	sigma := math.Sqrt(NoiseVariance(SignalPower(out), p.SNRdB))
	for i := range out {
		out[i] += sigma * noise.Gaussian()
	}
	return out
}
