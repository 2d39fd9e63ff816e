// Package dsp holds the array utilities shared by the modulators, the channel
// model and the analysis functions.
package dsp

import "math"

// SampleRate is the fixed simulator sample rate in Hz.
const SampleRate = 8000

// MinSamples is the smallest time base Linspace produces.
const MinSamples = 64

// Linspace builds the uniform time base for a duration in seconds:
// n = max(64, floor(duration*sampleRate)) samples spaced 1/sampleRate apart.
func Linspace(duration, sampleRate float64) []float64 {
	if !(sampleRate > 0) {
		sampleRate = SampleRate
	}
	n := MinSamples
	if d := math.Floor(duration * sampleRate); d > float64(n) && !math.IsInf(d, 1) {
		n = int(d)
	}
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) / sampleRate
	}
	return t
}

// TimeAt returns t[i], or i/SampleRate when the time base is too short.
func TimeAt(t []float64, i int) float64 {
	if i < len(t) {
		return t[i]
	}
	return float64(i) / SampleRate
}

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NearestPowerOf2 returns the largest power of two not greater than n, or 0.
func NearestPowerOf2(n int) int {
	if n < 1 {
		return 0
	}
	p := 1
	for p<<1 <= n {
		p <<= 1
	}
	return p
}

// Normalize scales a signal so its largest finite magnitude is 1.
// Non-finite samples become 0. A signal whose peak is below 1e-9 comes back
// as zeros.
func Normalize(signal []float64) []float64 {
	out := make([]float64, len(signal))
	peak := 0.0
	for _, v := range signal {
		if IsFinite(v) {
			peak = math.Max(peak, math.Abs(v))
		}
	}
	if peak < 1e-9 {
		return out
	}
	for i, v := range signal {
		if IsFinite(v) {
			out[i] = v / peak
		}
	}
	return out
}
