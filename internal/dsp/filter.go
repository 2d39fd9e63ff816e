package dsp

import "math"

// MovingAverage smooths a signal with a centred boxcar of the given width.
// Windows are shortened at the edges and averaged over the samples they
// actually cover. Non-finite samples contribute zero.
func MovingAverage(signal []float64, width int) []float64 {
	n := len(signal)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if width < 1 {
		width = 1
	}

	prefix := make([]float64, n+1)
	for i, v := range signal {
		if !IsFinite(v) {
			v = 0
		}
		prefix[i+1] = prefix[i] + v
	}

	before := width / 2
	after := width - 1 - before
	for i := range out {
		lo := max(0, i-before)
		hi := min(n-1, i+after)
		out[i] = (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
	}
	return out
}

// UnwrapPhase removes 2π jumps between consecutive phase samples.
func UnwrapPhase(phase []float64) []float64 {
	out := make([]float64, len(phase))
	if len(phase) == 0 {
		return out
	}
	out[0] = phase[0]
	offset := 0.0
	for i := 1; i < len(phase); i++ {
		d := phase[i] - phase[i-1]
		if d > math.Pi {
			offset -= 2 * math.Pi * math.Ceil((d-math.Pi)/(2*math.Pi))
		} else if d < -math.Pi {
			offset += 2 * math.Pi * math.Ceil((-d-math.Pi)/(2*math.Pi))
		}
		out[i] = phase[i] + offset
	}
	return out
}

// CoherentIQ mixes a real passband signal down with a local oscillator at fc
// and phase, then low-pass filters both rails with a moving average:
// I = MA(2·s·cos θ), Q = MA(-2·s·sin θ), θ = 2π·fc·t + phase.
func CoherentIQ(signal, t []float64, fc, phase float64, window int) (i, q []float64) {
	mixI := make([]float64, len(signal))
	mixQ := make([]float64, len(signal))
	for k, s := range signal {
		theta := 2*math.Pi*fc*TimeAt(t, k) + phase
		mixI[k] = 2 * s * math.Cos(theta)
		mixQ[k] = -2 * s * math.Sin(theta)
	}
	return MovingAverage(mixI, window), MovingAverage(mixQ, window)
}

// SegmentBounds clamps [start, end) to a signal of length n.
func SegmentBounds(start, end, n int) (from, to int) {
	from = min(max(start, 0), n)
	to = min(max(end, 0), n)
	return from, to
}

// IntegrateSegment sums signal[k]·ref(k) over the clamped window [start, end).
// An empty window sums to 0.
func IntegrateSegment(signal []float64, start, end int, ref func(k int) float64) float64 {
	from, to := SegmentBounds(start, end, len(signal))
	if to <= from {
		return 0
	}
	sum := 0.0
	for k := from; k < to; k++ {
		sum += signal[k] * ref(k)
	}
	return sum
}
