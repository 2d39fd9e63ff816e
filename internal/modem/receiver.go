package modem

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"

	"github.com/jeongseonghan/modulation-studio/internal/dsp"
)

// ReceiverEstimate is the receiver oscillator and symbol timing used for
// detection.
type ReceiverEstimate struct {
	Fc    float64 `json:"fc"`
	Phase float64 `json:"phase"`
	// TimingOffset is the symbol phase in [0, symbolSamples).
	TimingOffset int `json:"timingOffset"`
}

// symbolShift converts TimingOffset to a signed sample shift: offsets past
// half a symbol move the windows earlier.
func (r ReceiverEstimate) symbolShift(symbolSamples int) int {
	if r.TimingOffset > symbolSamples/2 {
		return r.TimingOffset - symbolSamples
	}
	return r.TimingOffset
}

// EstimateReceiver refines the receiver oscillator and symbol timing from a
// received signal. With the manual receiver model the configured frequency
// and phase pass through unchanged. Timing is searched whenever
// p.TimingRecovery is set.
//
// The PLL model is a one-shot correction over a prefix of
// min(n, max(128, 64·bitSamples)) samples: the phase error from the
// harmonic sums of the down-mixed prefix is applied with loop.PhaseGain,
// then the residual frequency is measured at the corrected phase. A
// frequency correction is kept only if it raises the harmonic coherence of
// the prefix, so a receiver that is already on frequency stays there.
func EstimateReceiver(rx, t []float64, p Params, id SchemeID, bitSamples int, loop LoopConfig) ReceiverEstimate {
	est := ReceiverEstimate{Fc: p.ReceiverFc, Phase: p.ReceiverPhase}
	if len(rx) == 0 {
		return est
	}
	bitSamples = max(1, bitSamples)

	if p.ReceiverModel == ReceiverPLL {
		limit := min(len(rx), max(128, bitSamples*64))
		if limit > 16 {
			prefix := rx[:limit]
			order := modulationOrder(id)

			sums := mixHarmonics(prefix, t, est.Fc, est.Phase)
			est.Phase += loop.PhaseGain * sums.phaseError(order)

			window := max(3, bitSamples/5)
			freqErr := estimateFrequencyError(prefix, t, est, order, window, loop.MaxFreqCorrection)
			if freqErr != 0 {
				before := sums.coherence(order)
				after := mixHarmonics(prefix, t, est.Fc+freqErr, est.Phase).coherence(order)
				if after > before {
					est.Fc += freqErr
				}
			}
		}
	}

	if p.TimingRecovery {
		est.TimingOffset = estimateTiming(rx, SymbolSamples(id, bitSamples))
	}
	return est
}

// harmonics holds the first, second and fourth power sums of a down-mixed
// signal z = s·e^{-jθ}, θ = 2π·fc·t + phase.
type harmonics struct {
	first, second, fourth complex128
}

func mixHarmonics(rx, t []float64, fc, phase float64) harmonics {
	var h harmonics
	for k, s := range rx {
		sin, cos := math.Sincos(2*math.Pi*fc*dsp.TimeAt(t, k) + phase)
		z := complex(s*cos, -s*sin)
		z2 := z * z
		h.first += z
		h.second += z2
		h.fourth += z2 * z2
	}
	return h
}

// sum returns the harmonic sum that strips data modulation of the given
// order. QPSK and 16-QAM have a negative real fourth moment, so the fourth
// sum is rotated by π to put the matched phase at zero.
func (h harmonics) sum(order int) complex128 {
	switch order {
	case 2:
		return h.second
	case 4:
		return -h.fourth
	default:
		return h.first
	}
}

// phaseError is the carrier phase error: atan2(ΣQ, ΣI) for order 1 and the
// angle of the order-th sum divided by the order otherwise.
func (h harmonics) phaseError(order int) float64 {
	z := h.sum(order)
	return math.Atan2(imag(z), real(z)) / float64(order)
}

// coherence is the magnitude of the order-th sum. It peaks when the mixing
// frequency matches the carrier.
func (h harmonics) coherence(order int) float64 {
	return cmplx.Abs(h.sum(order))
}

// estimateFrequencyError measures the residual carrier frequency as the mean
// slope of the unwrapped coherent I/Q phase. Steps of π/2 or more are
// rejected. The slope is divided by the modulation order and clamped to
// ±maxCorrection Hz.
func estimateFrequencyError(rx, t []float64, est ReceiverEstimate, order, window int, maxCorrection float64) float64 {
	i, q := dsp.CoherentIQ(rx, t, est.Fc, est.Phase, window)
	if len(i) <= 10 {
		return 0
	}

	phase := make([]float64, len(i))
	for k := range i {
		phase[k] = math.Atan2(q[k], i[k])
	}
	phase = dsp.UnwrapPhase(phase)

	steps := make([]float64, 0, len(phase)-1)
	for k := 1; k < len(phase); k++ {
		if step := phase[k] - phase[k-1]; math.Abs(step) < math.Pi/2 {
			steps = append(steps, step)
		}
	}
	if len(steps) <= 4 {
		return 0
	}

	freqErr := stat.Mean(steps, nil) * dsp.SampleRate / (2 * math.Pi * float64(order))
	return dsp.Clamp(freqErr, -maxCorrection, maxCorrection)
}

// estimateTiming searches every symbol phase in [0, symbolSamples) and keeps
// the one whose samples, taken once per symbol over the first
// min(n, 128·symbolSamples) samples, have the largest mean magnitude.
// Ties keep the earliest offset.
func estimateTiming(rx []float64, symbolSamples int) int {
	if symbolSamples <= 1 {
		return 0
	}
	evalLen := min(len(rx), symbolSamples*128)

	best := 0
	bestScore := math.Inf(-1)
	for offset := 0; offset < symbolSamples; offset++ {
		var energy float64
		count := 0
		for k := offset; k < evalLen; k += symbolSamples {
			energy += math.Abs(rx[k])
			count++
		}
		if score := energy / float64(max(1, count)); score > bestScore {
			bestScore = score
			best = offset
		}
	}
	return best
}
