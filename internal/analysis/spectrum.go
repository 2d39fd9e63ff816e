package analysis

import (
	"math"
	"math/cmplx"

	"github.com/jeongseonghan/modulation-studio/internal/dsp"
)

// MaxSpectrumSize bounds the FFT length used by ComputeSpectrum.
const MaxSpectrumSize = 512

// Spectrum is a one-sided magnitude spectrum in dB.
type Spectrum struct {
	Freq  []float64 `json:"freq"`
	MagDB []float64 `json:"magDb"`
}

// ComputeSpectrum takes the Hann-windowed FFT of the first n samples, where n
// is the largest power of two not above min(512, len(signal)), and returns
// bins 0 .. n/2-1 with magnitude 20·log10(|X|/n + 1e-8). Signals shorter than
// two samples give an empty spectrum.
func ComputeSpectrum(signal []float64, sampleRate float64) Spectrum {
	if len(signal) < 2 {
		return Spectrum{Freq: []float64{}, MagDB: []float64{}}
	}
	n := dsp.NearestPowerOf2(min(MaxSpectrumSize, len(signal)))

	window := dsp.Hann(n)
	buf := make([]complex128, n)
	for i := range buf {
		v := signal[i]
		if !dsp.IsFinite(v) {
			v = 0
		}
		buf[i] = complex(v*window[i], 0)
	}
	dsp.FFTInPlace(buf)

	half := n / 2
	out := Spectrum{Freq: make([]float64, half), MagDB: make([]float64, half)}
	for k := 0; k < half; k++ {
		out.Freq[k] = float64(k) * sampleRate / float64(n)
		out.MagDB[k] = 20 * math.Log10(cmplx.Abs(buf[k])/float64(n)+1e-8)
	}
	return out
}

// PeakFrequency returns the frequency of the strongest bin, or 0.
func (s Spectrum) PeakFrequency() float64 {
	best := math.Inf(-1)
	freq := 0.0
	for k, m := range s.MagDB {
		if m > best {
			best = m
			freq = s.Freq[k]
		}
	}
	return freq
}
