package dsp

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/dsp/fourier"
)

func realToComplex(x []float64) []complex128 {
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = complex(v, 0)
	}
	return out
}

func TestFFTInPlace_KnownValues(t *testing.T) {
	x := []complex128{1, 1, 1, 1}
	FFTInPlace(x)

	assert.InDelta(t, 0, cmplx.Abs(x[0]-4), 1e-12)
	for i := 1; i < 4; i++ {
		assert.InDelta(t, 0, cmplx.Abs(x[i]), 1e-12, "bin %d", i)
	}

	impulse := []complex128{0, 1, 0, 0, 0, 0, 0, 0}
	FFTInPlace(impulse)
	for k, v := range impulse {
		want := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/8))
		assert.InDelta(t, 0, cmplx.Abs(v-want), 1e-12, "bin %d", k)
	}
}

func TestFFTInPlace_Parseval(t *testing.T) {
	n := 256
	x := make([]complex128, n)
	var sumX float64
	for i := range x {
		x[i] = complex(math.Sin(2*math.Pi*float64(i)/float64(n)), 0.25*math.Cos(2*math.Pi*9*float64(i)/float64(n)))
		sumX += real(x[i])*real(x[i]) + imag(x[i])*imag(x[i])
	}

	FFTInPlace(x)
	var sumY float64
	for _, v := range x {
		sumY += real(v)*real(v) + imag(v)*imag(v)
	}
	assert.InDelta(t, sumX, sumY/float64(n), 1e-6)
}

func TestFFTInPlace_MatchesGonum(t *testing.T) {
	for _, n := range []int{2, 16, 128, 512} {
		x := make([]float64, n)
		for i := range x {
			x[i] = math.Sin(2*math.Pi*5*float64(i)/float64(n)) + 0.3*math.Cos(2*math.Pi*17*float64(i)/float64(n)) + 0.1
		}

		got := realToComplex(x)
		FFTInPlace(got)
		want := fourier.NewFFT(n).Coefficients(nil, x)

		// gonum returns the n/2+1 non-negative frequency bins.
		for k := range want {
			assert.InDelta(t, 0, cmplx.Abs(got[k]-want[k]), 1e-9, "n=%d bin %d", n, k)
		}
	}
}

func TestFFTInPlace_ComplexMatchesGonum(t *testing.T) {
	n := 64
	x := make([]complex128, n)
	for i := range x {
		x[i] = complex(math.Cos(0.3*float64(i)), math.Sin(1.1*float64(i)))
	}
	want := fourier.NewCmplxFFT(n).Coefficients(nil, append([]complex128(nil), x...))

	FFTInPlace(x)
	for k := range want {
		assert.InDelta(t, 0, cmplx.Abs(x[k]-want[k]), 1e-9, "bin %d", k)
	}
}

func TestFFTInPlace_NonPowerOfTwoPanics(t *testing.T) {
	assert.Panics(t, func() { FFTInPlace(make([]complex128, 6)) })
	assert.NotPanics(t, func() { FFTInPlace(nil) })
}

func TestHann(t *testing.T) {
	w := Hann(5)
	want := []float64{0, 0.5, 1, 0.5, 0}
	assert.InDeltaSlice(t, want, w, 1e-12)
	assert.Equal(t, []float64{1}, Hann(1))
}
