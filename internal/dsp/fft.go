package dsp

import "math"

// FFTInPlace replaces x with its discrete Fourier transform. The length must
// be a power of two; lengths 0 and 1 are left unchanged.
func FFTInPlace(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}
	if n&(n-1) != 0 {
		panic("dsp: FFT length must be a power of 2")
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := -2 * math.Pi / float64(size)
		for k := 0; k < half; k++ {
			sin, cos := math.Sincos(step * float64(k))
			w := complex(cos, sin)
			for start := k; start < n; start += size {
				u := x[start]
				v := w * x[start+half]
				x[start] = u + v
				x[start+half] = u - v
			}
		}
	}
}

// Hann returns an n-point Hann window 0.5(1 - cos(2πi/(n-1))).
func Hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
