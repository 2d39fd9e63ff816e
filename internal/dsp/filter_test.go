package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLinspace(t *testing.T) {
	ts := Linspace(0.08, SampleRate)
	require.Len(t, ts, 640)
	assert.Equal(t, 0.0, ts[0])
	assert.InDelta(t, 1.0/SampleRate, ts[1], 1e-15)

	assert.Len(t, Linspace(0.001, SampleRate), MinSamples)
	assert.Len(t, Linspace(math.NaN(), SampleRate), MinSamples)
}

func TestNearestPowerOf2(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 0}, {1, 1}, {2, 2}, {3, 2}, {511, 256}, {512, 512}, {640, 512},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NearestPowerOf2(tt.n), "n=%d", tt.n)
	}
}

func TestNormalize(t *testing.T) {
	assert.Empty(t, Normalize(nil))
	assert.Equal(t, []float64{0, 0, 0}, Normalize([]float64{0, 1e-12, -1e-11}))
	assert.Equal(t, []float64{0.5, -1, 0}, Normalize([]float64{1, -2, math.NaN()}))
	assert.Equal(t, []float64{0, 1}, Normalize([]float64{math.Inf(1), 4}))
}

func TestNormalize_PeakIsOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.SliceOfN(rapid.Float64Range(-1e6, 1e6), 1, 100).Draw(t, "x")
		out := Normalize(x)
		peak := 0.0
		for _, v := range out {
			if math.Abs(v) > 1+1e-12 {
				t.Fatalf("sample %v exceeds unit magnitude", v)
			}
			peak = math.Max(peak, math.Abs(v))
		}
		if peak != 0 && math.Abs(peak-1) > 1e-12 {
			t.Fatalf("peak = %v, want 1", peak)
		}
	})
}

func TestMovingAverage(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}

	assert.Equal(t, x, MovingAverage(x, 1))
	assert.Equal(t, x, MovingAverage(x, 0))

	got := MovingAverage(x, 3)
	want := []float64{1.5, 2, 3, 4, 4.5}
	assert.InDeltaSlice(t, want, got, 1e-12)

	assert.Empty(t, MovingAverage(nil, 5))
}

func TestMovingAverage_NonFinite(t *testing.T) {
	got := MovingAverage([]float64{2, math.NaN(), 2, 2, 2, 2}, 3)
	for i, v := range got {
		assert.False(t, math.IsNaN(v), "sample %d is NaN", i)
	}
	assert.InDelta(t, 2, got[4], 1e-12)
}

func TestMovingAverage_ConstantIsPreserved(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := rapid.Float64Range(-100, 100).Draw(t, "c")
		n := rapid.IntRange(1, 300).Draw(t, "n")
		w := rapid.IntRange(1, 50).Draw(t, "w")
		x := make([]float64, n)
		for i := range x {
			x[i] = c
		}
		for i, v := range MovingAverage(x, w) {
			if math.Abs(v-c) > 1e-9 {
				t.Fatalf("sample %d = %v, want %v", i, v, c)
			}
		}
	})
}

func TestUnwrapPhase(t *testing.T) {
	n := 200
	wrapped := make([]float64, n)
	for i := range wrapped {
		wrapped[i] = math.Atan2(math.Sin(0.3*float64(i)), math.Cos(0.3*float64(i)))
	}
	out := UnwrapPhase(wrapped)
	for i := range out {
		assert.InDelta(t, 0.3*float64(i), out[i], 1e-9)
	}

	assert.Empty(t, UnwrapPhase(nil))
}

func TestCoherentIQ_RecoversPhase(t *testing.T) {
	ts := Linspace(0.1, SampleRate)
	fc := 400.0
	phi := 0.7
	s := make([]float64, len(ts))
	for k := range s {
		s[k] = math.Cos(2*math.Pi*fc*ts[k] + phi)
	}

	// 20 samples span exactly 2 cycles of the 800 Hz mixing image.
	i, q := CoherentIQ(s, ts, fc, 0, 20)
	mid := len(ts) / 2
	assert.InDelta(t, phi, math.Atan2(q[mid], i[mid]), 1e-6)
	assert.InDelta(t, 1, math.Hypot(i[mid], q[mid]), 1e-6)
}

func TestIntegrateSegment_Clamps(t *testing.T) {
	one := func(int) float64 { return 1 }
	assert.Equal(t, 10.0, IntegrateSegment([]float64{1, 2, 3, 4}, -3, 99, one))
	assert.Equal(t, 5.0, IntegrateSegment([]float64{1, 2, 3, 4}, 1, 3, one))
	assert.Equal(t, 0.0, IntegrateSegment([]float64{1, 2, 3, 4}, 3, 1, one))
	assert.Equal(t, 0.0, IntegrateSegment(nil, 0, 10, one))
}

func TestIntegrateSegment_NeverIndexesOutside(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.SliceOfN(rapid.Float64Range(-10, 10), 0, 64).Draw(t, "x")
		start := rapid.IntRange(-100, 100).Draw(t, "start")
		end := rapid.IntRange(-100, 100).Draw(t, "end")
		IntegrateSegment(x, start, end, func(k int) float64 {
			if k < 0 || k >= len(x) {
				t.Fatalf("reference called with %d outside [0,%d)", k, len(x))
			}
			return 1
		})
	})
}
