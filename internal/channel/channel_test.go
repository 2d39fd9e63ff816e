package channel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeongseonghan/modulation-studio/internal/dsp"
	"github.com/jeongseonghan/modulation-studio/internal/rng"
)

type zeroNoise struct{}

func (zeroNoise) Gaussian() float64 { return 0 }

type unitNoise struct{}

func (unitNoise) Gaussian() float64 { return 1 }

func tone(n int, f float64) ([]float64, []float64) {
	t := make([]float64, n)
	s := make([]float64, n)
	for i := range s {
		t[i] = float64(i) / dsp.SampleRate
		s[i] = math.Cos(2 * math.Pi * f * t[i])
	}
	return s, t
}

func TestApply_Empty(t *testing.T) {
	out := Apply(nil, nil, Params{SNRdB: 20}, rng.NewSeeded(1))
	assert.Empty(t, out)
}

func TestApply_FadingEnvelope(t *testing.T) {
	s, ts := tone(800, 300)
	out := Apply(s, ts, Params{SNRdB: 20, FadingDepth: 0.5}, zeroNoise{})
	require.Len(t, out, len(s))

	for i := range out {
		want := s[i] * Envelope(ts[i], 0.5)
		assert.InDelta(t, want, out[i], 1e-12)
	}
	// At t=0 the envelope sits halfway through its swing.
	assert.InDelta(t, 0.75, Envelope(0, 0.5), 1e-12)
}

func TestApply_DepthIsClamped(t *testing.T) {
	s, ts := tone(400, 100)
	deep := Apply(s, ts, Params{SNRdB: 20, FadingDepth: 3}, zeroNoise{})
	capped := Apply(s, ts, Params{SNRdB: 20, FadingDepth: MaxFadingDepth}, zeroNoise{})
	assert.Equal(t, capped, deep)

	negative := Apply(s, ts, Params{SNRdB: 20, FadingDepth: -1}, zeroNoise{})
	assert.Equal(t, s, negative)
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	s, ts := tone(256, 200)
	orig := append([]float64(nil), s...)
	Apply(s, ts, Params{SNRdB: 0, FadingDepth: 0.4}, rng.NewSeeded(3))
	assert.Equal(t, orig, s)
}

func TestApply_MeasuredSNR(t *testing.T) {
	s, ts := tone(16000, 440)
	for _, snr := range []float64{0, 10, 20} {
		out := Apply(s, ts, Params{SNRdB: snr}, rng.NewSeeded(11))
		noise := make([]float64, len(s))
		for i := range s {
			noise[i] = out[i] - s[i]
		}
		measured := 10 * math.Log10(SignalPower(s)/SignalPower(noise))
		t.Logf("SNR target=%.1f dB measured=%.2f dB", snr, measured)
		assert.InDelta(t, snr, measured, 0.5)
	}
}

func TestApply_NoiseFollowsFadedPower(t *testing.T) {
	s, ts := tone(8000, 300)
	p := Params{SNRdB: 0, FadingDepth: 0.95}

	faded := make([]float64, len(s))
	for i := range s {
		faded[i] = s[i] * Envelope(ts[i], p.FadingDepth)
	}
	sigma := math.Sqrt(SignalPower(faded))
	require.Less(t, sigma, math.Sqrt(SignalPower(s))*0.7)

	out := Apply(s, ts, p, unitNoise{})
	for i := range out {
		assert.InDelta(t, sigma, out[i]-faded[i], 1e-9)
	}
}

func TestApply_MeasuredSNRWithFading(t *testing.T) {
	s, ts := tone(16000, 440)
	for _, depth := range []float64{0.3, 0.8} {
		out := Apply(s, ts, Params{SNRdB: 10, FadingDepth: depth}, rng.NewSeeded(11))
		faded := make([]float64, len(s))
		noise := make([]float64, len(s))
		for i := range s {
			faded[i] = s[i] * Envelope(ts[i], depth)
			noise[i] = out[i] - faded[i]
		}
		measured := 10 * math.Log10(SignalPower(faded)/SignalPower(noise))
		t.Logf("depth=%.1f measured=%.2f dB", depth, measured)
		assert.InDelta(t, 10, measured, 0.5)
	}
}

func TestApply_ShortTimeBase(t *testing.T) {
	s, _ := tone(100, 50)
	out := Apply(s, nil, Params{SNRdB: 20, FadingDepth: 0.3}, zeroNoise{})
	require.Len(t, out, 100)
	assert.InDelta(t, s[99]*Envelope(99.0/dsp.SampleRate, 0.3), out[99], 1e-12)
}

func TestNoiseVariance(t *testing.T) {
	assert.InDelta(t, 0.01, NoiseVariance(1, 20), 1e-12)
	assert.InDelta(t, NoiseVariance(1, DefaultSNRdB), NoiseVariance(1, math.NaN()), 1e-15)
	assert.InDelta(t, NoiseVariance(1, DefaultSNRdB), NoiseVariance(1, math.Inf(1)), 1e-15)
	assert.Equal(t, minPower, SignalPower([]float64{0, 0}))
}
