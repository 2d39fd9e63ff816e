package modem

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeongseonghan/modulation-studio/internal/dsp"
)

func carrier(n int, fc, phase float64) ([]float64, []float64) {
	t := make([]float64, n)
	s := make([]float64, n)
	for i := range s {
		t[i] = float64(i) / dsp.SampleRate
		s[i] = math.Cos(2*math.Pi*fc*t[i] + phase)
	}
	return s, t
}

func TestEstimateReceiver_ManualPassesThrough(t *testing.T) {
	rx, ts := carrier(800, 300, 0.4)
	p := DefaultParams()
	p.ReceiverFc = 310
	p.ReceiverPhase = 1.1

	est := EstimateReceiver(rx, ts, p, ASK, 36, DefaultLoopConfig())
	assert.Equal(t, ReceiverEstimate{Fc: 310, Phase: 1.1}, est)
}

func TestEstimateReceiver_EmptyInput(t *testing.T) {
	p := DefaultParams()
	p.ReceiverModel = ReceiverPLL
	p.TimingRecovery = true
	est := EstimateReceiver(nil, nil, p, BPSK, 36, DefaultLoopConfig())
	assert.Equal(t, ReceiverEstimate{Fc: p.ReceiverFc, Phase: p.ReceiverPhase}, est)
}

func TestEstimateReceiver_PLLTracksCarrier(t *testing.T) {
	rx, ts := carrier(1120, 280, 0)
	p := DefaultParams()
	p.CarrierFreq = 280
	p.ReceiverFc = 298
	p.ReceiverPhase = 35 * math.Pi / 180
	p.ReceiverModel = ReceiverPLL

	est := EstimateReceiver(rx, ts, p, ASK, 36, DefaultLoopConfig())
	t.Logf("estimate fc=%.3f Hz phase=%.2f deg", est.Fc, est.Phase*180/math.Pi)
	assert.InDelta(t, 280, est.Fc, 1.5)
}

func TestEstimateReceiver_PLLCorrectsPhase(t *testing.T) {
	rx, ts := carrier(2400, 280, 0)
	p := DefaultParams()
	p.CarrierFreq = 280
	p.ReceiverFc = 280
	p.ReceiverPhase = 35 * math.Pi / 180
	p.ReceiverModel = ReceiverPLL

	est := EstimateReceiver(rx, ts, p, ASK, 36, DefaultLoopConfig())
	// 0.85 loop gain leaves 15% of the 35° error.
	assert.InDelta(t, 0.15*35, est.Phase*180/math.Pi, 1)
	assert.InDelta(t, 280, est.Fc, 0.5)
}

func TestEstimateReceiver_FrequencyClamp(t *testing.T) {
	rx, ts := carrier(1120, 280, 0)
	p := DefaultParams()
	p.ReceiverFc = 400
	p.ReceiverModel = ReceiverPLL

	est := EstimateReceiver(rx, ts, p, ASK, 36, LoopConfig{PhaseGain: 0.85, MaxFreqCorrection: 80})
	assert.InDelta(t, 320, est.Fc, 1e-9)
}

func TestEstimateTiming_PicksLargestMagnitudePhase(t *testing.T) {
	const symbolSamples = 40
	rx := make([]float64, 40*symbolSamples)
	for i := range rx {
		rx[i] = 0.1
		if i%symbolSamples == 13 {
			rx[i] = -1
		}
	}
	assert.Equal(t, 13, estimateTiming(rx, symbolSamples))
}

func TestEstimateTiming_TiesKeepEarliest(t *testing.T) {
	rx := make([]float64, 400)
	for i := range rx {
		rx[i] = 0.5
	}
	assert.Equal(t, 0, estimateTiming(rx, 36))
	assert.Equal(t, 0, estimateTiming(rx, 1))
}

func TestEstimateTiming_BoundedWindow(t *testing.T) {
	const symbolSamples = 4
	rx := make([]float64, 200*symbolSamples)
	for i := range rx {
		switch {
		case i < 128*symbolSamples && i%symbolSamples == 1:
			rx[i] = 1
		case i >= 128*symbolSamples && i%symbolSamples == 3:
			rx[i] = 100
		}
	}
	assert.Equal(t, 1, estimateTiming(rx, symbolSamples))
}

func TestReceiverEstimate_SymbolShift(t *testing.T) {
	assert.Equal(t, 0, ReceiverEstimate{TimingOffset: 0}.symbolShift(36))
	assert.Equal(t, 18, ReceiverEstimate{TimingOffset: 18}.symbolShift(36))
	assert.Equal(t, -2, ReceiverEstimate{TimingOffset: 34}.symbolShift(36))
}

func TestEstimateReceiver_PLLKeepsMatchedReceiver(t *testing.T) {
	for _, id := range []SchemeID{ASK, FSK, BPSK} {
		t.Run(string(id), func(t *testing.T) {
			rx, ts := carrier(2400, 280, 0)
			p := DefaultParams()
			p.CarrierFreq = 280
			p.ReceiverFc = 280
			p.ReceiverModel = ReceiverPLL

			est := EstimateReceiver(rx, ts, p, id, 36, DefaultLoopConfig())
			assert.InDelta(t, 280, est.Fc, 0.1)
			assert.InDelta(t, 0, est.Phase, 0.02)
		})
	}
}

func TestHarmonics_PhaseError(t *testing.T) {
	rx, ts := carrier(1600, 300, 0)
	h := mixHarmonics(rx, ts, 300, 0.3)
	assert.InDelta(t, -0.3, h.phaseError(1), 0.01)
	assert.InDelta(t, -0.3, h.phaseError(2), 0.01)

	// A QPSK point at π/4 reads as zero phase error on a matched receiver.
	qpsk, ts := carrier(1600, 300, math.Pi/4)
	assert.InDelta(t, 0, mixHarmonics(qpsk, ts, 300, 0).phaseError(4), 0.01)
	assert.InDelta(t, -0.3, mixHarmonics(qpsk, ts, 300, 0.3).phaseError(4), 0.01)
}

func TestHarmonics_CoherencePeaksOnFrequency(t *testing.T) {
	rx, ts := carrier(1600, 300, 0)
	matched := mixHarmonics(rx, ts, 300, 0).coherence(1)
	assert.Greater(t, matched, mixHarmonics(rx, ts, 305, 0).coherence(1))
	assert.Greater(t, matched, mixHarmonics(rx, ts, 290, 0).coherence(1))
}
