package modem

import (
	"github.com/jeongseonghan/modulation-studio/internal/channel"
	"github.com/jeongseonghan/modulation-studio/internal/dsp"
)

// ReceiverModel selects how the receiver oscillator is set.
type ReceiverModel string

const (
	// ReceiverManual uses the configured receiver frequency and phase as is.
	ReceiverManual ReceiverModel = "manual"
	// ReceiverPLL refines them from the received signal before detection.
	ReceiverPLL ReceiverModel = "pll"
)

// Params is the parameter record consumed by both engines.
type Params struct {
	CarrierFreq    float64        `json:"carrierFreq" yaml:"carrier_freq"`
	CarrierAmp     float64        `json:"carrierAmp" yaml:"carrier_amp"`
	MessageAmp     float64        `json:"messageAmp" yaml:"message_amp"`
	MessageFreq    float64        `json:"messageFreq" yaml:"message_freq"`
	ModIndex       float64        `json:"modIndex" yaml:"mod_index"`
	FreqDev        float64        `json:"freqDev" yaml:"freq_dev"`
	BitRate        float64        `json:"bitRate" yaml:"bit_rate"`
	Duration       float64        `json:"duration" yaml:"duration"`
	ReceiverFc     float64        `json:"receiverFc" yaml:"receiver_fc"`
	ReceiverPhase  float64        `json:"receiverPhase" yaml:"receiver_phase"`
	ReceiverModel  ReceiverModel  `json:"receiverModel" yaml:"receiver_model"`
	TimingRecovery bool           `json:"timingRecovery" yaml:"timing_recovery"`
	Channel        channel.Params `json:"channel" yaml:"channel"`
}

// DefaultParams returns the parameters of a clean 250 Hz carrier with a
// matched receiver.
func DefaultParams() Params {
	return Params{
		CarrierFreq:   250,
		CarrierAmp:    1,
		MessageAmp:    1,
		MessageFreq:   20,
		ModIndex:      0.8,
		FreqDev:       60,
		BitRate:       120,
		Duration:      0.08,
		ReceiverFc:    250,
		ReceiverModel: ReceiverManual,
		Channel:       channel.Params{SNRdB: 24, FadingDepth: 0.25},
	}
}

// Sanitize clamps every field to its physical range. Non-finite values take
// the default.
func (p Params) Sanitize() Params {
	d := DefaultParams()
	p.CarrierFreq = clampOr(p.CarrierFreq, 20, 2200, d.CarrierFreq)
	p.CarrierAmp = clampOr(p.CarrierAmp, 0.2, 5, d.CarrierAmp)
	p.MessageAmp = clampOr(p.MessageAmp, 0.1, 5, d.MessageAmp)
	p.MessageFreq = clampOr(p.MessageFreq, 1, 500, d.MessageFreq)
	p.ModIndex = clampOr(p.ModIndex, 0.1, 5, d.ModIndex)
	p.FreqDev = clampOr(p.FreqDev, 1, 600, d.FreqDev)
	p.BitRate = clampOr(p.BitRate, 10, 2000, d.BitRate)
	p.Duration = clampOr(p.Duration, 0.02, 0.4, d.Duration)
	p.ReceiverFc = clampOr(p.ReceiverFc, 0, dsp.SampleRate/2, p.CarrierFreq)
	if !dsp.IsFinite(p.ReceiverPhase) {
		p.ReceiverPhase = 0
	}
	if p.ReceiverModel != ReceiverPLL {
		p.ReceiverModel = ReceiverManual
	}
	p.Channel.FadingDepth = clampOr(p.Channel.FadingDepth, 0, channel.MaxFadingDepth, 0)
	if !dsp.IsFinite(p.Channel.SNRdB) {
		p.Channel.SNRdB = channel.DefaultSNRdB
	}
	return p
}

func clampOr(v, lo, hi, fallback float64) float64 {
	if !dsp.IsFinite(v) {
		v = fallback
	}
	return dsp.Clamp(v, lo, hi)
}

// BitSamples returns the samples per bit, never fewer than 4.
func (p Params) BitSamples() int {
	if !(p.BitRate > 0) {
		return 4
	}
	return max(4, int(dsp.SampleRate/p.BitRate))
}

// LoopConfig tunes the adaptive receiver.
type LoopConfig struct {
	// PhaseGain scales the measured phase error before it is applied.
	PhaseGain float64
	// MaxFreqCorrection bounds the frequency correction in Hz.
	MaxFreqCorrection float64
}

// DefaultLoopConfig returns the loop settings used by NewEngine.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{PhaseGain: 0.85, MaxFreqCorrection: 80}
}
