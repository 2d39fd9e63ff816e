// Package preset holds the user-facing control record, its defaults and the
// named scenario presets.
package preset

import (
	"fmt"
	"math"

	"github.com/jeongseonghan/modulation-studio/internal/channel"
	"github.com/jeongseonghan/modulation-studio/internal/modem"
)

// Controls is the full set of user controls for one simulation. Receiver
// offsets are relative to the transmitter: RxCarrierOffset in Hz,
// RxPhaseOffset in degrees.
type Controls struct {
	Scheme          modem.SchemeID      `json:"scheme" yaml:"scheme"`
	Baseband        modem.Shape         `json:"baseband" yaml:"baseband"`
	CarrierFreq     float64             `json:"carrierFreq" yaml:"carrierFreq"`
	MessageFreq     float64             `json:"messageFreq" yaml:"messageFreq"`
	CarrierAmp      float64             `json:"carrierAmp" yaml:"carrierAmp"`
	MessageAmp      float64             `json:"messageAmp" yaml:"messageAmp"`
	ModIndex        float64             `json:"modIndex" yaml:"modIndex"`
	FreqDev         float64             `json:"freqDev" yaml:"freqDev"`
	BitRate         float64             `json:"bitRate" yaml:"bitRate"`
	Duration        float64             `json:"duration" yaml:"duration"`
	SNRdB           float64             `json:"snrDb" yaml:"snrDb"`
	FadingDepth     float64             `json:"fadingDepth" yaml:"fadingDepth"`
	RxCarrierOffset float64             `json:"rxCarrierOffset" yaml:"rxCarrierOffset"`
	RxPhaseOffset   float64             `json:"rxPhaseOffset" yaml:"rxPhaseOffset"`
	ReceiverModel   modem.ReceiverModel `json:"receiverModel" yaml:"receiverModel"`
	TimingRecovery  bool                `json:"timingRecovery" yaml:"timingRecovery"`
	CompareMode     bool                `json:"compareMode" yaml:"compareMode"`
	CompareScheme   modem.SchemeID      `json:"compareScheme" yaml:"compareScheme"`
	Deterministic   bool                `json:"deterministicMode" yaml:"deterministicMode"`
	Seed            uint32              `json:"rngSeed" yaml:"rngSeed"`
}

// Defaults returns the controls a fresh session starts with.
func Defaults() Controls {
	return Controls{
		Scheme:        modem.AMDSBLC,
		Baseband:      modem.ShapeSine,
		CarrierFreq:   250,
		MessageFreq:   20,
		CarrierAmp:    1,
		MessageAmp:    1,
		ModIndex:      0.8,
		FreqDev:       60,
		BitRate:       120,
		Duration:      0.08,
		SNRdB:         24,
		FadingDepth:   0.25,
		ReceiverModel: modem.ReceiverManual,
		CompareScheme: modem.QPSK,
	}
}

// Validate checks the scheme and waveform names.
func (c Controls) Validate() error {
	if _, err := modem.Lookup(c.Scheme); err != nil {
		return fmt.Errorf("scheme: %w", err)
	}
	if c.CompareMode {
		if _, err := modem.Lookup(c.CompareScheme); err != nil {
			return fmt.Errorf("compare scheme: %w", err)
		}
	}
	switch c.Baseband {
	case modem.ShapeSine, modem.ShapeSquare, modem.ShapeTriangle, "":
	default:
		return fmt.Errorf("%w: unknown baseband shape %q", ErrInvalidControls, c.Baseband)
	}
	switch c.ReceiverModel {
	case modem.ReceiverManual, modem.ReceiverPLL, "":
	default:
		return fmt.Errorf("%w: unknown receiver model %q", ErrInvalidControls, c.ReceiverModel)
	}
	return nil
}

// Params converts the controls to sanitised engine parameters. The receiver
// oscillator runs at CarrierFreq+RxCarrierOffset with phase RxPhaseOffset.
func (c Controls) Params() modem.Params {
	offset := clampOffset(c.RxCarrierOffset, 300)
	phaseDeg := clampOffset(c.RxPhaseOffset, 180)
	p := modem.Params{
		CarrierFreq:    c.CarrierFreq,
		CarrierAmp:     c.CarrierAmp,
		MessageAmp:     c.MessageAmp,
		MessageFreq:    c.MessageFreq,
		ModIndex:       c.ModIndex,
		FreqDev:        c.FreqDev,
		BitRate:        c.BitRate,
		Duration:       c.Duration,
		ReceiverPhase:  phaseDeg * math.Pi / 180,
		ReceiverModel:  c.ReceiverModel,
		TimingRecovery: c.TimingRecovery,
		Channel: channel.Params{
			SNRdB:       c.SNRdB,
			FadingDepth: c.FadingDepth,
		},
	}.Sanitize()
	p.ReceiverFc = p.CarrierFreq + offset
	return p.Sanitize()
}

func clampOffset(v, limit float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, v))
}
