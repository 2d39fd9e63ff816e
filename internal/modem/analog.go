package modem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/jeongseonghan/modulation-studio/internal/channel"
	"github.com/jeongseonghan/modulation-studio/internal/dsp"
)

// analogScheme is one analog modulation chain. mn is the normalised message.
type analogScheme interface {
	modulate(t, mn []float64, p Params) []float64
	demodulate(rx, t []float64, p Params) []float64
}

var analogSchemes = map[SchemeID]analogScheme{
	AMDSBLC: amLarge{},
	AMDSBSC: amSuppressed{},
	FM:      freqMod{},
	PM:      phaseMod{},
}

// GenerateAnalog modulates baseband onto the carrier, passes it through the
// channel and demodulates it. baseband must have one sample per entry of t.
func (e *Engine) GenerateAnalog(t []float64, p Params, id SchemeID, baseband []float64) (Result, error) {
	scheme, ok := analogSchemes[id]
	if !ok {
		return Result{}, &SchemeError{Kind: "analog", ID: id}
	}
	if len(baseband) != len(t) {
		return Result{}, fmt.Errorf("%w: %d time samples, %d baseband samples", ErrMismatchedArrays, len(t), len(baseband))
	}
	p = p.Sanitize()

	res := emptyResult()
	res.Receiver = ReceiverEstimate{Fc: p.ReceiverFc, Phase: p.ReceiverPhase}
	if len(t) == 0 {
		return res, nil
	}

	mn := dsp.Normalize(baseband)
	res.Baseband = append([]float64(nil), baseband...)
	res.TxSignal = scheme.modulate(t, mn, p)
	res.RxSignal = channel.Apply(res.TxSignal, t, p.Channel, e.src)
	res.Demodulated = scheme.demodulate(res.RxSignal, t, p)

	e.logger.Debug("analog run", "scheme", id, "samples", len(t),
		"snr_db", p.Channel.SNRdB, "fading", p.Channel.FadingDepth)
	return res, nil
}

// messageWindow returns max(minimum, floor(SampleRate/(fm·divisor))).
func messageWindow(p Params, divisor float64, minimum int) int {
	return max(minimum, int(dsp.SampleRate/(p.MessageFreq*divisor)))
}

type amLarge struct{}

func (amLarge) modulate(t, mn []float64, p Params) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = p.CarrierAmp * (1 + p.ModIndex*mn[i]) * math.Cos(2*math.Pi*p.CarrierFreq*ti)
	}
	return out
}

// demodulate is an envelope detector: rectify, smooth, remove DC.
func (amLarge) demodulate(rx, t []float64, p Params) []float64 {
	rect := make([]float64, len(rx))
	for i, v := range rx {
		rect[i] = math.Abs(v)
	}
	env := dsp.MovingAverage(rect, messageWindow(p, 4.5, 3))
	mean := stat.Mean(env, nil)
	for i := range env {
		env[i] -= mean
	}
	return env
}

type amSuppressed struct{}

func (amSuppressed) modulate(t, mn []float64, p Params) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = p.CarrierAmp * mn[i] * math.Cos(2*math.Pi*p.CarrierFreq*ti)
	}
	return out
}

// demodulate mixes with the receiver oscillator and low-pass filters.
func (amSuppressed) demodulate(rx, t []float64, p Params) []float64 {
	mixed := make([]float64, len(rx))
	for i, v := range rx {
		mixed[i] = 2 * v * math.Cos(2*math.Pi*p.ReceiverFc*t[i]+p.ReceiverPhase)
	}
	return dsp.MovingAverage(mixed, messageWindow(p, 4, 3))
}

type freqMod struct{}

func (freqMod) modulate(t, mn []float64, p Params) []float64 {
	out := make([]float64, len(t))
	integral := 0.0
	for i, ti := range t {
		integral += mn[i] / dsp.SampleRate
		phase := 2*math.Pi*p.CarrierFreq*ti + 2*math.Pi*p.FreqDev*integral
		out[i] = p.CarrierAmp * math.Cos(phase)
	}
	return out
}

// demodulate differentiates the carrier phase measured against the receiver
// oscillator: f_inst = f_rx + dφ/dt / 2π, m = (f_inst - f_rx) / k_f.
// demod[0] is 0 and the rest is smoothed with the I/Q window.
func (freqMod) demodulate(rx, t []float64, p Params) []float64 {
	window := messageWindow(p, 6, 5)
	phase := basebandPhase(rx, t, p, window)

	out := make([]float64, len(rx))
	if len(rx) < 2 {
		return out
	}
	kf := math.Max(1, p.FreqDev)
	raw := make([]float64, len(rx)-1)
	for k := 1; k < len(phase); k++ {
		fInst := p.ReceiverFc + (phase[k]-phase[k-1])*dsp.SampleRate/(2*math.Pi)
		raw[k-1] = (fInst - p.ReceiverFc) / kf
	}
	copy(out[1:], dsp.MovingAverage(raw, window))
	return out
}

type phaseMod struct{}

func (phaseMod) modulate(t, mn []float64, p Params) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = p.CarrierAmp * math.Cos(2*math.Pi*p.CarrierFreq*ti+p.ModIndex*mn[i])
	}
	return out
}

// demodulate recovers the message from the carrier phase
// φ(t) = 2π·f_rx·t + arg(baseband) as (φ - 2π·f_rx·t) / k_p, which is the
// unwrapped baseband phase scaled by 1/k_p.
func (phaseMod) demodulate(rx, t []float64, p Params) []float64 {
	phase := basebandPhase(rx, t, p, messageWindow(p, 6, 5))
	kp := math.Max(1e-9, p.ModIndex)
	out := make([]float64, len(rx))
	for k := range phase {
		out[k] = phase[k] / kp
	}
	return out
}

// basebandPhase returns the unwrapped phase of the received signal relative
// to the receiver oscillator.
func basebandPhase(rx, t []float64, p Params, window int) []float64 {
	i, q := dsp.CoherentIQ(rx, t, p.ReceiverFc, p.ReceiverPhase, window)
	phase := make([]float64, len(i))
	for k := range i {
		phase[k] = math.Atan2(q[k], i[k])
	}
	return dsp.UnwrapPhase(phase)
}
