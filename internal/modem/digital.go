package modem

import (
	"fmt"
	"math"

	"github.com/jeongseonghan/modulation-studio/internal/channel"
	"github.com/jeongseonghan/modulation-studio/internal/dsp"
)

// ASK amplitudes for bit 0 and the extra amplitude for bit 1.
const (
	askFloor = 0.2
	askSwing = 0.8
)

// frame is the shared state of one digital run.
type frame struct {
	t          []float64
	p          Params
	n          int
	bitSamples int
	bitCount   int
	bits       []byte
}

func (f *frame) bit(i int) byte {
	if i >= 0 && i < len(f.bits) {
		return f.bits[i] & 1
	}
	return 0
}

// windows calls fn for each symbol window [k·size+shift, k·size+shift+size)
// clamped to the frame, stopping at the first empty one.
func (f *frame) windows(count, size, shift int, fn func(k, from, to int)) {
	for k := 0; k < count; k++ {
		start := k*size + shift
		from, to := dsp.SegmentBounds(start, start+size, f.n)
		if to <= from {
			return
		}
		fn(k, from, to)
	}
}

// oscillator holds a precomputed local carrier.
type oscillator struct {
	c, s []float64
}

func newOscillator(t []float64, n int, fc, phase float64) oscillator {
	o := oscillator{c: make([]float64, n), s: make([]float64, n)}
	for k := 0; k < n; k++ {
		o.s[k], o.c[k] = math.Sincos(2*math.Pi*fc*dsp.TimeAt(t, k) + phase)
	}
	return o
}

// correlate integrates rx against the oscillator over [from, to) and returns
// the I/Q components scaled by 2/len.
func (o oscillator) correlate(rx []float64, from, to int) IQ {
	l := float64(to - from)
	i := dsp.IntegrateSegment(rx, from, to, func(k int) float64 { return o.c[k] })
	q := dsp.IntegrateSegment(rx, from, to, func(k int) float64 { return o.s[k] })
	return IQ{I: 2 / l * i, Q: -2 / l * q}
}

// digitalScheme is one digital modulation chain.
type digitalScheme interface {
	symbolSamples(f *frame) int
	transmit(f *frame) ([]float64, []symbol)
	detect(f *frame, rx []float64, rcv ReceiverEstimate, levels LevelMap, b *resultBuilder)
}

var digitalSchemes = map[SchemeID]digitalScheme{
	ASK:   askScheme{},
	FSK:   fskScheme{},
	BPSK:  bpskScheme{},
	QPSK:  qpskScheme{},
	QAM16: qam16Scheme{},
}

// GenerateDigital runs a digital scheme over the time base. Bits are taken
// from the front of bitPool when it holds at least 4·bitCount+32 bits;
// otherwise a fresh sequence is drawn from the engine's source. levels maps
// 16-QAM rail levels back to bit pairs; nil selects DefaultLevelMap.
//
// Ground-truth bits and symbols are truncated to the number of symbols the
// receiver actually detected, so TxBits/RxBits and TxSymbols/RxSymbols always
// have equal length.
func (e *Engine) GenerateDigital(t []float64, p Params, id SchemeID, bitPool []byte, levels LevelMap) (Result, error) {
	scheme, ok := digitalSchemes[id]
	if !ok {
		return Result{}, &SchemeError{Kind: "digital", ID: id}
	}
	p = p.Sanitize()
	if levels == nil {
		levels = DefaultLevelMap()
	}

	n := len(t)
	if n == 0 {
		res := emptyResult()
		res.Receiver = ReceiverEstimate{Fc: p.ReceiverFc, Phase: p.ReceiverPhase}
		return res, nil
	}

	bs := p.BitSamples()
	bitCount := max(16, n/bs)
	needed := 4*bitCount + 32
	bits := bitPool
	if len(bits) < needed {
		bits = e.src.Bits(needed + 64)
	}

	f := &frame{t: t, p: p, n: n, bitSamples: bs, bitCount: bitCount, bits: bits}
	b := newResultBuilder(n)
	b.baseband = make([]float64, n)
	for i := range b.baseband {
		b.baseband[i] = 2*float64(f.bit(i/bs)) - 1
	}
	b.tx, b.sent = scheme.transmit(f)
	b.rx = channel.Apply(b.tx, t, p.Channel, e.src)
	b.receiver = EstimateReceiver(b.rx, t, p, id, bs, e.loop)
	scheme.detect(f, b.rx, b.receiver, levels, b)

	res := b.build()
	e.logger.Debug("digital run", "scheme", id, "samples", n, "bits", len(res.TxBits),
		"rx_fc", res.Receiver.Fc, "rx_phase", res.Receiver.Phase, "timing", res.Receiver.TimingOffset)
	return res, nil
}

func bitLabel(b byte) string {
	if b == 1 {
		return "1"
	}
	return "0"
}

func binarySymbols(f *frame) []symbol {
	out := make([]symbol, f.bitCount)
	for k := range out {
		b := f.bit(k)
		out[k] = symbol{bits: []byte{b}, label: bitLabel(b)}
	}
	return out
}

func polar(b byte) float64 {
	if b == 1 {
		return 1
	}
	return -1
}

type askScheme struct{}

func (askScheme) symbolSamples(f *frame) int { return f.bitSamples }

func (askScheme) transmit(f *frame) ([]float64, []symbol) {
	tx := make([]float64, f.n)
	for i, ti := range f.t {
		amp := askFloor + askSwing*float64(f.bit(i/f.bitSamples))
		tx[i] = f.p.CarrierAmp * amp * math.Cos(2*math.Pi*f.p.CarrierFreq*ti)
	}
	return tx, binarySymbols(f)
}

// detect thresholds the in-phase component halfway between the largest and
// smallest value seen in the frame.
func (s askScheme) detect(f *frame, rx []float64, rcv ReceiverEstimate, _ LevelMap, b *resultBuilder) {
	size := s.symbolSamples(f)
	osc := newOscillator(f.t, f.n, rcv.Fc, rcv.Phase)

	type window struct {
		from, to int
		point    IQ
	}
	var ws []window
	f.windows(f.bitCount, size, rcv.symbolShift(size), func(_, from, to int) {
		ws = append(ws, window{from: from, to: to, point: osc.correlate(rx, from, to)})
	})

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, w := range ws {
		if dsp.IsFinite(w.point.I) {
			lo = math.Min(lo, w.point.I)
			hi = math.Max(hi, w.point.I)
		}
	}
	threshold := 0.0
	if lo <= hi {
		threshold = (lo + hi) / 2
	}

	for _, w := range ws {
		var bit byte
		if w.point.I > threshold {
			bit = 1
		}
		b.decide(symbol{bits: []byte{bit}, label: bitLabel(bit), point: w.point}, w.from, w.to, polar(bit))
	}
}

type fskScheme struct{}

func (fskScheme) symbolSamples(f *frame) int { return f.bitSamples }

func (fskScheme) transmit(f *frame) ([]float64, []symbol) {
	tx := make([]float64, f.n)
	half := f.p.FreqDev / 2
	for i, ti := range f.t {
		freq := f.p.CarrierFreq - half
		if f.bit(i/f.bitSamples) == 1 {
			freq = f.p.CarrierFreq + half
		}
		tx[i] = f.p.CarrierAmp * math.Cos(2*math.Pi*freq*ti)
	}
	return tx, binarySymbols(f)
}

// detect compares the energy collected by the two receiver tones. The
// constellation point is (|c1|, |c0|).
func (s fskScheme) detect(f *frame, rx []float64, rcv ReceiverEstimate, _ LevelMap, b *resultBuilder) {
	size := s.symbolSamples(f)
	half := f.p.FreqDev / 2
	tone0 := newOscillator(f.t, f.n, rcv.Fc-half, rcv.Phase)
	tone1 := newOscillator(f.t, f.n, rcv.Fc+half, rcv.Phase)

	f.windows(f.bitCount, size, rcv.symbolShift(size), func(_, from, to int) {
		c0 := tone0.correlate(rx, from, to)
		c1 := tone1.correlate(rx, from, to)
		e0 := math.Hypot(c0.I, c0.Q)
		e1 := math.Hypot(c1.I, c1.Q)
		var bit byte
		if e1 > e0 {
			bit = 1
		}
		b.decide(symbol{bits: []byte{bit}, label: bitLabel(bit), point: IQ{I: e1, Q: e0}}, from, to, polar(bit))
	})
}

type bpskScheme struct{}

func (bpskScheme) symbolSamples(f *frame) int { return f.bitSamples }

func (bpskScheme) transmit(f *frame) ([]float64, []symbol) {
	tx := make([]float64, f.n)
	for i, ti := range f.t {
		phase := math.Pi
		if f.bit(i/f.bitSamples) == 1 {
			phase = 0
		}
		tx[i] = f.p.CarrierAmp * math.Cos(2*math.Pi*f.p.CarrierFreq*ti+phase)
	}
	return tx, binarySymbols(f)
}

func (s bpskScheme) detect(f *frame, rx []float64, rcv ReceiverEstimate, _ LevelMap, b *resultBuilder) {
	size := s.symbolSamples(f)
	osc := newOscillator(f.t, f.n, rcv.Fc, rcv.Phase)
	f.windows(f.bitCount, size, rcv.symbolShift(size), func(_, from, to int) {
		pt := osc.correlate(rx, from, to)
		var bit byte
		if pt.I >= 0 {
			bit = 1
		}
		b.decide(symbol{bits: []byte{bit}, label: bitLabel(bit), point: pt}, from, to, polar(bit))
	})
}

type qpskScheme struct{}

func (qpskScheme) symbolSamples(f *frame) int { return SymbolSamples(QPSK, f.bitSamples) }

func (s qpskScheme) symbolCount(f *frame) int {
	return max(8, f.n/s.symbolSamples(f))
}

func (s qpskScheme) transmit(f *frame) ([]float64, []symbol) {
	size := s.symbolSamples(f)
	count := s.symbolCount(f)
	tx := make([]float64, f.n)
	sent := make([]symbol, count)
	for k := 0; k < count; k++ {
		b1, b0 := f.bit(2*k), f.bit(2*k+1)
		sent[k] = symbol{bits: []byte{b1, b0}, label: fmt.Sprintf("%d%d", b1, b0)}
		phase := qpskPhase(b1, b0)
		from, to := dsp.SegmentBounds(k*size, (k+1)*size, f.n)
		for i := from; i < to; i++ {
			tx[i] = f.p.CarrierAmp * math.Cos(2*math.Pi*f.p.CarrierFreq*f.t[i]+phase)
		}
	}
	return tx, sent
}

func (s qpskScheme) detect(f *frame, rx []float64, rcv ReceiverEstimate, _ LevelMap, b *resultBuilder) {
	size := s.symbolSamples(f)
	osc := newOscillator(f.t, f.n, rcv.Fc, rcv.Phase)
	f.windows(s.symbolCount(f), size, rcv.symbolShift(size), func(_, from, to int) {
		pt := osc.correlate(rx, from, to)
		bits := DecodeQPSKQuadrant(pt.I, pt.Q)
		sym := symbol{
			bits:  []byte{bits[0], bits[1]},
			label: fmt.Sprintf("%d%d", bits[0], bits[1]),
			point: pt,
		}
		b.decide(sym, from, to, polar(bits[0]))
	})
}

type qam16Scheme struct{}

func (qam16Scheme) symbolSamples(f *frame) int { return SymbolSamples(QAM16, f.bitSamples) }

func (s qam16Scheme) symbolCount(f *frame) int {
	return max(6, f.n/s.symbolSamples(f))
}

// transmit maps bits (b1 b0 b3 b2) of each symbol to the I level from
// (b1, b0) and the Q level from (b3, b2).
func (s qam16Scheme) transmit(f *frame) ([]float64, []symbol) {
	size := s.symbolSamples(f)
	count := s.symbolCount(f)
	tx := make([]float64, f.n)
	sent := make([]symbol, count)
	for k := 0; k < count; k++ {
		b1, b0, b3, b2 := f.bit(4*k), f.bit(4*k+1), f.bit(4*k+2), f.bit(4*k+3)
		iLevel := Map2BitsToLevel(b1, b0)
		qLevel := Map2BitsToLevel(b3, b2)
		sent[k] = symbol{bits: []byte{b1, b0, b3, b2}, label: fmt.Sprintf("%d,%d", iLevel, qLevel)}

		iAmp := float64(iLevel) * qam16Norm
		qAmp := float64(qLevel) * qam16Norm
		from, to := dsp.SegmentBounds(k*size, (k+1)*size, f.n)
		for i := from; i < to; i++ {
			wt := 2 * math.Pi * f.p.CarrierFreq * f.t[i]
			tx[i] = f.p.CarrierAmp * (iAmp*math.Cos(wt) - qAmp*math.Sin(wt))
		}
	}
	return tx, sent
}

func (s qam16Scheme) detect(f *frame, rx []float64, rcv ReceiverEstimate, levels LevelMap, b *resultBuilder) {
	size := s.symbolSamples(f)
	osc := newOscillator(f.t, f.n, rcv.Fc, rcv.Phase)
	gain := math.Max(1e-9, f.p.CarrierAmp)
	f.windows(s.symbolCount(f), size, rcv.symbolShift(size), func(_, from, to int) {
		pt := osc.correlate(rx, from, to)
		pt = IQ{I: pt.I / gain / qam16Norm, Q: pt.Q / gain / qam16Norm}
		iLevel := QuantizeLevel(pt.I)
		qLevel := QuantizeLevel(pt.Q)
		ib := levels.Bits(iLevel)
		qb := levels.Bits(qLevel)
		sym := symbol{
			bits:  []byte{ib[0], ib[1], qb[0], qb[1]},
			label: fmt.Sprintf("%d,%d", iLevel, qLevel),
			point: pt,
		}
		b.decide(sym, from, to, float64(iLevel)/3)
	})
}
