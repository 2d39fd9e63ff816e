package modem

import (
	"encoding/json"
	"fmt"
)

// Bits is a sequence of 0/1 values. It marshals to JSON as a string of
// '0' and '1' characters.
type Bits []byte

// String returns the bits as a 0/1 string.
func (b Bits) String() string {
	buf := make([]byte, len(b))
	for i, v := range b {
		buf[i] = '0' + v&1
	}
	return string(buf)
}

// MarshalJSON implements json.Marshaler.
func (b Bits) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bits) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode bits: %w", err)
	}
	out := make(Bits, len(s))
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			out[i] = 1
		default:
			return fmt.Errorf("decode bits: invalid character %q at %d", c, i)
		}
	}
	*b = out
	return nil
}

// IQ is one constellation point.
type IQ struct {
	I float64 `json:"i"`
	Q float64 `json:"q"`
}

// Result is the record produced by one engine run. Callers own the slices.
type Result struct {
	Baseband      []float64 `json:"baseband"`
	TxSignal      []float64 `json:"txSignal"`
	RxSignal      []float64 `json:"rxSignal"`
	Demodulated   []float64 `json:"demodulated"`
	Constellation []IQ      `json:"constellation"`
	TxBits        Bits      `json:"txBits"`
	RxBits        Bits      `json:"rxBits"`
	TxSymbols     []string  `json:"txSymbols"`
	RxSymbols     []string  `json:"rxSymbols"`

	// Receiver is the oscillator state actually used for demodulation.
	Receiver ReceiverEstimate `json:"receiver"`
}

// symbol is one transmitted or detected symbol.
type symbol struct {
	bits  []byte
	label string
	point IQ
}

// resultBuilder accumulates a digital run and produces its Result once.
type resultBuilder struct {
	baseband []float64
	tx       []float64
	rx       []float64
	demod    []float64
	sent     []symbol
	detected []symbol
	receiver ReceiverEstimate
}

func newResultBuilder(n int) *resultBuilder {
	return &resultBuilder{demod: make([]float64, n)}
}

func (b *resultBuilder) decide(s symbol, from, to int, level float64) {
	b.detected = append(b.detected, s)
	for k := from; k < to; k++ {
		b.demod[k] = level
	}
}

// alignGroundTruth drops transmitted symbols that have no matching decision,
// so tx and rx arrays always have equal length. It is the only place
// ground truth is shortened.
func (b *resultBuilder) alignGroundTruth() {
	if len(b.sent) > len(b.detected) {
		b.sent = b.sent[:len(b.detected)]
	}
}

func (b *resultBuilder) build() Result {
	b.alignGroundTruth()

	res := Result{
		Baseband:      b.baseband,
		TxSignal:      b.tx,
		RxSignal:      b.rx,
		Demodulated:   b.demod,
		Constellation: make([]IQ, 0, len(b.detected)),
		TxBits:        Bits{},
		RxBits:        Bits{},
		TxSymbols:     make([]string, 0, len(b.sent)),
		RxSymbols:     make([]string, 0, len(b.detected)),
		Receiver:      b.receiver,
	}
	for _, s := range b.sent {
		res.TxBits = append(res.TxBits, s.bits...)
		res.TxSymbols = append(res.TxSymbols, s.label)
	}
	for _, s := range b.detected {
		res.RxBits = append(res.RxBits, s.bits...)
		res.RxSymbols = append(res.RxSymbols, s.label)
		res.Constellation = append(res.Constellation, s.point)
	}
	return res
}

func emptyResult() Result {
	return Result{
		Baseband:      []float64{},
		TxSignal:      []float64{},
		RxSignal:      []float64{},
		Demodulated:   []float64{},
		Constellation: []IQ{},
		TxBits:        Bits{},
		RxBits:        Bits{},
		TxSymbols:     []string{},
		RxSymbols:     []string{},
	}
}
