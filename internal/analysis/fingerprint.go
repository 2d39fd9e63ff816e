package analysis

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/jeongseonghan/modulation-studio/internal/modem"
)

// Fingerprint computes a CRC-32 (IEEE) over the waveforms and decisions of a
// result. Two runs with the same seed and parameters share a fingerprint.
func Fingerprint(res modem.Result) uint32 {
	h := crc32.NewIEEE()
	buf := make([]byte, 8)
	writeFloats := func(xs []float64) {
		binary.BigEndian.PutUint32(buf[:4], uint32(len(xs)))
		h.Write(buf[:4])
		for _, v := range xs {
			binary.BigEndian.PutUint64(buf, math.Float64bits(v))
			h.Write(buf)
		}
	}

	writeFloats(res.Baseband)
	writeFloats(res.TxSignal)
	writeFloats(res.RxSignal)
	writeFloats(res.Demodulated)
	h.Write(res.TxBits)
	h.Write(res.RxBits)
	for _, s := range res.RxSymbols {
		h.Write([]byte(s))
	}
	return h.Sum32()
}

// FingerprintHex returns Fingerprint as 8 hex digits.
func FingerprintHex(res modem.Result) string {
	return fmt.Sprintf("%08x", Fingerprint(res))
}
