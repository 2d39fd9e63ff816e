package analysis

import (
	"fmt"
	"math"

	"github.com/jeongseonghan/modulation-studio/internal/dsp"
	"github.com/jeongseonghan/modulation-studio/internal/modem"
)

// EstimateBandwidthHz returns the occupied bandwidth rule of thumb for a
// scheme.
func EstimateBandwidthHz(id modem.SchemeID, p modem.Params) float64 {
	switch id {
	case modem.AMDSBLC, modem.AMDSBSC:
		return 2 * p.MessageFreq
	case modem.FM:
		return 2 * (p.FreqDev + p.MessageFreq)
	case modem.PM:
		return 2 * p.MessageFreq * (1 + p.ModIndex)
	case modem.ASK, modem.BPSK:
		return 2 * p.BitRate
	case modem.FSK:
		return 2 * (p.FreqDev + p.BitRate)
	case modem.QPSK:
		return math.Max(1, p.BitRate)
	case modem.QAM16:
		return math.Max(1, p.BitRate/2)
	default:
		return p.MessageFreq
	}
}

// Metrics is the score of one scheme run.
type Metrics struct {
	Scheme      modem.SchemeID `json:"scheme"`
	Digital     bool           `json:"digital"`
	Correlation float64        `json:"correlation"`
	BER         ErrorRate      `json:"ber"`
	SER         ErrorRate      `json:"ser"`
	BandwidthHz float64        `json:"bandwidthHz"`
	Quality     *Quality       `json:"quality,omitempty"`
	Fingerprint string         `json:"fingerprint"`
}

// Score computes the metrics for a result. Analog schemes are scored by the
// correlation of the normalised baseband and demodulated waveforms, digital
// schemes by bit and symbol error rates.
func Score(id modem.SchemeID, p modem.Params, res modem.Result) (Metrics, error) {
	desc, err := modem.Lookup(id)
	if err != nil {
		return Metrics{}, fmt.Errorf("score: %w", err)
	}

	m := Metrics{
		Scheme:      id,
		Digital:     desc.Digital,
		BandwidthHz: EstimateBandwidthHz(id, p),
		Fingerprint: FingerprintHex(res),
	}
	if !desc.Digital {
		m.Correlation = Correlation(dsp.Normalize(res.Baseband), dsp.Normalize(res.Demodulated))
		return m, nil
	}

	m.BER = BitErrorRate(res.TxBits, res.RxBits)
	m.SER = SymbolErrorRate(res.TxSymbols, res.RxSymbols)
	if q, err := ConstellationQuality(id, res.Constellation); err == nil && q.Points > 0 {
		m.Quality = &q
	}
	return m, nil
}

// String formats the headline metric the way the results panel shows it.
func (m Metrics) String() string {
	if m.Digital {
		return fmt.Sprintf("BER %.4f (%d/%d), SER %.4f (%d/%d)",
			m.BER.Rate, m.BER.Errors, m.BER.Total, m.SER.Rate, m.SER.Errors, m.SER.Total)
	}
	return fmt.Sprintf("Correlation(baseband, demod): %.4f", m.Correlation)
}
