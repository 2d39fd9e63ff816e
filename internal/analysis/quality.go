package analysis

import (
	"math"

	"github.com/jeongseonghan/modulation-studio/internal/modem"
)

// maxQualitySNR is reported when the constellation has no measurable error.
const maxQualitySNR = 60.0

// Quality summarises how far detected points sit from their ideal positions.
type Quality struct {
	EVMPercent float64 `json:"evmPercent"`
	SNRdB      float64 `json:"snrDb"`
	Points     int     `json:"points"`
}

// ConstellationQuality scales the detected points to the ideal constellation's
// average power, pairs each with its nearest ideal point and reports the RMS
// error vector magnitude and the matching SNR estimate. It is defined for
// BPSK, QPSK and 16-QAM.
func ConstellationQuality(id modem.SchemeID, points []modem.IQ) (Quality, error) {
	ref, err := modem.NewConstellation(id)
	if err != nil {
		return Quality{}, err
	}

	var power float64
	valid := 0
	for _, p := range points {
		if isFinitePoint(p) {
			power += p.I*p.I + p.Q*p.Q
			valid++
		}
	}
	if valid == 0 || power == 0 {
		return Quality{}, nil
	}
	refPower := ref.AveragePower()
	scale := math.Sqrt(refPower / (power / float64(valid)))

	var errPower float64
	for _, p := range points {
		if !isFinitePoint(p) {
			continue
		}
		s := modem.IQ{I: p.I * scale, Q: p.Q * scale}
		ideal := ref.Nearest(s)
		di, dq := s.I-ideal.I, s.Q-ideal.Q
		errPower += di*di + dq*dq
	}
	errPower /= float64(valid)

	q := Quality{
		EVMPercent: 100 * math.Sqrt(errPower/refPower),
		SNRdB:      maxQualitySNR,
		Points:     valid,
	}
	if errPower > 1e-12 {
		q.SNRdB = math.Min(maxQualitySNR, 10*math.Log10(refPower/errPower))
	}
	return q, nil
}

func isFinitePoint(p modem.IQ) bool {
	return !math.IsNaN(p.I) && !math.IsInf(p.I, 0) && !math.IsNaN(p.Q) && !math.IsInf(p.Q, 0)
}
