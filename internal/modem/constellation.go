package modem

import (
	"math"
)

// qam16Norm scales {-3,-1,1,3} levels to unit average symbol power.
var qam16Norm = 1 / math.Sqrt(10)

// Map2BitsToLevel maps a Gray-coded bit pair to a 16-QAM rail level:
// 00 → -3, 01 → -1, 11 → 1, 10 → 3.
func Map2BitsToLevel(b1, b0 byte) int {
	switch {
	case b1 == 0 && b0 == 0:
		return -3
	case b1 == 0 && b0 == 1:
		return -1
	case b1 == 1 && b0 == 1:
		return 1
	default:
		return 3
	}
}

// QuantizeLevel returns the nearest of {-3, -1, 1, 3}. Ties resolve to the
// lower level and NaN maps to -3.
func QuantizeLevel(x float64) int {
	switch {
	case math.IsNaN(x):
		return -3
	case x <= -2:
		return -3
	case x <= 0:
		return -1
	case x <= 2:
		return 1
	default:
		return 3
	}
}

// LevelMap inverts Map2BitsToLevel for the detector.
type LevelMap map[int][2]byte

// DefaultLevelMap returns the inverse of Map2BitsToLevel.
func DefaultLevelMap() LevelMap {
	return LevelMap{
		-3: {0, 0},
		-1: {0, 1},
		1:  {1, 1},
		3:  {1, 0},
	}
}

// Bits returns the bit pair for a level, or 00 when the level is unknown.
func (m LevelMap) Bits(level int) [2]byte {
	if b, ok := m[level]; ok {
		return b
	}
	return [2]byte{0, 0}
}

// qpskPhase returns the carrier phase of a QPSK dibit:
// 00 → π/4, 01 → 3π/4, 11 → -3π/4, 10 → -π/4.
func qpskPhase(b1, b0 byte) float64 {
	switch {
	case b1 == 0 && b0 == 0:
		return math.Pi / 4
	case b1 == 0 && b0 == 1:
		return 3 * math.Pi / 4
	case b1 == 1 && b0 == 1:
		return -3 * math.Pi / 4
	default:
		return -math.Pi / 4
	}
}

// DecodeQPSKQuadrant returns the dibit of the quadrant holding (i, q).
// Points on an axis belong to the non-negative side.
func DecodeQPSKQuadrant(i, q float64) [2]byte {
	switch {
	case i >= 0 && q >= 0:
		return [2]byte{0, 0}
	case i < 0 && q >= 0:
		return [2]byte{0, 1}
	case i < 0 && q < 0:
		return [2]byte{1, 1}
	default:
		return [2]byte{1, 0}
	}
}

// Constellation holds the ideal decision-space points of a scheme.
type Constellation struct {
	ID     SchemeID
	points []IQ
}

// NewConstellation returns the ideal points for BPSK, QPSK or 16-QAM in the
// coordinates the detector reports them.
func NewConstellation(id SchemeID) (*Constellation, error) {
	c := &Constellation{ID: id}
	switch id {
	case BPSK:
		c.points = []IQ{{I: -1}, {I: 1}}
	case QPSK:
		for _, bits := range [][2]byte{{0, 0}, {0, 1}, {1, 1}, {1, 0}} {
			phase := qpskPhase(bits[0], bits[1])
			c.points = append(c.points, IQ{I: math.Cos(phase), Q: math.Sin(phase)})
		}
	case QAM16:
		for _, i := range []int{-3, -1, 1, 3} {
			for _, q := range []int{-3, -1, 1, 3} {
				c.points = append(c.points, IQ{I: float64(i), Q: float64(q)})
			}
		}
	default:
		return nil, &SchemeError{Kind: "constellation", ID: id}
	}
	return c, nil
}

// Points returns a copy of the ideal points.
func (c *Constellation) Points() []IQ {
	out := make([]IQ, len(c.points))
	copy(out, c.points)
	return out
}

// AveragePower returns the mean squared magnitude of the ideal points.
func (c *Constellation) AveragePower() float64 {
	var sum float64
	for _, p := range c.points {
		sum += p.I*p.I + p.Q*p.Q
	}
	return sum / float64(len(c.points))
}

// Nearest returns the ideal point closest to p.
func (c *Constellation) Nearest(p IQ) IQ {
	minDist := math.MaxFloat64
	best := c.points[0]
	for _, ref := range c.points {
		di, dq := p.I-ref.I, p.Q-ref.Q
		if d := di*di + dq*dq; d < minDist {
			minDist = d
			best = ref
		}
	}
	return best
}
