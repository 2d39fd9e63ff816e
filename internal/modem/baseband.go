package modem

import (
	"fmt"
	"math"
)

// Shape is a message waveform for the analog schemes.
type Shape string

const (
	ShapeSine     Shape = "sine"
	ShapeSquare   Shape = "square"
	ShapeTriangle Shape = "triangle"
)

// ShapeInfo describes a message waveform for display.
type ShapeInfo struct {
	ID       Shape  `json:"id"`
	Label    string `json:"label"`
	Equation string `json:"equation"`
}

// Shapes returns the supported message waveforms.
func Shapes() []ShapeInfo {
	return []ShapeInfo{
		{ID: ShapeSine, Label: "Sine Wave", Equation: `m(t) = A_m \sin(2\pi f_m t)`},
		{ID: ShapeSquare, Label: "Square Wave", Equation: `m(t) = A_m \cdot \text{sgn}(\sin(2\pi f_m t))`},
		{ID: ShapeTriangle, Label: "Triangle Wave", Equation: `m(t) = \frac{2A_m}{\pi} \arcsin(\sin(2\pi f_m t))`},
	}
}

// GenerateBaseband samples a message waveform over the time base.
func GenerateBaseband(shape Shape, t []float64, amp, freq float64) ([]float64, error) {
	var gen func(x float64) float64
	switch shape {
	case ShapeSine, "":
		gen = func(x float64) float64 { return amp * math.Sin(x) }
	case ShapeSquare:
		gen = func(x float64) float64 {
			if math.Sin(x) >= 0 {
				return amp
			}
			return -amp
		}
	case ShapeTriangle:
		gen = func(x float64) float64 { return 2 * amp / math.Pi * math.Asin(math.Sin(x)) }
	default:
		return nil, fmt.Errorf("unknown baseband shape %q", shape)
	}

	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = gen(2 * math.Pi * freq * ti)
	}
	return out, nil
}
