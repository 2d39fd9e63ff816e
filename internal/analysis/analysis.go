// Package analysis scores simulation results: waveform correlation, bit and
// symbol error rates, spectra and constellation quality.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Correlation returns the Pearson correlation of a and b over their common
// prefix. The denominator is floored at 1e-9 so flat inputs score 0.
func Correlation(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	a, b = a[:n], b[:n]
	meanA := stat.Mean(a, nil)
	meanB := stat.Mean(b, nil)

	var num, denA, denB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		num += da * db
		denA += da * da
		denB += db * db
	}
	return num / math.Max(1e-9, math.Sqrt(denA*denB))
}

// ErrorRate counts mismatches between a transmitted and a detected sequence.
type ErrorRate struct {
	Errors int     `json:"errors"`
	Total  int     `json:"total"`
	Rate   float64 `json:"rate"`
}

func countErrors[T comparable](tx, rx []T) ErrorRate {
	total := min(len(tx), len(rx))
	if total == 0 {
		return ErrorRate{}
	}
	errs := 0
	for i := 0; i < total; i++ {
		if tx[i] != rx[i] {
			errs++
		}
	}
	return ErrorRate{Errors: errs, Total: total, Rate: float64(errs) / float64(total)}
}

// BitErrorRate compares bits over the shorter of the two sequences.
func BitErrorRate(tx, rx []byte) ErrorRate {
	return countErrors(tx, rx)
}

// SymbolErrorRate compares symbol strings over the shorter of the two sequences.
func SymbolErrorRate(tx, rx []string) ErrorRate {
	return countErrors(tx, rx)
}
