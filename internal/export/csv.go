// Package export writes simulation reports as CSV.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jeongseonghan/modulation-studio/internal/sim"
)

// ErrEmptyReport is returned when there is nothing to export.
var ErrEmptyReport = errors.New("export: empty report")

// SignalHeader is the header row of WriteSignals.
var SignalHeader = []string{
	"time_s",
	"primary_baseband",
	"primary_rx",
	"primary_demod",
	"compare_baseband",
	"compare_rx",
	"compare_demod",
}

// SymbolHeader is the header row of WriteSymbols.
var SymbolHeader = []string{"run", "index", "scheme", "tx_symbol", "rx_symbol", "i", "q"}

// FileName returns the download name for a signal export taken at now.
func FileName(now time.Time) string {
	return "modulation-signals-" + now.Format("20060102-150405") + ".csv"
}

// SanitizeCell neutralises spreadsheet formulas: text starting with = + - or
// @ is prefixed with a single quote.
func SanitizeCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

func formatSample(xs []float64, i int) string {
	if i >= len(xs) {
		return ""
	}
	return strconv.FormatFloat(xs[i], 'g', -1, 64)
}

// WriteSignals writes one row per time sample with the baseband, received
// and demodulated waveforms of both runs. Comparison cells are empty when the
// report has no comparison run.
func WriteSignals(w io.Writer, r *sim.Report) error {
	if r == nil || len(r.Time) == 0 {
		return ErrEmptyReport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(SignalHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	p := r.Primary.Result
	row := make([]string, len(SignalHeader))
	for i := range r.Time {
		row[0] = formatSample(r.Time, i)
		row[1] = formatSample(p.Baseband, i)
		row[2] = formatSample(p.RxSignal, i)
		row[3] = formatSample(p.Demodulated, i)
		if c := r.Compare; c != nil {
			row[4] = formatSample(c.Result.Baseband, i)
			row[5] = formatSample(c.Result.RxSignal, i)
			row[6] = formatSample(c.Result.Demodulated, i)
		} else {
			row[4], row[5], row[6] = "", "", ""
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSymbols writes the transmitted and detected symbols of every digital
// run in the report, with the detected constellation point.
func WriteSymbols(w io.Writer, r *sim.Report) error {
	if r == nil {
		return ErrEmptyReport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(SymbolHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	runs := []struct {
		name string
		run  *sim.SchemeRun
	}{{"primary", &r.Primary}, {"compare", r.Compare}}
	for _, entry := range runs {
		if entry.run == nil || !entry.run.Scheme.Digital {
			continue
		}
		res := entry.run.Result
		for k, rx := range res.RxSymbols {
			tx := ""
			if k < len(res.TxSymbols) {
				tx = res.TxSymbols[k]
			}
			var i, q string
			if k < len(res.Constellation) {
				i = strconv.FormatFloat(res.Constellation[k].I, 'g', -1, 64)
				q = strconv.FormatFloat(res.Constellation[k].Q, 'g', -1, 64)
			}
			row := []string{
				entry.name,
				strconv.Itoa(k),
				SanitizeCell(string(entry.run.Scheme.ID)),
				SanitizeCell(tx),
				SanitizeCell(rx),
				i,
				q,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write %s symbol %d: %w", entry.name, k, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
