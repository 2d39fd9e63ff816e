package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jeongseonghan/modulation-studio/internal/sim"
)

// Metrics holds the Prometheus collectors for simulation runs.
type Metrics struct {
	runsTotal       *prometheus.CounterVec   // runs by primary scheme
	failuresTotal   *prometheus.CounterVec   // rejected or failed runs by reason
	runDuration     *prometheus.HistogramVec // wall time per run
	lastBER         *prometheus.GaugeVec     // BER of the latest digital run
	lastCorrelation *prometheus.GaugeVec     // correlation of the latest analog run
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modsim_runs_total",
				Help: "Completed simulation runs by scheme",
			},
			[]string{"scheme"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modsim_run_failures_total",
				Help: "Simulation requests that did not complete, by reason",
			},
			[]string{"reason"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modsim_run_duration_seconds",
				Help:    "Wall time of one simulation run including the comparison scheme",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"scheme"},
		),
		lastBER: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modsim_last_ber",
				Help: "Bit error rate of the latest run of a digital scheme",
			},
			[]string{"scheme"},
		),
		lastCorrelation: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modsim_last_correlation",
				Help: "Baseband to demodulated correlation of the latest run of an analog scheme",
			},
			[]string{"scheme"},
		),
	}
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(r *sim.Report) {
	scheme := string(r.Primary.Scheme.ID)
	m.runsTotal.WithLabelValues(scheme).Inc()
	m.runDuration.WithLabelValues(scheme).Observe(r.Elapsed.Seconds())
	m.observeScheme(r.Primary)
	if r.Compare != nil {
		m.observeScheme(*r.Compare)
	}
}

func (m *Metrics) observeScheme(run sim.SchemeRun) {
	scheme := string(run.Scheme.ID)
	if run.Metrics.Digital {
		m.lastBER.WithLabelValues(scheme).Set(run.Metrics.BER.Rate)
		return
	}
	m.lastCorrelation.WithLabelValues(scheme).Set(run.Metrics.Correlation)
}

// ObserveFailure records a request that did not produce a run.
func (m *Metrics) ObserveFailure(reason string) {
	m.failuresTotal.WithLabelValues(reason).Inc()
}
