package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus counters and histograms for pipeline phase
// outcomes, keyed by command (validate/plan/apply/destroy) and phase name.
type Metrics struct {
	config MetricsConfig

	phaseDuration *prometheus.HistogramVec
	phaseOutcomes *prometheus.CounterVec
	warningsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics builds a Metrics collector. If cfg.Enabled is false, all
// recording methods are no-ops.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of a pipeline phase in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command", "phase"},
		),
		phaseOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "phase_outcomes_total",
				Help:      "Total number of pipeline phase completions by outcome",
			},
			[]string{"command", "phase", "outcome"},
		),
		warningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "warnings_total",
				Help:      "Total number of warnings raised, by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(m.phaseDuration, m.phaseOutcomes, m.warningsTotal)
	return m, nil
}

// RecordPhase records a phase's duration and outcome ("ok" or "error").
func (m *Metrics) RecordPhase(command, phase, outcome string, duration time.Duration) {
	if m.phaseDuration == nil {
		return
	}
	m.phaseDuration.WithLabelValues(command, phase).Observe(duration.Seconds())
	m.phaseOutcomes.WithLabelValues(command, phase, outcome).Inc()
}

// RecordWarning increments the warning counter for a warning kind.
func (m *Metrics) RecordWarning(kind string) {
	if m.warningsTotal == nil {
		return
	}
	m.warningsTotal.WithLabelValues(kind).Inc()
}

// Handler returns the HTTP handler serving /metrics.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartMetricsServer starts the metrics HTTP server in the background.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())
	server := &http.Server{Addr: m.config.ListenAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()
	return nil
}
