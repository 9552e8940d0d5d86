// Package telemetry provides the ambient logging, tracing, and metrics
// stack shared by every core component. It is trimmed from the teacher's
// telemetry package to the concerns Deskribe's pipeline actually emits:
// structured logs per phase transition, one span per phase, and
// Prometheus counters/histograms for phase outcome and duration.
package telemetry

import (
	"fmt"
	"time"
)

// Config is the top-level telemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level        string // trace, debug, info, warn, error, fatal
	Format       string // console, json
	Output       string // stdout, stderr, or a file path
	EnableCaller bool
	TimeFormat   string // unix, rfc3339
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	Enabled      bool
	Exporter     string // stdout, none
	SamplingRate float64
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string
	Path          string
	Namespace     string
}

// DefaultConfig returns a development-oriented configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "deskribe",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			Output:       "stderr",
			EnableCaller: false,
			TimeFormat:   "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:      true,
			Exporter:     "stdout",
			SamplingRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "deskribe",
		},
	}
}

// ProductionConfig returns a production-oriented configuration.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.TimeFormat = "unix"
	cfg.Tracing.SamplingRate = 0.1
	return cfg
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	if c.Tracing.Enabled && (c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1) {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got %f", c.Tracing.SamplingRate)
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}
	return nil
}

// PhaseTimer measures the duration of a single pipeline phase.
type PhaseTimer struct {
	start time.Time
}

// NewPhaseTimer starts a timer.
func NewPhaseTimer() *PhaseTimer {
	return &PhaseTimer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started.
func (t *PhaseTimer) Duration() time.Duration {
	return time.Since(t.start)
}
