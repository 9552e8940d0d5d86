package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the logger, tracer, and metrics collector built from
// one Config.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

type telemetryContextKey struct{}

// New builds a Telemetry instance from configuration.
func New(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}
	return &Telemetry{Logger: logger, Tracer: tracer, Metrics: metrics, Config: cfg}, nil
}

// WithContext stores t on ctx, along with its logger.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the Telemetry instance stored on ctx, or
// nil if absent.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown stops the tracer provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}

// PhaseScope bundles the span, the phase-scoped logger and the timer of
// one pipeline phase, mirroring the teacher's StartOperation/InstrumentedContext
// pattern but scoped to Deskribe's pipeline phases instead of runs and
// plan units.
type PhaseScope struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *PhaseTimer
}

// StartPhase begins an instrumented pipeline phase: a span, a
// phase-tagged logger, and a duration timer.
func StartPhase(ctx context.Context, command, phase string) *PhaseScope {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &PhaseScope{Ctx: ctx, Logger: FromContext(ctx).WithPhase(phase), Timer: NewPhaseTimer()}
	}
	spanCtx, span := tel.Tracer.StartPhase(ctx, phase)
	logger := tel.Logger.WithPhase(phase).WithField("command", command)
	return &PhaseScope{Ctx: spanCtx, Span: span, Logger: logger, Timer: NewPhaseTimer()}
}

// End finishes the phase scope, recording the span status and phase
// duration metric.
func (p *PhaseScope) End(tel *Telemetry, command, phase string, err error) {
	if p.Span != nil {
		if err != nil {
			RecordError(p.Span, err)
		} else {
			RecordSuccess(p.Span)
		}
		p.Span.End()
	}
	if tel != nil && tel.Metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		tel.Metrics.RecordPhase(command, phase, outcome, p.Timer.Duration())
	}
}
