package observe

import (
	"context"

	"github.com/vango-dev/localstate/pkg/persist"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for bindings.
const defaultTracerName = "localstate"

// TraceConfig configures the OpenTelemetry observer.
type TraceConfig struct {
	// TracerName is the name of the tracer (default: "localstate").
	TracerName string

	// Provider supplies the tracer. Default: the global provider.
	Provider trace.TracerProvider

	// IncludeKey adds the storage key as a span attribute.
	// Enabled by default.
	IncludeKey bool

	// Filter determines which observations are traced.
	// If nil, all are traced.
	Filter func(o persist.Observation) bool
}

// TraceOption configures the OpenTelemetry observer.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TraceOption {
	return func(c *TraceConfig) {
		c.Provider = tp
	}
}

// WithIncludeKey enables/disables the key attribute.
func WithIncludeKey(include bool) TraceOption {
	return func(c *TraceConfig) {
		c.IncludeKey = include
	}
}

// WithFilter sets a filter function for observations.
func WithFilter(filter func(o persist.Observation) bool) TraceOption {
	return func(c *TraceConfig) {
		c.Filter = filter
	}
}

func defaultTraceConfig() TraceConfig {
	return TraceConfig{
		TracerName: defaultTracerName,
		IncludeKey: true,
	}
}

// Tracer is a persist.Observer that emits OpenTelemetry spans.
type Tracer struct {
	config TraceConfig
	tracer trace.Tracer
}

var _ persist.Observer = (*Tracer)(nil)

// NewTracer creates the tracing observer.
func NewTracer(opts ...TraceOption) *Tracer {
	config := defaultTraceConfig()
	for _, opt := range opts {
		opt(&config)
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{
		config: config,
		tracer: provider.Tracer(config.TracerName),
	}
}

// Observe emits a span covering o.
func (t *Tracer) Observe(o persist.Observation) {
	if t.config.Filter != nil && !t.config.Filter(o) {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("localstate.op", string(o.Op)),
		attribute.String("localstate.outcome", string(o.Outcome)),
	}
	if t.config.IncludeKey {
		attrs = append(attrs, attribute.String("localstate.key", o.Key))
	}

	_, span := t.tracer.Start(
		context.Background(),
		"localstate."+string(o.Op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(o.Start),
	)

	switch {
	case o.Err != nil:
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, o.Err.Error())
	case o.Outcome == persist.OutcomeUnsupported:
		span.SetStatus(codes.Error, "no persistent store")
	default:
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(o.Start.Add(o.Duration)))
}
