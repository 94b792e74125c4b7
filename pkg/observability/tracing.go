// Package observability provides distributed tracing for the Optiply target.
// Tracing is optional; when disabled the helpers fall back to the otel no-op
// tracer so call sites stay unconditional.
package observability

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer   trace.Tracer = otel.Tracer("optiply-target")
	initOnce sync.Once
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
}

// Initialize sets up the tracing provider with a stdout exporter.
func Initialize(config TracingConfig) error {
	var err error

	initOnce.Do(func() {
		var res *resource.Resource
		res, err = resource.New(context.Background(),
			resource.WithAttributes(
				semconv.ServiceNameKey.String(config.ServiceName),
				semconv.ServiceVersionKey.String(config.ServiceVersion),
				semconv.DeploymentEnvironmentKey.String(config.Environment),
			),
		)
		if err != nil {
			err = fmt.Errorf("failed to create resource: %w", err)
			return
		}

		var exporter sdktrace.SpanExporter
		// stdout carries the state stream; spans go to stderr
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			err = fmt.Errorf("failed to create stdout exporter: %w", err)
			return
		}

		var sampler sdktrace.Sampler
		switch {
		case config.SamplingRate <= 0:
			sampler = sdktrace.NeverSample()
		case config.SamplingRate >= 1.0:
			sampler = sdktrace.AlwaysSample()
		default:
			sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

		tracer = otel.Tracer(config.ServiceName)
	})

	return err
}

// Span wraps an otel span with batched attribute recording
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan creates a new span under the global tracer
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span (batched, applied at End)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// RecordError marks the span failed and records the error
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End applies batched attributes and ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// SinkTracer provides sink-scoped tracing utilities
type SinkTracer struct {
	sinkName string
}

// NewSinkTracer creates a tracer scoped to one sink
func NewSinkTracer(sinkName string) *SinkTracer {
	return &SinkTracer{sinkName: sinkName}
}

// StartSpan starts a sink-scoped span
func (st *SinkTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, fmt.Sprintf("sink.%s.%s", st.sinkName, operation))
	span.SetAttribute("sink.name", st.sinkName)
	span.SetAttribute("sink.operation", operation)
	return ctx, span
}

// TraceDispatch traces one outbound request cycle, retries included
func (st *SinkTracer) TraceDispatch(ctx context.Context, stream string, fn func(context.Context) error) error {
	ctx, span := st.StartSpan(ctx, "dispatch")
	defer span.End()

	span.SetAttribute("record.stream", stream)

	err := fn(ctx)
	span.RecordError(err)
	return err
}
