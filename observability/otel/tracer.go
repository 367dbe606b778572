// Package otel adapts OpenTelemetry tracing to observability.Tracer.
package otel

import (
	"context"
	"fmt"
	"io"

	"github.com/KamdynS/agentlab/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer implements observability.Tracer on an OpenTelemetry tracer.
type Tracer struct{ tracer trace.Tracer }

// NewTracer uses the globally registered tracer provider.
func NewTracer(name string) *Tracer {
	return &Tracer{tracer: otel.Tracer(name)}
}

// NewTracerFrom uses an explicit provider.
func NewTracerFrom(tp trace.TracerProvider, name string) *Tracer {
	return &Tracer{tracer: tp.Tracer(name)}
}

// NewStdoutProvider builds an SDK provider that writes finished spans as
// JSON to w and registers it globally. Call the returned shutdown func to
// flush.
func NewStdoutProvider(w io.Writer, serviceName string) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("stdout exporter: %w", err)
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

func (t *Tracer) StartSpan(ctx context.Context, name string) (observability.Span, context.Context) {
	ctx, span := t.tracer.Start(ctx, name)
	return &spanWrapper{span: span, ctx: ctx}, ctx
}

func (t *Tracer) SpanFromContext(ctx context.Context) observability.Span {
	return &spanWrapper{span: trace.SpanFromContext(ctx), ctx: ctx}
}

type spanWrapper struct {
	span trace.Span
	ctx  context.Context
}

func (s *spanWrapper) SetAttribute(key string, value any) {
	s.span.SetAttributes(toAttr(key, value))
}

func (s *spanWrapper) SetStatus(code observability.StatusCode, message string) {
	switch code {
	case observability.StatusCodeOk:
		s.span.SetStatus(codes.Ok, message)
	case observability.StatusCodeError:
		s.span.SetStatus(codes.Error, message)
	default:
		s.span.SetStatus(codes.Unset, message)
	}
}

func (s *spanWrapper) AddEvent(name string, attrs map[string]any) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, toAttr(k, v))
	}
	s.span.AddEvent(name, trace.WithAttributes(kvs...))
}

func (s *spanWrapper) End()                     { s.span.End() }
func (s *spanWrapper) Context() context.Context { return s.ctx }

func toAttr(key string, v any) attribute.KeyValue {
	switch x := v.(type) {
	case string:
		return attribute.String(key, x)
	case int:
		return attribute.Int(key, x)
	case int64:
		return attribute.Int64(key, x)
	case float64:
		return attribute.Float64(key, x)
	case bool:
		return attribute.Bool(key, x)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}

var (
	_ observability.Tracer = (*Tracer)(nil)
	_ observability.Span   = (*spanWrapper)(nil)
)
