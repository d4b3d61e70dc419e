package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceCarrier is the W3C trace context in the form it is persisted next to
// an outbox row, so the publisher can continue the writer's trace.
type TraceCarrier struct {
	Parent string
	State  string
}

// CaptureTrace serializes the span context of ctx with the global propagator.
func CaptureTrace(ctx context.Context) TraceCarrier {
	m := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, m)
	return TraceCarrier{Parent: m["traceparent"], State: m["tracestate"]}
}

// Context returns ctx with the stored span context as remote parent. An empty
// carrier leaves ctx untouched.
func (c TraceCarrier) Context(ctx context.Context) context.Context {
	if c.Parent == "" {
		return ctx
	}
	m := propagation.MapCarrier{"traceparent": c.Parent}
	if c.State != "" {
		m["tracestate"] = c.State
	}
	return otel.GetTextMapPropagator().Extract(ctx, m)
}
