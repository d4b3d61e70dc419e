package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %#v", got)
	}
	if SplitBrokers("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestExtractEventMetaFallsBackToKeyAndTopic(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "crm.appointment.scheduled.v1", Key: []byte("appt-1")})
	if meta.EventID != "appt-1" || meta.EventType != "crm.appointment.scheduled.v1" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestNewEventMessageCarriesTraceHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	msg := NewEventMessage(ctx, EventMeta{EventID: "evt-1", EventType: "crm.consultation.created.v1"}, "cons-1", []byte(`{}`))
	if msg.Topic != "crm.consultation.created.v1" || string(msg.Key) != "cons-1" {
		t.Fatalf("unexpected routing: topic=%s key=%s", msg.Topic, msg.Key)
	}
	if HeaderValue(msg.Headers, "traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	restored := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), msg))
	if restored.TraceID() != traceID {
		t.Fatalf("trace id not restored: %s", restored.TraceID())
	}
	if got := ExtractEventMeta(msg); got.EventID != "evt-1" {
		t.Fatalf("unexpected event id %q", got.EventID)
	}
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	if err := ReadyCheck(" , ")(context.Background()); err == nil {
		t.Fatal("expected error when no broker is configured")
	}
}
