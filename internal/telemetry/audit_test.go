package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type capturePublisher struct {
	routingKey string
	event      any
	headers    map[string]string
	err        error
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.routingKey = routingKey
	p.event = event
	p.headers = headers
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func TestAuditEmitterBuildsEnvelope(t *testing.T) {
	pub := &capturePublisher{}
	emitter := NewAuditEmitter(pub, "audit.boards", "board-service", "dev", nil)
	userID := "0b7f4c1e-3f7a-4a43-9d0e-3b6c1bba2f10"

	emitter.Emit(context.Background(), "info", "board created", "req-1", &userID)

	require.Equal(t, "audit.boards", pub.routingKey)
	envelope, ok := pub.event.(AuditEnvelope)
	require.True(t, ok)
	require.Equal(t, 1, envelope.SchemaVersion)
	require.Equal(t, "audit_log", envelope.EventType)
	require.Equal(t, "board-service", envelope.Service)
	require.Equal(t, "dev", envelope.Environment)
	require.Equal(t, "req-1", envelope.RequestID)
	require.Equal(t, &userID, envelope.UserID)
	require.Equal(t, AuditPayload{Level: "info", Text: "board created"}, envelope.Payload)
	require.Equal(t, "req-1", pub.headers["x-request-id"])
}

func TestAuditEmitterIgnoresPublishErrors(t *testing.T) {
	emitter := NewAuditEmitter(&capturePublisher{err: errors.New("down")}, "audit.boards", "board-service", "dev", nil)
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "error", "x", "req", nil)
	})
}

func TestNilAuditEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "info", "x", "req", nil)
	})
}

func TestInitTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "", "board-service", "dev")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestAuditEmitterForwardsTraceID(t *testing.T) {
	pub := &capturePublisher{}
	emitter := NewAuditEmitter(pub, "audit.boards", "board-service", "dev", nil)

	traceID := trace.TraceID{0x01, 0x02, 0x03}
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  trace.SpanID{0x01},
	}))
	emitter.Emit(ctx, "info", "x", "req", nil)

	require.Equal(t, traceID.String(), pub.headers["trace_id"])
}
