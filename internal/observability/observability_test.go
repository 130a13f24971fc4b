package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any, _ map[string]string) error {
	p.keys = append(p.keys, routingKey)
	return p.err
}

func TestPublishEventUsesDefaultPublisher(t *testing.T) {
	pub := &recordingPublisher{}
	SetPublisher(pub)
	t.Cleanup(func() { SetPublisher(nil) })

	PublishEvent(context.Background(), RoutingKeyWSEvents, EventEnvelope{EventName: "ws_connect"}, nil)
	require.Equal(t, []string{RoutingKeyWSEvents}, pub.keys)
}

func TestPublishEventSwallowsErrors(t *testing.T) {
	SetPublisher(&recordingPublisher{err: errors.New("broker down")})
	t.Cleanup(func() { SetPublisher(nil) })

	require.NotPanics(t, func() {
		PublishEvent(context.Background(), RoutingKeyWSEvents, EventEnvelope{EventName: "ws_error"}, nil)
	})
}

func TestBuildHeaders(t *testing.T) {
	require.Empty(t, BuildHeaders("", ""))
	require.Equal(t, map[string]string{"x-request-id": "r1", "trace_id": "t1"}, BuildHeaders("r1", "t1"))
}

func TestIdentityFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Device-Id", "phone-1")
	req.Header.Set("X-Request-Id", "req-9")
	require.Equal(t, Identity{DeviceID: "phone-1", IP: "10.0.0.1", RequestID: "req-9"}, IdentityFromRequest(req))

	req.Header.Set("X-Real-IP", "5.6.7.8")
	require.Equal(t, "5.6.7.8", IdentityFromRequest(req).IP)

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	require.Equal(t, "1.2.3.4", IdentityFromRequest(req).IP)
}

func TestSplitFullMethod(t *testing.T) {
	service, method := splitFullMethod("/grpc.health.v1.Health/Check")
	require.Equal(t, "grpc.health.v1.Health", service)
	require.Equal(t, "Check", method)

	service, method = splitFullMethod("bogus")
	require.Equal(t, "unknown", service)
	require.Equal(t, "unknown", method)
}
