package observability

import (
	"context"

	"go.uber.org/zap"
)

// Routing keys for realtime lifecycle events.
const (
	RoutingKeyWSEvents       = "ws_events.boards"
	RoutingKeyPresenceEvents = "presence_events.boards"
)

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// Publisher delivers JSON events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent is fire-and-forget: failures are counted and logged, never returned to callers
// on the realtime path.
func PublishEvent(ctx context.Context, routingKey string, envelope EventEnvelope, headers map[string]string) {
	if defaultPublisher == nil {
		return
	}
	if err := defaultPublisher.Publish(ctx, routingKey, envelope, headers); err != nil {
		IncAMQPPublishError()
		zap.L().Warn("event publish failed",
			zap.String("routing_key", routingKey),
			zap.String("event", envelope.EventName),
			zap.Error(err))
	}
}
