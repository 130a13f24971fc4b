package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"board-service/internal/access"
	"board-service/internal/observability"
)

// TokenValidator turns a bearer token into the calling subject.
type TokenValidator interface {
	Validate(token string) (access.Subject, error)
}

// Options tunes the per-connection pumps.
type Options struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	MaxFrameSize int64
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = 64 << 10
	}
	return o
}

// BoardWebSocketHandler upgrades board websocket connections and runs their pumps.
type BoardWebSocketHandler struct {
	hub       *Hub
	validator TokenValidator
	opts      Options
	logger    *zap.Logger
}

// NewBoardWebSocketHandler constructs a BoardWebSocketHandler.
func NewBoardWebSocketHandler(hub *Hub, validator TokenValidator, opts Options, logger *zap.Logger) *BoardWebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardWebSocketHandler{hub: hub, validator: validator, opts: opts.withDefaults(), logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client with the hub.
func (h *BoardWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("board-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	subject, err := h.validator.Validate(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	identity := observability.IdentityFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    identity.DeviceID,
		IP:          identity.IP,
		RequestID:   identity.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(info, subject, h.opts.SendBuffer)

	observability.IncWSActive()
	h.hub.publishWSEvent(ctx, client, "ws_connect", "")
	h.logger.Debug("websocket connected",
		zap.String("conn_id", info.ConnID),
		zap.String("user_id", subject.UserID))

	// The connection outlives the handshake request.
	connCtx := context.WithoutCancel(ctx)
	go h.writePump(conn, client)
	h.hub.Connect(connCtx, client, c.Query("currentBoard"))
	go h.readPump(connCtx, conn, client)
}

func (h *BoardWebSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, client *Client) {
	var closeReason string
	defer func() {
		h.hub.Disconnect(ctx, client)
		observability.DecWSActive()
		h.hub.publishWSEvent(ctx, client, "ws_disconnect", closeReason)
		conn.Close()
	}()

	conn.SetReadLimit(h.opts.MaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.hub.publishWSEvent(ctx, client, "ws_error", closeReason)
			}
			return
		}
		h.hub.HandleMessage(ctx, client, message)
	}
}

func (h *BoardWebSocketHandler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(h.opts.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("websocket write error", zap.String("conn_id", client.ID()), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
