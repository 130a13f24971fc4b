package ws

import (
	"sync"
	"time"

	"board-service/internal/access"
)

// ConnInfo identifies a connection in logs and lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	Username    string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Client is one websocket connection as seen by the hub. Outbound frames are queued on a
// bounded buffer drained by the connection's write pump.
type Client struct {
	info    ConnInfo
	subject access.Subject
	send    chan []byte

	mu     sync.Mutex
	closed bool
	board  string

	// opMu serializes SwitchBoard and Disconnect for this connection.
	opMu sync.Mutex
}

// NewClient builds a client with a send buffer of the given size.
func NewClient(info ConnInfo, subject access.Subject, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	if info.ConnID == "" {
		info.ConnID = newConnID()
	}
	info.UserID = subject.UserID
	info.Username = subject.Username
	return &Client{
		info:    info,
		subject: subject,
		send:    make(chan []byte, buffer),
	}
}

func (c *Client) ID() string {
	return c.info.ConnID
}

func (c *Client) Info() ConnInfo {
	return c.info
}

// Send is closed when the hub drops the connection.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// CurrentBoard returns the board the connection is joined to, or "".
func (c *Client) CurrentBoard() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board
}

func (c *Client) setBoard(boardID string) {
	c.mu.Lock()
	c.board = boardID
	c.mu.Unlock()
}

// enqueue never blocks. It reports false when the client is closed or its buffer is full.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close reports whether this call closed the client.
func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
