package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"board-service/internal/access"
	"board-service/internal/models"
	"board-service/internal/observability"
	"board-service/internal/presence"
	"board-service/internal/repositories"
)

// BoardLoader resolves boards (with members) and their elements for the hub.
type BoardLoader interface {
	GetBoard(ctx context.Context, boardID string) (models.Board, error)
	ListElements(ctx context.Context, boardID string) ([]models.BoardElement, error)
}

// RepositoryLoader adapts the board and element repositories to BoardLoader.
type RepositoryLoader struct {
	Boards   repositories.BoardRepository
	Elements repositories.ElementRepository
}

func (l RepositoryLoader) GetBoard(ctx context.Context, boardID string) (models.Board, error) {
	return l.Boards.GetBoard(ctx, boardID)
}

func (l RepositoryLoader) ListElements(ctx context.Context, boardID string) ([]models.BoardElement, error) {
	return l.Elements.ListElements(ctx, boardID)
}

// Hub tracks board groups and relays presence and content events to them.
type Hub struct {
	loader   BoardLoader
	presence presence.Store
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]*Client

	// Join, leave and content broadcasts for one board run under that board's lock.
	locks *boardLocks
}

// NewHub creates an empty hub.
func NewHub(loader BoardLoader, store presence.Store, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		loader:   loader,
		presence: store,
		logger:   logger,
		clients:  make(map[string]*Client),
		groups:   make(map[string]map[string]*Client),
		locks:    newBoardLocks(),
	}
}

type switchBoardRequest struct {
	From *string `json:"from"`
	To   string  `json:"to"`
}

type createBoardRequest struct {
	Name string `json:"name"`
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Connect registers the client. A non-empty currentBoard resumes the previous session; when the
// board is missing or not accessible the client stays unassigned and receives BoardNotFound.
func (h *Hub) Connect(ctx context.Context, client *Client, currentBoard string) {
	h.mu.Lock()
	h.clients[client.ID()] = client
	h.mu.Unlock()

	if currentBoard == "" {
		return
	}

	client.opMu.Lock()
	defer client.opMu.Unlock()

	if _, ok := h.resolveBoard(ctx, client, currentBoard); !ok {
		h.sendTo(client, models.EventBoardNotFound, currentBoard)
		return
	}
	if err := h.joinBoard(ctx, client, currentBoard); err != nil {
		h.logger.Warn("resume board failed",
			zap.String("conn_id", client.ID()),
			zap.String("board_id", currentBoard),
			zap.Error(err))
		h.sendTo(client, models.EventError, "could not join board")
	}
}

// Disconnect leaves the client's board, if any, and forgets the client. It waits for an in-flight
// SwitchBoard of the same connection. Calling it twice is harmless.
func (h *Hub) Disconnect(ctx context.Context, client *Client) {
	client.opMu.Lock()
	defer client.opMu.Unlock()

	if boardID := client.CurrentBoard(); boardID != "" {
		if err := h.leaveBoard(ctx, client, boardID); err != nil {
			h.logger.Warn("leave on disconnect failed",
				zap.String("conn_id", client.ID()),
				zap.String("board_id", boardID),
				zap.Error(err))
		}
	}

	h.mu.Lock()
	delete(h.clients, client.ID())
	h.mu.Unlock()
	client.close()
}

// SwitchBoard moves the client to board `to`. Passing from == to toggles the client off that board.
func (h *Hub) SwitchBoard(ctx context.Context, client *Client, from *string, to string) {
	client.opMu.Lock()
	defer client.opMu.Unlock()

	if from != nil && *from == to {
		if client.CurrentBoard() == to {
			if err := h.leaveBoard(ctx, client, to); err != nil {
				h.logger.Warn("leave board failed", zap.String("board_id", to), zap.Error(err))
			}
		}
		h.sendTo(client, models.EventSwitchedBoard, nil)
		return
	}

	board, ok := h.resolveBoard(ctx, client, to)
	if !ok {
		h.sendTo(client, models.EventBoardNotFound, to)
		return
	}
	elements, err := h.loader.ListElements(ctx, to)
	if err != nil {
		h.logger.Error("load elements failed", zap.String("board_id", to), zap.Error(err))
		h.sendTo(client, models.EventError, "could not load board")
		return
	}
	repositories.SortForDisplay(elements)

	current := client.CurrentBoard()
	if current != "" && current != to {
		if err := h.leaveBoard(ctx, client, current); err != nil {
			h.logger.Warn("leave board failed", zap.String("board_id", current), zap.Error(err))
		}
	}
	if current != to {
		if err := h.joinBoard(ctx, client, to); err != nil {
			h.logger.Error("join board failed", zap.String("board_id", to), zap.Error(err))
			h.sendTo(client, models.EventError, "could not join board")
			return
		}
	}

	view := models.NewBoardView(board, elements)
	h.sendTo(client, models.EventSwitchedBoard, view)
}

// AnnounceBoardCreated relays a BoardCreated event to every connected client.
func (h *Hub) AnnounceBoardCreated(announcement models.BoardAnnouncement) {
	payload, err := json.Marshal(models.BoardEvent{Type: models.EventBoardCreated, Data: announcement})
	if err != nil {
		h.logger.Error("encode event failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, payload)
	}
}

// BroadcastElement sends ReceiveElement to the element's board group.
func (h *Hub) BroadcastElement(element models.BoardElement) {
	h.broadcastContent(element.BoardID, models.EventReceiveElement, element)
}

// BroadcastImage sends ReceiveImage to the element's board group.
func (h *Hub) BroadcastImage(element models.BoardElement) {
	h.broadcastContent(element.BoardID, models.EventReceiveImage, element)
}

// BroadcastElementRemoved sends RemoveElement to the board group.
func (h *Hub) BroadcastElementRemoved(boardID, elementID string) {
	h.broadcastContent(boardID, models.EventRemoveElement, elementID)
}

// HandleMessage dispatches one inbound frame. Malformed frames are answered with Error.
func (h *Hub) HandleMessage(ctx context.Context, client *Client, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		observability.IncWSEvent("malformed_frame")
		h.sendTo(client, models.EventError, "malformed message")
		return
	}

	switch frame.Type {
	case models.RequestSwitchBoard:
		var req switchBoardRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.To == "" {
			observability.IncWSEvent("malformed_frame")
			h.sendTo(client, models.EventError, "switch board requires a target board")
			return
		}
		observability.IncWSEvent("switch_board")
		h.SwitchBoard(ctx, client, req.From, req.To)
	case models.RequestCreateBoard:
		var req createBoardRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.Name == "" {
			observability.IncWSEvent("malformed_frame")
			h.sendTo(client, models.EventError, "create board requires a name")
			return
		}
		observability.IncWSEvent("create_board")
		h.AnnounceBoardCreated(models.BoardAnnouncement{Name: req.Name})
	default:
		observability.IncWSEvent("unknown_frame")
		h.sendTo(client, models.EventError, "unknown message type")
	}
}

// ConnectedClients returns the number of registered connections.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GroupSize returns the number of connections subscribed to a board.
func (h *Hub) GroupSize(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[boardID])
}

func (h *Hub) resolveBoard(ctx context.Context, client *Client, boardID string) (models.Board, bool) {
	if _, err := uuid.Parse(boardID); err != nil {
		return models.Board{}, false
	}
	board, err := h.loader.GetBoard(ctx, boardID)
	if err != nil {
		if !errors.Is(err, repositories.ErrBoardNotFound) {
			h.logger.Error("load board failed", zap.String("board_id", boardID), zap.Error(err))
		}
		return models.Board{}, false
	}
	if !access.CanAccessBoard(client.subject, board) {
		return models.Board{}, false
	}
	return board, true
}

// joinBoard adds the client to the board group. A user observes one board at a time, so when
// the assignment moves off a board that another of the user's connections still watches, that
// board is told the user left.
func (h *Hub) joinBoard(ctx context.Context, client *Client, boardID string) error {
	previous, err := h.joinLocked(ctx, client, boardID)
	if err != nil {
		return err
	}
	if previous != "" {
		return h.announceLeft(ctx, client, previous)
	}
	return nil
}

func (h *Hub) joinLocked(ctx context.Context, client *Client, boardID string) (string, error) {
	unlock := h.locks.lock(boardID)
	defer unlock()

	previous, err := h.presence.SetUserBoard(ctx, client.subject.UserID, client.subject.Username, boardID)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	group, ok := h.groups[boardID]
	if !ok {
		group = make(map[string]*Client)
		h.groups[boardID] = group
	}
	group[client.ID()] = client
	h.mu.Unlock()
	client.setBoard(boardID)
	observability.IncBoardObservers()

	joined, err := h.presence.GetJoinedBoardUsers(ctx, boardID)
	if err != nil {
		return previous, err
	}
	event := h.presenceEvent(client, boardID, joined)
	h.broadcastLocked(boardID, models.EventUserJoinedBoard, event)
	h.publishPresence(ctx, client, "user_joined_board", boardID)
	return previous, nil
}

func (h *Hub) leaveBoard(ctx context.Context, client *Client, boardID string) error {
	unlock := h.locks.lock(boardID)
	defer unlock()

	h.mu.Lock()
	group := h.groups[boardID]
	_, member := group[client.ID()]
	delete(group, client.ID())
	if group != nil && len(group) == 0 {
		delete(h.groups, boardID)
	}
	stillPresent := false
	for _, other := range group {
		if other.subject.UserID == client.subject.UserID {
			stillPresent = true
			break
		}
	}
	h.mu.Unlock()
	client.setBoard("")
	if member {
		observability.DecBoardObservers()
	}

	// Another connection of the same user keeps the user on the board.
	if stillPresent {
		return nil
	}

	removed, err := h.presence.RemoveUserFromBoard(ctx, client.subject.UserID, boardID)
	if err != nil {
		return err
	}
	// Already moved to another board, and announced as gone from this one.
	if !removed {
		return nil
	}
	return h.broadcastLeftLocked(ctx, client, boardID)
}

func (h *Hub) announceLeft(ctx context.Context, client *Client, boardID string) error {
	unlock := h.locks.lock(boardID)
	defer unlock()
	return h.broadcastLeftLocked(ctx, client, boardID)
}

func (h *Hub) broadcastLeftLocked(ctx context.Context, client *Client, boardID string) error {
	joined, err := h.presence.GetJoinedBoardUsers(ctx, boardID)
	if err != nil {
		return err
	}
	event := h.presenceEvent(client, boardID, joined)
	h.broadcastLocked(boardID, models.EventUserLeftBoard, event)
	h.publishPresence(ctx, client, "user_left_board", boardID)
	return nil
}

// RevalidateBoard takes connections off a board they may no longer see, after a member was
// removed or the board was deleted. Each evicted connection receives SwitchedBoard(null).
func (h *Hub) RevalidateBoard(ctx context.Context, boardID string) {
	board, err := h.loader.GetBoard(ctx, boardID)
	deleted := errors.Is(err, repositories.ErrBoardNotFound)
	if err != nil && !deleted {
		h.logger.Error("revalidate board failed", zap.String("board_id", boardID), zap.Error(err))
		return
	}

	h.mu.RLock()
	group := h.groups[boardID]
	targets := make([]*Client, 0, len(group))
	for _, c := range group {
		if deleted || !access.CanAccessBoard(c.subject, board) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.evict(ctx, c, boardID)
	}
}

func (h *Hub) evict(ctx context.Context, client *Client, boardID string) {
	client.opMu.Lock()
	defer client.opMu.Unlock()

	if client.CurrentBoard() != boardID {
		return
	}
	if err := h.leaveBoard(ctx, client, boardID); err != nil {
		h.logger.Warn("evict from board failed",
			zap.String("conn_id", client.ID()),
			zap.String("board_id", boardID),
			zap.Error(err))
	}
	observability.IncWSEvent("board_evicted")
	h.sendTo(client, models.EventSwitchedBoard, nil)
}

func (h *Hub) presenceEvent(client *Client, boardID string, joined []models.JoinedBoardUser) models.PresenceEvent {
	if joined == nil {
		joined = []models.JoinedBoardUser{}
	}
	presence.SortJoinedUsers(joined)
	return models.PresenceEvent{
		UserID:      client.subject.UserID,
		UserName:    client.subject.Username,
		BoardID:     boardID,
		JoinedUsers: joined,
	}
}

func (h *Hub) broadcastContent(boardID, eventType string, data any) {
	unlock := h.locks.lock(boardID)
	defer unlock()
	h.broadcastLocked(boardID, eventType, data)
}

// broadcastLocked requires the board lock.
func (h *Hub) broadcastLocked(boardID, eventType string, data any) {
	payload, err := json.Marshal(models.BoardEvent{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("encode event failed", zap.String("event", eventType), zap.Error(err))
		return
	}

	h.mu.RLock()
	group := h.groups[boardID]
	targets := make([]*Client, 0, len(group))
	for _, c := range group {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, payload)
	}
}

func (h *Hub) sendTo(client *Client, eventType string, data any) {
	payload, err := json.Marshal(models.BoardEvent{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("encode event failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	h.deliver(client, payload)
}

// deliver drops a client whose buffer is full. Its read loop then observes the closed socket
// and runs Disconnect.
func (h *Hub) deliver(client *Client, payload []byte) {
	if client.enqueue(payload) {
		return
	}
	if client.close() {
		observability.IncWSDroppedClient()
		h.logger.Warn("websocket send buffer full, dropping client",
			zap.String("conn_id", client.ID()),
			zap.String("user_id", client.subject.UserID))
		h.publishWSEvent(context.Background(), client, "ws_error", "send buffer full")
	}
}

func (h *Hub) publishPresence(ctx context.Context, client *Client, name, boardID string) {
	info := client.Info()
	observability.PublishEvent(ctx, observability.RoutingKeyPresenceEvents, observability.EventEnvelope{
		EventType: "presence_events",
		EventName: name,
		Payload: map[string]interface{}{
			"board_id": boardID,
			"conn_id":  info.ConnID,
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func (h *Hub) publishWSEvent(ctx context.Context, client *Client, name, reason string) {
	info := client.Info()
	observability.IncWSEvent(name)
	observability.PublishEvent(ctx, observability.RoutingKeyWSEvents, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "board",
				"resource_id": client.CurrentBoard(),
				"event":       name,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
