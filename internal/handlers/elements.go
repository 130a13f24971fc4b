package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"board-service/internal/access"
	"board-service/internal/models"
	"board-service/internal/repositories"
	"board-service/internal/storage"
	"board-service/internal/telemetry"
)

// Broadcaster fans element changes out to the board's realtime group.
type Broadcaster interface {
	BroadcastElement(element models.BoardElement)
	BroadcastImage(element models.BoardElement)
	BroadcastElementRemoved(boardID, elementID string)
}

// ImageStorage persists element images.
type ImageStorage interface {
	SaveBase64(encoded string) (string, error)
	Delete(imageID string) error
}

// ElementHandler manages board element endpoints.
type ElementHandler struct {
	boards   repositories.BoardRepository
	elements repositories.ElementRepository
	images   ImageStorage
	hub      Broadcaster
	audit    *telemetry.AuditEmitter
}

// NewElementHandler builds an ElementHandler.
func NewElementHandler(boards repositories.BoardRepository, elements repositories.ElementRepository, images ImageStorage, hub Broadcaster, audit *telemetry.AuditEmitter) *ElementHandler {
	return &ElementHandler{
		boards:   boards,
		elements: elements,
		images:   images,
		hub:      hub,
		audit:    audit,
	}
}

// ListElements returns the board's elements, highest element number first.
func (h *ElementHandler) ListElements(c *gin.Context) {
	board, ok := loadBoard(c, h.boards, access.CanAccessBoard)
	if !ok {
		return
	}

	elements, err := h.elements.ListElements(c.Request.Context(), board.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load elements"})
		return
	}
	if elements == nil {
		elements = []models.BoardElement{}
	}
	repositories.SortForDisplay(elements)
	c.JSON(http.StatusOK, gin.H{"elements": elements})
}

// CreateElement stores a new element and relays it to the board group.
func (h *ElementHandler) CreateElement(c *gin.Context) {
	board, ok := h.loadEditableBoard(c)
	if !ok {
		return
	}

	var req struct {
		Note      *string `json:"note"`
		Direction *string `json:"direction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var direction *models.Direction
	if req.Direction != nil {
		d := models.Direction(*req.Direction)
		if !d.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid direction"})
			return
		}
		direction = &d
	}

	userID := subjectFromContext(c).UserID
	element, err := h.elements.CreateElement(c.Request.Context(), models.NewElement{
		BoardID:   board.ID,
		UserID:    &userID,
		Note:      req.Note,
		Direction: direction,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrBoardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
			return
		}
		zap.L().Error("create element failed", zap.String("board_id", board.ID), zap.Error(err))
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create element"})
		return
	}

	if h.hub != nil {
		h.hub.BroadcastElement(element)
	}
	h.emitAudit(c, "INFO", "Board element created")
	c.JSON(http.StatusCreated, element)
}

// AttachImage stores a base64 JPEG for an element and relays the updated element.
func (h *ElementHandler) AttachImage(c *gin.Context) {
	board, ok := h.loadEditableBoard(c)
	if !ok {
		return
	}
	element, ok := h.loadElement(c, board.ID)
	if !ok {
		return
	}

	var req struct {
		Image string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imageID, err := h.images.SaveBase64(req.Image)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrImageTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "image must be a base64 encoded jpeg"})
		}
		return
	}

	updated, err := h.elements.SetImage(c.Request.Context(), element.ID, imageID)
	if err != nil {
		_ = h.images.Delete(imageID)
		if errors.Is(err, repositories.ErrElementNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "element not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not attach image"})
		return
	}
	if element.ImageID != nil {
		h.removeImage(*element.ImageID)
	}

	if h.hub != nil {
		h.hub.BroadcastImage(updated)
	}
	h.emitAudit(c, "INFO", "Board element image attached")
	c.JSON(http.StatusOK, updated)
}

// DeleteElement removes an element and relays its id to the board group.
func (h *ElementHandler) DeleteElement(c *gin.Context) {
	board, ok := h.loadEditableBoard(c)
	if !ok {
		return
	}
	element, ok := h.loadElement(c, board.ID)
	if !ok {
		return
	}

	if err := h.elements.DeleteElement(c.Request.Context(), element.ID); err != nil {
		if errors.Is(err, repositories.ErrElementNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "element not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete element"})
		return
	}
	if element.ImageID != nil {
		h.removeImage(*element.ImageID)
	}

	if h.hub != nil {
		h.hub.BroadcastElementRemoved(board.ID, element.ID)
	}
	h.emitAudit(c, "INFO", "Board element deleted")
	c.Status(http.StatusNoContent)
}

// loadEditableBoard answers 404 without access and 423 when a locked board is written by a non-manager.
func (h *ElementHandler) loadEditableBoard(c *gin.Context) (models.Board, bool) {
	board, ok := loadBoard(c, h.boards, access.CanAccessBoard)
	if !ok {
		return models.Board{}, false
	}
	if !access.CanEditBoard(subjectFromContext(c), board) {
		h.emitAudit(c, "ERROR", "board locked")
		c.JSON(http.StatusLocked, gin.H{"error": "board is locked"})
		return models.Board{}, false
	}
	return board, true
}

func (h *ElementHandler) loadElement(c *gin.Context, boardID string) (models.BoardElement, bool) {
	elementID := c.Param("element_id")
	if _, err := uuid.Parse(elementID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "element not found"})
		return models.BoardElement{}, false
	}

	element, err := h.elements.GetElement(c.Request.Context(), elementID)
	if err != nil {
		if errors.Is(err, repositories.ErrElementNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "element not found"})
			return models.BoardElement{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load element"})
		return models.BoardElement{}, false
	}
	if element.BoardID != boardID {
		c.JSON(http.StatusNotFound, gin.H{"error": "element not found"})
		return models.BoardElement{}, false
	}
	return element, true
}

func (h *ElementHandler) removeImage(imageID string) {
	if err := h.images.Delete(imageID); err != nil {
		zap.L().Warn("remove image failed", zap.String("image_id", imageID), zap.Error(err))
	}
}

func (h *ElementHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
