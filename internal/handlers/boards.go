package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"board-service/internal/access"
	"board-service/internal/models"
	"board-service/internal/repositories"
	"board-service/internal/telemetry"
)

const maxBoardNameLength = 100

var boardNamePattern = regexp.MustCompile(`^[\w\-]+$`)

// BoardRevalidator drops live subscriptions that lost access to a board.
type BoardRevalidator interface {
	RevalidateBoard(ctx context.Context, boardID string)
}

// BoardHandler manages board and membership endpoints.
type BoardHandler struct {
	boards   repositories.BoardRepository
	elements repositories.ElementRepository
	users    repositories.UserRepository
	hub      BoardRevalidator
	audit    *telemetry.AuditEmitter
}

// NewBoardHandler builds a BoardHandler.
func NewBoardHandler(boards repositories.BoardRepository, elements repositories.ElementRepository, users repositories.UserRepository, hub BoardRevalidator, audit *telemetry.AuditEmitter) *BoardHandler {
	return &BoardHandler{
		boards:   boards,
		elements: elements,
		users:    users,
		hub:      hub,
		audit:    audit,
	}
}

// CreateBoard handles POST /boards.
func (h *BoardHandler) CreateBoard(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validBoardName(req.Name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "board name may only contain letters, digits, '_' and '-'"})
		return
	}

	subject := subjectFromContext(c)
	board, err := h.boards.CreateBoard(c.Request.Context(), subject.UserID, req.Name)
	if err != nil {
		zap.L().Error("create board failed", zap.String("user_id", subject.UserID), zap.Error(err))
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create board"})
		return
	}

	h.emitAudit(c, "INFO", "Board created")
	c.JSON(http.StatusCreated, models.NewBoardView(board, nil))
}

// ListBoards returns the boards the caller can access. Administrators see all boards.
func (h *BoardHandler) ListBoards(c *gin.Context) {
	subject := subjectFromContext(c)
	boards, err := h.boards.ListBoardsForUser(c.Request.Context(), subject.UserID, subject.IsAdministrator())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load boards"})
		return
	}
	if boards == nil {
		boards = []models.Board{}
	}
	c.JSON(http.StatusOK, gin.H{"boards": boards})
}

// GetBoard returns the board with members and elements, newest element first.
func (h *BoardHandler) GetBoard(c *gin.Context) {
	board, ok := h.loadAccessibleBoard(c)
	if !ok {
		return
	}

	elements, err := h.elements.ListElements(c.Request.Context(), board.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load elements"})
		return
	}
	repositories.SortForDisplay(elements)

	c.JSON(http.StatusOK, models.NewBoardView(board, elements))
}

// UpdateBoard renames, locks or unlocks a board.
func (h *BoardHandler) UpdateBoard(c *gin.Context) {
	board, ok := h.loadManagedBoard(c)
	if !ok {
		return
	}

	var req struct {
		Name     *string `json:"name"`
		IsLocked *bool   `json:"is_locked"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name, locked := board.Name, board.IsLocked
	if req.Name != nil {
		if !validBoardName(*req.Name) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "board name may only contain letters, digits, '_' and '-'"})
			return
		}
		name = *req.Name
	}
	if req.IsLocked != nil {
		locked = *req.IsLocked
	}

	updated, err := h.boards.UpdateBoard(c.Request.Context(), board.ID, name, locked)
	if err != nil {
		if errors.Is(err, repositories.ErrBoardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update board"})
		return
	}
	updated.Members = board.Members

	h.emitAudit(c, "INFO", "Board updated")
	c.JSON(http.StatusOK, models.NewBoardView(updated, nil))
}

// DeleteBoard removes a board with its memberships and elements.
func (h *BoardHandler) DeleteBoard(c *gin.Context) {
	board, ok := h.loadManagedBoard(c)
	if !ok {
		return
	}

	if err := h.boards.DeleteBoard(c.Request.Context(), board.ID); err != nil {
		if errors.Is(err, repositories.ErrBoardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete board"})
		return
	}
	h.revalidate(c, board.ID)

	h.emitAudit(c, "INFO", "Board deleted")
	c.Status(http.StatusNoContent)
}

// AddMember adds a user, looked up by username, to the board.
func (h *BoardHandler) AddMember(c *gin.Context) {
	board, ok := h.loadManagedBoard(c)
	if !ok {
		return
	}

	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.FindByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if user.ID == board.OwnerID || board.HasMember(user.ID) {
		c.JSON(http.StatusConflict, gin.H{"error": "user is already a member"})
		return
	}

	if err := h.boards.AddMember(c.Request.Context(), board.ID, user.ID); err != nil {
		if errors.Is(err, repositories.ErrAlreadyMember) {
			c.JSON(http.StatusConflict, gin.H{"error": "user is already a member"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add member"})
		return
	}

	h.emitAudit(c, "INFO", "Board member added")
	c.JSON(http.StatusCreated, models.BoardMember{BoardID: board.ID, UserID: user.ID, Username: user.Username})
}

// RemoveMember removes a user from the board.
func (h *BoardHandler) RemoveMember(c *gin.Context) {
	board, ok := h.loadManagedBoard(c)
	if !ok {
		return
	}

	userID := c.Param("user_id")
	if _, err := uuid.Parse(userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if err := h.boards.RemoveMember(c.Request.Context(), board.ID, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove member"})
		return
	}
	h.revalidate(c, board.ID)

	h.emitAudit(c, "INFO", "Board member removed")
	c.Status(http.StatusNoContent)
}

func (h *BoardHandler) revalidate(c *gin.Context, boardID string) {
	if h.hub != nil {
		h.hub.RevalidateBoard(c.Request.Context(), boardID)
	}
}

// loadAccessibleBoard writes 404 for missing boards and for boards the caller may not see.
func (h *BoardHandler) loadAccessibleBoard(c *gin.Context) (models.Board, bool) {
	return loadBoard(c, h.boards, access.CanAccessBoard)
}

// loadManagedBoard additionally requires owner or administrator rights, answering 403 to members.
func (h *BoardHandler) loadManagedBoard(c *gin.Context) (models.Board, bool) {
	board, ok := h.loadAccessibleBoard(c)
	if !ok {
		return models.Board{}, false
	}
	if !access.CanManageBoard(subjectFromContext(c), board) {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can change this board"})
		return models.Board{}, false
	}
	return board, true
}

func (h *BoardHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func loadBoard(c *gin.Context, boards repositories.BoardRepository, allowed func(access.Subject, models.Board) bool) (models.Board, bool) {
	boardID := c.Param("board_id")
	if _, err := uuid.Parse(boardID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
		return models.Board{}, false
	}

	board, err := boards.GetBoard(c.Request.Context(), boardID)
	if err != nil {
		if errors.Is(err, repositories.ErrBoardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
			return models.Board{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load board"})
		return models.Board{}, false
	}
	if !allowed(subjectFromContext(c), board) {
		c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
		return models.Board{}, false
	}
	return board, true
}

func validBoardName(name string) bool {
	return len(name) <= maxBoardNameLength && boardNamePattern.MatchString(name)
}
