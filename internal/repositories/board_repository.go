package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"board-service/internal/models"
)

var (
	ErrBoardNotFound = errors.New("board not found")
	ErrAlreadyMember = errors.New("user is already a member of the board")
)

// BoardRepository abstracts board persistence.
type BoardRepository interface {
	CreateBoard(ctx context.Context, ownerID, name string) (models.Board, error)
	// GetBoard returns the board with Members loaded.
	GetBoard(ctx context.Context, boardID string) (models.Board, error)
	ListBoardsForUser(ctx context.Context, userID string, includeAll bool) ([]models.Board, error)
	UpdateBoard(ctx context.Context, boardID, name string, isLocked bool) (models.Board, error)
	DeleteBoard(ctx context.Context, boardID string) error
	AddMember(ctx context.Context, boardID, userID string) error
	RemoveMember(ctx context.Context, boardID, userID string) error
}

// BoardRepo is a sqlx implementation of BoardRepository.
type BoardRepo struct {
	db *sqlx.DB
}

// NewBoardRepo constructs a BoardRepo.
func NewBoardRepo(db *sqlx.DB) *BoardRepo {
	return &BoardRepo{db: db}
}

const boardColumns = `id, name, owner_id, is_locked, created_at`

// CreateBoard inserts a board owned by ownerID.
func (r *BoardRepo) CreateBoard(ctx context.Context, ownerID, name string) (models.Board, error) {
	var board models.Board
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO boards (id, name, owner_id) VALUES ($1, $2, $3) RETURNING `+boardColumns,
		uuid.NewString(), name, ownerID).StructScan(&board)
	if err != nil {
		return models.Board{}, err
	}
	board.Members = []models.BoardMember{}
	return board, nil
}

// GetBoard fetches a board and its members.
func (r *BoardRepo) GetBoard(ctx context.Context, boardID string) (models.Board, error) {
	var board models.Board
	err := r.db.GetContext(ctx, &board, `SELECT `+boardColumns+` FROM boards WHERE id=$1`, boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, ErrBoardNotFound
	}
	if err != nil {
		return models.Board{}, err
	}

	members := []models.BoardMember{}
	err = r.db.SelectContext(ctx, &members, `SELECT bm.board_id, bm.user_id, u.username, bm.created_at
        FROM board_members bm INNER JOIN users u ON u.id = bm.user_id
        WHERE bm.board_id=$1 ORDER BY bm.created_at ASC`, boardID)
	if err != nil {
		return models.Board{}, fmt.Errorf("load members: %w", err)
	}
	board.Members = members
	return board, nil
}

// ListBoardsForUser returns boards the user owns or belongs to, or every board when includeAll is set.
func (r *BoardRepo) ListBoardsForUser(ctx context.Context, userID string, includeAll bool) ([]models.Board, error) {
	boards := []models.Board{}
	if includeAll {
		err := r.db.SelectContext(ctx, &boards, `SELECT `+boardColumns+` FROM boards ORDER BY created_at DESC`)
		return boards, err
	}
	err := r.db.SelectContext(ctx, &boards, `SELECT DISTINCT b.id, b.name, b.owner_id, b.is_locked, b.created_at FROM boards b
        LEFT JOIN board_members bm ON bm.board_id = b.id
        WHERE b.owner_id=$1 OR bm.user_id=$1
        ORDER BY b.created_at DESC`, userID)
	return boards, err
}

// UpdateBoard renames and (un)locks a board.
func (r *BoardRepo) UpdateBoard(ctx context.Context, boardID, name string, isLocked bool) (models.Board, error) {
	var board models.Board
	err := r.db.QueryRowxContext(ctx,
		`UPDATE boards SET name=$2, is_locked=$3 WHERE id=$1 RETURNING `+boardColumns,
		boardID, name, isLocked).StructScan(&board)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, ErrBoardNotFound
	}
	return board, err
}

// DeleteBoard removes a board with its members and elements.
func (r *BoardRepo) DeleteBoard(ctx context.Context, boardID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id=$1`, boardID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrBoardNotFound
	}
	return nil
}

// AddMember adds an explicit membership row.
func (r *BoardRepo) AddMember(ctx context.Context, boardID, userID string) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO board_members (board_id, user_id) VALUES ($1, $2)
        ON CONFLICT (board_id, user_id) DO NOTHING`, boardID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrAlreadyMember
	}
	return nil
}

// RemoveMember deletes a membership row.
func (r *BoardRepo) RemoveMember(ctx context.Context, boardID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM board_members WHERE board_id=$1 AND user_id=$2`, boardID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
