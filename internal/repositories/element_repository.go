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

var ErrElementNotFound = errors.New("element not found")

// ElementRepository defines interactions for board elements.
type ElementRepository interface {
	CreateElement(ctx context.Context, el models.NewElement) (models.BoardElement, error)
	// ListElements returns the board's elements ordered by element number, newest first.
	ListElements(ctx context.Context, boardID string) ([]models.BoardElement, error)
	GetElement(ctx context.Context, elementID string) (models.BoardElement, error)
	SetImage(ctx context.Context, elementID, imageID string) (models.BoardElement, error)
	DeleteElement(ctx context.Context, elementID string) error
}

// ElementRepo is a sqlx-backed implementation.
type ElementRepo struct {
	db *sqlx.DB
}

// NewElementRepo constructs an ElementRepo.
func NewElementRepo(db *sqlx.DB) *ElementRepo {
	return &ElementRepo{db: db}
}

const elementSelect = `SELECT e.id, e.board_id, e.element_number, e.note, e.direction, e.image_id, e.user_id, u.username, e.created_at
        FROM board_elements e LEFT JOIN users u ON u.id = e.user_id`

// CreateElement numbers and stores a new element.
func (r *ElementRepo) CreateElement(ctx context.Context, el models.NewElement) (models.BoardElement, error) {
	elementID := uuid.NewString()
	err := withSequenceRetry(ctx, maxSequenceAttempts, func(ctx context.Context) error {
		return r.insertNext(ctx, elementID, el)
	})
	if err != nil {
		return models.BoardElement{}, err
	}
	return r.GetElement(ctx, elementID)
}

// insertNext holds the board row lock while reading the current maximum, so concurrent
// creations on one board take turns; the unique constraint backs this up.
func (r *ElementRepo) insertNext(ctx context.Context, elementID string, el models.NewElement) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var locked string
	if err = tx.GetContext(ctx, &locked, `SELECT id FROM boards WHERE id=$1 FOR UPDATE`, el.BoardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrBoardNotFound
		}
		return err
	}

	var currentMax int
	if err = tx.GetContext(ctx, &currentMax, `SELECT COALESCE(MAX(element_number), 0) FROM board_elements WHERE board_id=$1`, el.BoardID); err != nil {
		return fmt.Errorf("read element number: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO board_elements (id, board_id, element_number, note, direction, user_id)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		elementID, el.BoardID, NextElementNumber(currentMax), el.Note, el.Direction, el.UserID); err != nil {
		return err
	}

	return tx.Commit()
}

// ListElements returns the board's elements, newest first.
func (r *ElementRepo) ListElements(ctx context.Context, boardID string) ([]models.BoardElement, error) {
	elements := []models.BoardElement{}
	err := r.db.SelectContext(ctx, &elements, elementSelect+` WHERE e.board_id=$1 ORDER BY e.element_number DESC`, boardID)
	return elements, err
}

// GetElement fetches a single element.
func (r *ElementRepo) GetElement(ctx context.Context, elementID string) (models.BoardElement, error) {
	var el models.BoardElement
	err := r.db.GetContext(ctx, &el, elementSelect+` WHERE e.id=$1`, elementID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BoardElement{}, ErrElementNotFound
	}
	return el, err
}

// SetImage attaches an image to an element.
func (r *ElementRepo) SetImage(ctx context.Context, elementID, imageID string) (models.BoardElement, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE board_elements SET image_id=$2 WHERE id=$1`, elementID, imageID)
	if err != nil {
		return models.BoardElement{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.BoardElement{}, err
	}
	if count == 0 {
		return models.BoardElement{}, ErrElementNotFound
	}
	return r.GetElement(ctx, elementID)
}

// DeleteElement removes an element.
func (r *ElementRepo) DeleteElement(ctx context.Context, elementID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM board_elements WHERE id=$1`, elementID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrElementNotFound
	}
	return nil
}
