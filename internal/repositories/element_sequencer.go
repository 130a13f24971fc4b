package repositories

import (
	"context"
	"errors"
	"sort"

	"github.com/lib/pq"

	"board-service/internal/models"
)

// ErrSequenceConflict is returned when element numbering kept colliding after every retry.
var ErrSequenceConflict = errors.New("element number conflict")

const (
	maxSequenceAttempts = 5
	pqUniqueViolation   = "23505"
)

// NextElementNumber returns the number following the board's current maximum.
// An empty board (max 0) starts at 1.
func NextElementNumber(currentMax int) int {
	if currentMax < 0 {
		currentMax = 0
	}
	return currentMax + 1
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// withSequenceRetry runs insert until it succeeds, fails with anything other than a
// unique violation, or runs out of attempts.
func withSequenceRetry(ctx context.Context, attempts int, insert func(context.Context) error) error {
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := insert(ctx)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
	}
	return ErrSequenceConflict
}

// SortForDisplay orders elements newest first by element number.
func SortForDisplay(elements []models.BoardElement) {
	sort.SliceStable(elements, func(i, j int) bool {
		return elements[i].ElementNumber > elements[j].ElementNumber
	})
}
