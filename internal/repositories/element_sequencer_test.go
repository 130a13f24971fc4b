package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"board-service/internal/models"
)

func TestNextElementNumber(t *testing.T) {
	require.Equal(t, 1, NextElementNumber(0))
	require.Equal(t, 8, NextElementNumber(7))
	require.Equal(t, 1, NextElementNumber(-3))
}

func TestWithSequenceRetryRecoversFromConflicts(t *testing.T) {
	calls := 0
	err := withSequenceRetry(context.Background(), maxSequenceAttempts, func(context.Context) error {
		calls++
		if calls < 3 {
			return &pq.Error{Code: pqUniqueViolation}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithSequenceRetryGivesUp(t *testing.T) {
	calls := 0
	err := withSequenceRetry(context.Background(), 4, func(context.Context) error {
		calls++
		return &pq.Error{Code: pqUniqueViolation}
	})
	require.ErrorIs(t, err, ErrSequenceConflict)
	require.Equal(t, 4, calls)
}

func TestWithSequenceRetryStopsOnOtherErrors(t *testing.T) {
	calls := 0
	err := withSequenceRetry(context.Background(), maxSequenceAttempts, func(context.Context) error {
		calls++
		return ErrBoardNotFound
	})
	require.True(t, errors.Is(err, ErrBoardNotFound))
	require.Equal(t, 1, calls)
}

func TestWithSequenceRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withSequenceRetry(ctx, maxSequenceAttempts, func(context.Context) error {
		t.Fatal("insert must not run after cancellation")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSortForDisplayIsDescending(t *testing.T) {
	elements := make([]models.BoardElement, 0, 5)
	for n := 1; n <= 5; n++ {
		elements = append(elements, models.BoardElement{ElementNumber: n})
	}
	SortForDisplay(elements)

	got := make([]int, 0, len(elements))
	for _, e := range elements {
		got = append(got, e.ElementNumber)
	}
	require.Equal(t, []int{5, 4, 3, 2, 1}, got)
}
