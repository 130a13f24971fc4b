package repositories

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"board-service/internal/db"
	"board-service/internal/models"
)

// Runs against a real Postgres when BOARD_TEST_DSN is set.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("BOARD_TEST_DSN")
	if dsn == "" {
		t.Skip("BOARD_TEST_DSN not set")
	}
	database, err := db.Connect(dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestCreateElementConcurrentNumbering(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	users := NewUserRepo(database)
	boards := NewBoardRepo(database)
	elements := NewElementRepo(database)

	owner := models.User{ID: uuid.NewString(), Username: "owner-" + uuid.NewString()[:8], Role: "User"}
	require.NoError(t, users.UpsertUser(ctx, owner))
	board, err := boards.CreateBoard(ctx, owner.ID, "trip")
	require.NoError(t, err)
	t.Cleanup(func() { _ = boards.DeleteBoard(ctx, board.ID) })

	const n = 20
	var wg sync.WaitGroup
	numbers := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			note := "hello"
			el, err := elements.CreateElement(ctx, models.NewElement{BoardID: board.ID, UserID: &owner.ID, Note: &note})
			if !assert.NoError(t, err) {
				return
			}
			numbers <- el.ElementNumber
		}()
	}
	wg.Wait()
	close(numbers)

	got := make([]int, 0, n)
	require.Len(t, numbers, n)
	for num := range numbers {
		got = append(got, num)
	}
	sort.Ints(got)
	for i, num := range got {
		require.Equal(t, i+1, num)
	}

	listed, err := elements.ListElements(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, listed, n)
	require.Equal(t, n, listed[0].ElementNumber)
	require.Equal(t, 1, listed[n-1].ElementNumber)
}
