// Package presence tracks which board each connected user is currently observing.
package presence

import (
	"context"
	"sort"
	"sync"

	"board-service/internal/models"
)

// Store is the user->board assignment registry. A user observes at most one board.
type Store interface {
	// SetUserBoard assigns boardID and returns the board the user was moved off, or "".
	SetUserBoard(ctx context.Context, userID, username, boardID string) (previous string, err error)
	// GetUserBoard returns the board a user is observing; ok is false when unassigned.
	GetUserBoard(ctx context.Context, userID string) (boardID string, ok bool, err error)
	// GetJoinedBoardUsers returns a snapshot of the board's observers ordered by username.
	GetJoinedBoardUsers(ctx context.Context, boardID string) ([]models.JoinedBoardUser, error)
	RemoveUser(ctx context.Context, userID string) error
	// RemoveUserFromBoard drops the assignment only while it still points at boardID.
	RemoveUserFromBoard(ctx context.Context, userID, boardID string) (removed bool, err error)
}

// Mapping is the process-local Store. Every operation holds mu, so a reader never
// sees a board assignment without its username.
type Mapping struct {
	mu         sync.Mutex
	userBoards map[string]string
	usernames  map[string]string
}

// NewMapping creates an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{
		userBoards: make(map[string]string),
		usernames:  make(map[string]string),
	}
}

// SetUserBoard assigns boardID to the user, replacing any previous assignment.
func (m *Mapping) SetUserBoard(_ context.Context, userID, username, boardID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous := m.userBoards[userID]
	m.usernames[userID] = username
	m.userBoards[userID] = boardID
	if previous == boardID {
		previous = ""
	}
	return previous, nil
}

// GetUserBoard returns the board the user is observing.
func (m *Mapping) GetUserBoard(_ context.Context, userID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	boardID, ok := m.userBoards[userID]
	return boardID, ok, nil
}

// GetJoinedBoardUsers returns the users observing boardID.
func (m *Mapping) GetJoinedBoardUsers(_ context.Context, boardID string) ([]models.JoinedBoardUser, error) {
	m.mu.Lock()
	users := make([]models.JoinedBoardUser, 0)
	for userID, b := range m.userBoards {
		if b == boardID {
			users = append(users, models.JoinedBoardUser{ID: userID, Username: m.usernames[userID]})
		}
	}
	m.mu.Unlock()

	SortJoinedUsers(users)
	return users, nil
}

// RemoveUser drops the user's assignment. Unknown users are ignored.
func (m *Mapping) RemoveUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.usernames, userID)
	delete(m.userBoards, userID)
	return nil
}

// RemoveUserFromBoard drops the user's assignment if it is still boardID.
func (m *Mapping) RemoveUserFromBoard(_ context.Context, userID, boardID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.userBoards[userID]; !ok || current != boardID {
		return false, nil
	}
	delete(m.usernames, userID)
	delete(m.userBoards, userID)
	return true, nil
}

// SortJoinedUsers orders by username, then id.
func SortJoinedUsers(users []models.JoinedBoardUser) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].Username != users[j].Username {
			return users[i].Username < users[j].Username
		}
		return users[i].ID < users[j].ID
	})
}

var _ Store = (*Mapping)(nil)
