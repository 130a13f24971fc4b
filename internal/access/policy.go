// Package access decides who may see and change a board. Every REST and realtime
// path goes through these predicates.
package access

import "board-service/internal/models"

// Subject is the authenticated caller.
type Subject struct {
	UserID   string
	Username string
	Roles    []string
}

// IsAdministrator reports whether the subject holds the Administrator role.
func (s Subject) IsAdministrator() bool {
	for _, r := range s.Roles {
		if r == models.RoleAdministrator {
			return true
		}
	}
	return false
}

// CanAccessBoard is true for the owner, an explicit member or an administrator.
// The board's Members must be loaded.
func CanAccessBoard(s Subject, board models.Board) bool {
	if s.UserID == "" {
		return false
	}
	return board.OwnerID == s.UserID || board.HasMember(s.UserID) || s.IsAdministrator()
}

// CanManageBoard gates rename, lock, delete and membership changes.
func CanManageBoard(s Subject, board models.Board) bool {
	if s.UserID == "" {
		return false
	}
	return board.OwnerID == s.UserID || s.IsAdministrator()
}

// CanEditBoard gates element writes: locked boards only accept managers.
func CanEditBoard(s Subject, board models.Board) bool {
	if !CanAccessBoard(s, board) {
		return false
	}
	return !board.IsLocked || CanManageBoard(s, board)
}
