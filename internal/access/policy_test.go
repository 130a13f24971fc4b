package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"board-service/internal/models"
)

func TestCanAccessBoard(t *testing.T) {
	board := models.Board{
		ID:      "trip",
		OwnerID: "owner",
		Members: []models.BoardMember{{BoardID: "trip", UserID: "member"}},
	}

	cases := []struct {
		name    string
		subject Subject
		want    bool
	}{
		{"owner", Subject{UserID: "owner"}, true},
		{"member", Subject{UserID: "member"}, true},
		{"admin", Subject{UserID: "root", Roles: []string{"User", models.RoleAdministrator}}, true},
		{"outsider", Subject{UserID: "outsider", Roles: []string{"User"}}, false},
		{"anonymous", Subject{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanAccessBoard(tc.subject, board))
		})
	}
}

func TestCanAccessBoardOwnerWithoutMembershipRows(t *testing.T) {
	board := models.Board{ID: "b", OwnerID: "owner"}
	assert.True(t, CanAccessBoard(Subject{UserID: "owner"}, board))
}

func TestCanManageBoard(t *testing.T) {
	board := models.Board{
		OwnerID: "owner",
		Members: []models.BoardMember{{UserID: "member"}},
	}
	assert.True(t, CanManageBoard(Subject{UserID: "owner"}, board))
	assert.True(t, CanManageBoard(Subject{UserID: "x", Roles: []string{models.RoleAdministrator}}, board))
	assert.False(t, CanManageBoard(Subject{UserID: "member"}, board))
}

func TestCanEditLockedBoard(t *testing.T) {
	board := models.Board{
		OwnerID:  "owner",
		IsLocked: true,
		Members:  []models.BoardMember{{UserID: "member"}},
	}
	assert.True(t, CanEditBoard(Subject{UserID: "owner"}, board))
	assert.False(t, CanEditBoard(Subject{UserID: "member"}, board))

	board.IsLocked = false
	assert.True(t, CanEditBoard(Subject{UserID: "member"}, board))
	assert.False(t, CanEditBoard(Subject{UserID: "outsider"}, board))
}
