package models

import "time"

// Board is a shared collaboration space owned by one user.
type Board struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   string    `db:"owner_id" json:"user_id"`
	IsLocked  bool      `db:"is_locked" json:"is_locked"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Members holds explicit memberships. Loaded by repository calls that say so.
	Members []BoardMember `db:"-" json:"-"`
}

// HasMember reports whether userID holds an explicit membership row.
func (b Board) HasMember(userID string) bool {
	for _, m := range b.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// BoardMember associates a user with a board they were added to.
type BoardMember struct {
	BoardID   string    `db:"board_id" json:"-"`
	UserID    string    `db:"user_id" json:"id"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BoardView is the client representation of a board with its members and elements.
type BoardView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	OwnerID   string         `json:"user_id"`
	IsLocked  bool           `json:"is_locked"`
	CreatedAt time.Time      `json:"created_at"`
	Users     []BoardMember  `json:"users"`
	Elements  []BoardElement `json:"elements"`
}

// NewBoardView assembles a view. Elements are expected in display order.
func NewBoardView(board Board, elements []BoardElement) BoardView {
	users := board.Members
	if users == nil {
		users = []BoardMember{}
	}
	if elements == nil {
		elements = []BoardElement{}
	}
	return BoardView{
		ID:        board.ID,
		Name:      board.Name,
		OwnerID:   board.OwnerID,
		IsLocked:  board.IsLocked,
		CreatedAt: board.CreatedAt,
		Users:     users,
		Elements:  elements,
	}
}

// BoardAnnouncement is relayed to every connected client when a board is created.
type BoardAnnouncement struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}
