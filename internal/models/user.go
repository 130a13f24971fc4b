package models

import "time"

// RoleAdministrator grants access to every board.
const RoleAdministrator = "Administrator"

// User is the local projection of an identity-service user.
type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// JoinedBoardUser is a user currently observing a board.
type JoinedBoardUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
