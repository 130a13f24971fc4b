package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Direction is the compass direction a photo was taken towards.
type Direction string

const (
	DirectionNorth     Direction = "N"
	DirectionNorthEast Direction = "NE"
	DirectionEast      Direction = "E"
	DirectionSouthEast Direction = "SE"
	DirectionSouth     Direction = "S"
	DirectionSouthWest Direction = "SW"
	DirectionWest      Direction = "W"
	DirectionNorthWest Direction = "NW"
)

// Valid reports whether d is one of the eight compass points.
func (d Direction) Valid() bool {
	switch d {
	case DirectionNorth, DirectionNorthEast, DirectionEast, DirectionSouthEast,
		DirectionSouth, DirectionSouthWest, DirectionWest, DirectionNorthWest:
		return true
	}
	return false
}

// Value implements driver.Valuer.
func (d Direction) Value() (driver.Value, error) {
	return string(d), nil
}

// Scan implements sql.Scanner.
func (d *Direction) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*d = Direction(v)
	case []byte:
		*d = Direction(v)
	default:
		return fmt.Errorf("direction: unsupported type %T", src)
	}
	return nil
}

// BoardElement is a single annotation posted to a board.
type BoardElement struct {
	ID            string     `db:"id" json:"id"`
	BoardID       string     `db:"board_id" json:"board_id"`
	ElementNumber int        `db:"element_number" json:"element_number"`
	Note          *string    `db:"note" json:"note,omitempty"`
	Direction     *Direction `db:"direction" json:"direction,omitempty"`
	ImageID       *string    `db:"image_id" json:"image_id,omitempty"`
	UserID        *string    `db:"user_id" json:"user_id,omitempty"`
	Username      *string    `db:"username" json:"username,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// ImagePath is the content URL for the attached image, empty when none is attached.
func (e BoardElement) ImagePath() string {
	if e.ImageID == nil {
		return ""
	}
	return "/content/" + *e.ImageID
}

// NewElement carries the client-supplied fields of an element being created.
type NewElement struct {
	BoardID   string
	UserID    *string
	Note      *string
	Direction *Direction
}
