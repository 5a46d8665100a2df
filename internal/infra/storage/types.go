package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// RoomPanel es el mensaje con los botones de gestión dentro de cada room.
type RoomPanel struct {
	ChannelID string
	GuildID   string
	MessageID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RankUpEvent struct {
	ID             int64
	GuildID        string
	MemberID       string
	Kind           string // chat | voice
	RoleID         string
	RequiredPoints int
	CreatedAt      time.Time
}
