package models

import "time"

// Message is one post on a pantry's community board. Anonymous posting is
// allowed, but a display name is always required; readers only ever see the
// latest slice, so messages are never edited or deleted.
type Message struct {
	ID         string    `json:"id" db:"id"`
	PantryID   string    `json:"pantryId" db:"pantry_id"`
	UserName   string    `json:"userName" db:"user_name"`
	UserAvatar string    `json:"userAvatar,omitempty" db:"user_avatar"`
	Content    string    `json:"content" db:"content"`
	Photos     []string  `json:"photos,omitempty" db:"photos"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
