package models

import "time"

// WishlistEvent is an immutable record of one "I want item X" submission.
// Events are append-only; multiple events may share the same
// (pantry, normalized item) key.
type WishlistEvent struct {
	ID             string    `json:"id" db:"id"`
	PantryID       string    `json:"pantryId" db:"pantry_id"`
	RawItem        string    `json:"item" db:"raw_item"`
	NormalizedItem string    `json:"normalizedItem" db:"normalized_item"`
	Quantity       int       `json:"quantity" db:"quantity"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// WishlistAggregate is the derived running counter for one
// (pantry, normalized item) key. Its ID is the normalized item name within
// the pantry partition. Count only grows; aggregates are never deleted —
// readers apply a display window on UpdatedAt instead.
type WishlistAggregate struct {
	ID          string    `json:"id" db:"id"`
	PantryID    string    `json:"pantryId" db:"pantry_id"`
	ItemDisplay string    `json:"itemDisplay" db:"item_display"`
	Count       int       `json:"count" db:"count"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
