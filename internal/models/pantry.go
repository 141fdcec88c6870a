package models

import "time"

// Location is a pantry's map position.
type Location struct {
	Lat float64 `json:"lat" db:"latitude"`
	Lng float64 `json:"lng" db:"longitude"`
}

// Pantry is a directory entry for one physical micro pantry. Wishlists,
// donations, telemetry and messages all reference pantries by ID but do not
// require the entry to exist; the directory is metadata, not a foreign key.
type Pantry struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Address     string    `json:"address,omitempty" db:"address"`
	Location    Location  `json:"location"`
	Description string    `json:"description,omitempty" db:"description"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
