package models

import "time"

// TelemetryReading is one sensor- or import-sourced measurement for a pantry.
// Append-only; "latest" is the reading with the maximum timestamp.
type TelemetryReading struct {
	PantryID      string    `json:"pantryId" db:"pantry_id"`
	DeviceID      string    `json:"deviceId,omitempty" db:"device_id"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	WeightKg      float64   `json:"weightKg" db:"weight_kg"`
	DoorState     string    `json:"doorState,omitempty" db:"door_state"`
	SchemaVersion int       `json:"schemaVersion" db:"schema_version"`
}

// StockLevel is the coarse fill classification shown on the pantry badge.
type StockLevel string

const (
	StockLow     StockLevel = "low"
	StockMedium  StockLevel = "medium"
	StockHigh    StockLevel = "high"
	StockUnknown StockLevel = "unknown"
)

// StockSource tags which fallback tier produced a stock answer.
type StockSource string

const (
	SourceSensor    StockSource = "sensor"
	SourceDonations StockSource = "donations"
	SourceFallback  StockSource = "fallback_local"
	SourceNone      StockSource = "none"
)

// StockClassification is the result of one classify call. It is computed on
// every read and never persisted. WeightKg is set when the source is
// weight-based (sensor, local fallback, or the donation weight estimate).
type StockClassification struct {
	Level    StockLevel  `json:"level"`
	Source   StockSource `json:"source"`
	WeightKg *float64    `json:"weightKg,omitempty"`
}
