package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/repository"
)

type telemetryRepository struct {
	db *sql.DB
}

// NewTelemetryRepository creates a new telemetry reading repository.
func NewTelemetryRepository(db *sql.DB) repository.TelemetryRepository {
	return &telemetryRepository{db: db}
}

func (r *telemetryRepository) Insert(ctx context.Context, reading *models.TelemetryReading) error {
	query := `
		INSERT INTO telemetry_readings (pantry_id, device_id, timestamp, weight_kg, door_state, schema_version)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		reading.PantryID,
		reading.DeviceID,
		reading.Timestamp,
		reading.WeightKg,
		reading.DoorState,
		reading.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry reading: %w", err)
	}

	return nil
}

func (r *telemetryRepository) GetLatest(ctx context.Context, pantryID string) (*models.TelemetryReading, error) {
	query := `
		SELECT pantry_id, device_id, timestamp, weight_kg, door_state, schema_version
		FROM telemetry_readings
		WHERE pantry_id = $1
		ORDER BY timestamp DESC
		LIMIT 1`

	reading := &models.TelemetryReading{}
	err := r.db.QueryRowContext(ctx, query, pantryID).Scan(
		&reading.PantryID,
		&reading.DeviceID,
		&reading.Timestamp,
		&reading.WeightKg,
		&reading.DoorState,
		&reading.SchemaVersion,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest telemetry reading: %w", err)
	}

	return reading, nil
}
