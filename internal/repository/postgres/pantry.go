package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/repository"
)

type pantryRepository struct {
	db *sql.DB
}

// NewPantryRepository creates a new pantry directory repository.
func NewPantryRepository(db *sql.DB) repository.PantryRepository {
	return &pantryRepository{db: db}
}

func (r *pantryRepository) Create(ctx context.Context, pantry *models.Pantry) (*models.Pantry, error) {
	query := `
		INSERT INTO pantries (id, name, address, latitude, longitude, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		pantry.ID,
		pantry.Name,
		pantry.Address,
		pantry.Location.Lat,
		pantry.Location.Lng,
		pantry.Description,
		pantry.Status,
		pantry.CreatedAt,
		pantry.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pantry: %w", err)
	}

	return pantry, nil
}

func (r *pantryRepository) GetByID(ctx context.Context, id string) (*models.Pantry, error) {
	query := `
		SELECT id, name, address, latitude, longitude, description, status, created_at, updated_at
		FROM pantries
		WHERE id = $1`

	pantry := &models.Pantry{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pantry.ID,
		&pantry.Name,
		&pantry.Address,
		&pantry.Location.Lat,
		&pantry.Location.Lng,
		&pantry.Description,
		&pantry.Status,
		&pantry.CreatedAt,
		&pantry.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pantry: %w", err)
	}

	return pantry, nil
}

func (r *pantryRepository) List(ctx context.Context) ([]*models.Pantry, error) {
	query := `
		SELECT id, name, address, latitude, longitude, description, status, created_at, updated_at
		FROM pantries
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pantries: %w", err)
	}
	defer rows.Close()

	var pantries []*models.Pantry
	for rows.Next() {
		pantry := &models.Pantry{}
		if err := rows.Scan(
			&pantry.ID,
			&pantry.Name,
			&pantry.Address,
			&pantry.Location.Lat,
			&pantry.Location.Lng,
			&pantry.Description,
			&pantry.Status,
			&pantry.CreatedAt,
			&pantry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pantry: %w", err)
		}
		pantries = append(pantries, pantry)
	}

	return pantries, rows.Err()
}
