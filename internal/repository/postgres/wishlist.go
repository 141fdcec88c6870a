package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/repository"
)

type wishlistEventRepository struct {
	db *sql.DB
}

// NewWishlistEventRepository creates a new wishlist event repository.
func NewWishlistEventRepository(db *sql.DB) repository.WishlistEventRepository {
	return &wishlistEventRepository{db: db}
}

func (r *wishlistEventRepository) Append(ctx context.Context, event *models.WishlistEvent) error {
	query := `
		INSERT INTO wishlist_events (id, pantry_id, raw_item, normalized_item, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.PantryID,
		event.RawItem,
		event.NormalizedItem,
		event.Quantity,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append wishlist event: %w", err)
	}

	return nil
}

type wishlistAggregateStore struct {
	db *sql.DB
}

// NewWishlistAggregateStore creates the Postgres-backed aggregate store.
// Optimistic concurrency uses an explicit version column: replaces are
// guarded by WHERE version = $n and bump the version on success, so two
// racing writers can never both apply against the same snapshot.
func NewWishlistAggregateStore(db *sql.DB) repository.WishlistAggregateStore {
	return &wishlistAggregateStore{db: db}
}

func (s *wishlistAggregateStore) Get(ctx context.Context, pantryID, itemID string) (*models.WishlistAggregate, int64, error) {
	query := `
		SELECT id, pantry_id, item_display, count, updated_at, version
		FROM wishlist_aggregates
		WHERE pantry_id = $1 AND id = $2`

	agg := &models.WishlistAggregate{}
	var version int64
	err := s.db.QueryRowContext(ctx, query, pantryID, itemID).Scan(
		&agg.ID,
		&agg.PantryID,
		&agg.ItemDisplay,
		&agg.Count,
		&agg.UpdatedAt,
		&version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, repository.ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to get wishlist aggregate: %w", err)
	}

	return agg, version, nil
}

func (s *wishlistAggregateStore) CreateIfAbsent(ctx context.Context, agg *models.WishlistAggregate) error {
	query := `
		INSERT INTO wishlist_aggregates (id, pantry_id, item_display, count, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (pantry_id, id) DO NOTHING`

	result, err := s.db.ExecContext(ctx, query,
		agg.ID,
		agg.PantryID,
		agg.ItemDisplay,
		agg.Count,
		agg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wishlist aggregate: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// DO NOTHING swallowed the insert: another writer owns the key.
		return repository.ErrConflict
	}

	return nil
}

func (s *wishlistAggregateStore) ConditionalReplace(ctx context.Context, agg *models.WishlistAggregate, version int64) error {
	query := `
		UPDATE wishlist_aggregates
		SET item_display = $3, count = $4, updated_at = $5, version = version + 1
		WHERE pantry_id = $1 AND id = $2 AND version = $6`

	result, err := s.db.ExecContext(ctx, query,
		agg.PantryID,
		agg.ID,
		agg.ItemDisplay,
		agg.Count,
		agg.UpdatedAt,
		version,
	)
	if err != nil {
		return fmt.Errorf("failed to replace wishlist aggregate: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the row vanished or another writer bumped the version;
		// both resolve the same way: re-read and retry.
		return repository.ErrStaleVersion
	}

	return nil
}

func (s *wishlistAggregateStore) ListByPantry(ctx context.Context, pantryID string) ([]*models.WishlistAggregate, error) {
	query := `
		SELECT id, pantry_id, item_display, count, updated_at
		FROM wishlist_aggregates
		WHERE pantry_id = $1
		ORDER BY count DESC`

	rows, err := s.db.QueryContext(ctx, query, pantryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []*models.WishlistAggregate
	for rows.Next() {
		agg := &models.WishlistAggregate{}
		if err := rows.Scan(
			&agg.ID,
			&agg.PantryID,
			&agg.ItemDisplay,
			&agg.Count,
			&agg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist aggregate: %w", err)
		}
		aggs = append(aggs, agg)
	}

	return aggs, rows.Err()
}
