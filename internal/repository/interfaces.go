package repository

import (
	"context"
	"time"

	"github.com/micropantry/pantrymap/internal/models"
)

// WishlistEventRepository appends immutable wishlist submission events.
type WishlistEventRepository interface {
	Append(ctx context.Context, event *models.WishlistEvent) error
}

// WishlistAggregateStore is the keyed store for per-(pantry, item) counters.
// It exposes the conditional-write primitive the aggregator's retry loop is
// built on: Get captures a version token, CreateIfAbsent fails with
// ErrConflict when the key exists, and ConditionalReplace fails with
// ErrStaleVersion when the token no longer matches.
type WishlistAggregateStore interface {
	// Get returns the aggregate for (pantryID, itemID) together with its
	// current version token, or ErrNotFound.
	Get(ctx context.Context, pantryID, itemID string) (*models.WishlistAggregate, int64, error)

	// CreateIfAbsent inserts a new aggregate, or returns ErrConflict when
	// another writer created the key first.
	CreateIfAbsent(ctx context.Context, agg *models.WishlistAggregate) error

	// ConditionalReplace overwrites the aggregate only while its stored
	// version still equals version; otherwise it returns ErrStaleVersion.
	ConditionalReplace(ctx context.Context, agg *models.WishlistAggregate, version int64) error

	// ListByPantry returns all aggregates for the pantry ordered by count
	// descending. Tie order is unspecified.
	ListByPantry(ctx context.Context, pantryID string) ([]*models.WishlistAggregate, error)
}

// DonationRepository stores user-submitted donation reports.
type DonationRepository interface {
	Create(ctx context.Context, report *models.DonationReport) (*models.DonationReport, error)

	// ListRecent returns reports for the pantry with CreatedAt after since,
	// newest first.
	ListRecent(ctx context.Context, pantryID string, since time.Time) ([]*models.DonationReport, error)

	// CountRecent returns how many reports the pantry has after since.
	CountRecent(ctx context.Context, pantryID string, since time.Time) (int, error)
}

// MessageRepository stores pantry community-board messages.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) (*models.Message, error)

	// ListRecent returns up to limit messages for the pantry, newest first.
	ListRecent(ctx context.Context, pantryID string, limit int) ([]*models.Message, error)
}

// PantryRepository stores the pantry directory entries.
type PantryRepository interface {
	Create(ctx context.Context, pantry *models.Pantry) (*models.Pantry, error)

	// GetByID returns the pantry, or nil when no entry exists.
	GetByID(ctx context.Context, id string) (*models.Pantry, error)

	// List returns every directory entry ordered by name.
	List(ctx context.Context) ([]*models.Pantry, error)
}

// TelemetryRepository stores append-only sensor readings.
type TelemetryRepository interface {
	Insert(ctx context.Context, reading *models.TelemetryReading) error

	// GetLatest returns the reading with the maximum timestamp for the
	// pantry, or nil when the pantry has no readings at all.
	GetLatest(ctx context.Context, pantryID string) (*models.TelemetryReading, error)
}
