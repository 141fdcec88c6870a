// Package wishlist implements the wishlist aggregation engine: every
// submission is recorded as an immutable event, and a per-(pantry, item)
// counter is maintained with optimistic concurrency so concurrent
// submissions for a popular item never lose increments.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/micropantry/pantrymap/internal/metrics"
	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/recency"
	"github.com/micropantry/pantrymap/internal/repository"
	"github.com/micropantry/pantrymap/pkg/logger"
)

const (
	// maxItemLen caps the item name after trimming.
	maxItemLen = 40

	// minQuantity..maxQuantity is the accepted range; out-of-range values
	// are coerced, not rejected (small abuse cap).
	minQuantity = 1
	maxQuantity = 20

	// maxAttempts bounds the conditional-update loop. Exhausting it drops
	// the increment (under-count, never over-count) and surfaces a
	// StorageError so the caller can ask the user to retry.
	maxAttempts = 6
)

// Service is the wishlist aggregator.
type Service struct {
	events  repository.WishlistEventRepository
	aggs    repository.WishlistAggregateStore
	logger  *logrus.Entry
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a Service with all required dependencies.
func NewService(events repository.WishlistEventRepository, aggs repository.WishlistAggregateStore,
	log *logrus.Logger, m *metrics.Metrics) *Service {
	return &Service{
		events:  events,
		aggs:    aggs,
		logger:  logger.WithComponent(log, "wishlist"),
		metrics: m,
		now:     time.Now,
	}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CoerceQuantity maps any caller-supplied quantity into [1, 20]: values
// below the floor (including junk decoded as zero) default to 1, values
// above the cap clamp to 20.
func CoerceQuantity(q int) int {
	if q < minQuantity {
		return minQuantity
	}
	if q > maxQuantity {
		return maxQuantity
	}
	return q
}

// Submit validates the submission, appends a WishlistEvent and folds the
// quantity into the (pantryID, normalized item) aggregate. It returns the
// updated aggregate.
func (s *Service) Submit(ctx context.Context, pantryID, rawItem string, quantity int) (*models.WishlistAggregate, error) {
	if pantryID == "" {
		return nil, &ValidationError{Field: "pantryId", Reason: "is required"}
	}
	// The length cap counts characters of the trimmed input, before internal
	// whitespace runs collapse; byte length would under-count multibyte names.
	trimmed := strings.TrimSpace(rawItem)
	if trimmed == "" {
		return nil, &ValidationError{Field: "item", Reason: "is required"}
	}
	if utf8.RuneCountInString(trimmed) > maxItemLen {
		return nil, &ValidationError{Field: "item", Reason: fmt.Sprintf("too long (max %d)", maxItemLen)}
	}
	item := NormalizeItem(rawItem)
	quantity = CoerceQuantity(quantity)

	now := s.now().UTC()
	event := &models.WishlistEvent{
		ID:             "evt_" + uuid.NewString(),
		PantryID:       pantryID,
		RawItem:        rawItem,
		NormalizedItem: item,
		Quantity:       quantity,
		CreatedAt:      now,
	}
	if err := s.events.Append(ctx, event); err != nil {
		return nil, &StorageError{Op: "event append", Err: err}
	}

	agg, err := s.applyIncrement(ctx, pantryID, item, quantity)
	if err != nil {
		return nil, err
	}

	s.metrics.WishlistSubmissions.Inc()
	return agg, nil
}

// applyIncrement runs the bounded optimistic-concurrency loop: read the
// aggregate with its version token, then either create it or replace it
// guarded by the token, retrying on conflict. A blind read-modify-write
// here would silently lose increments under contention.
func (s *Service) applyIncrement(ctx context.Context, pantryID, item string, quantity int) (*models.WishlistAggregate, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &StorageError{Op: "aggregate update", Err: err}
		}

		existing, version, err := s.aggs.Get(ctx, pantryID, item)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			agg := &models.WishlistAggregate{
				ID:          item,
				PantryID:    pantryID,
				ItemDisplay: item,
				Count:       quantity,
				UpdatedAt:   s.now().UTC(),
			}
			createErr := s.aggs.CreateIfAbsent(ctx, agg)
			if errors.Is(createErr, repository.ErrConflict) {
				// Lost the create race; another writer owns the key now.
				s.metrics.WishlistConflicts.Inc()
				continue
			}
			if createErr != nil {
				return nil, &StorageError{Op: "aggregate create", Err: createErr}
			}
			return agg, nil

		case err != nil:
			return nil, &StorageError{Op: "aggregate read", Err: err}
		}

		updated := &models.WishlistAggregate{
			ID:          existing.ID,
			PantryID:    existing.PantryID,
			ItemDisplay: existing.ItemDisplay,
			Count:       existing.Count + quantity,
			UpdatedAt:   s.now().UTC(),
		}
		replaceErr := s.aggs.ConditionalReplace(ctx, updated, version)
		if errors.Is(replaceErr, repository.ErrStaleVersion) {
			s.metrics.WishlistConflicts.Inc()
			continue
		}
		if replaceErr != nil {
			return nil, &StorageError{Op: "aggregate replace", Err: replaceErr}
		}
		return updated, nil
	}

	// The submitted quantity is dropped here; the event row still records
	// it, so the aggregate can only under-count, never over-count.
	s.metrics.WishlistExhausted.Inc()
	s.logger.WithFields(logrus.Fields{
		"pantry_id": pantryID,
		"item":      item,
	}).Warn("wishlist aggregate update gave up after retry limit")
	return nil, &StorageError{Op: "aggregate update", Err: errors.New("retry limit exceeded")}
}

// List returns all aggregates for the pantry ordered by count descending.
// It does not apply the 7-day display window; that is read-side policy the
// HTTP layer applies with FilterRecent.
func (s *Service) List(ctx context.Context, pantryID string) ([]*models.WishlistAggregate, error) {
	if pantryID == "" {
		return nil, &ValidationError{Field: "pantryId", Reason: "is required"}
	}
	aggs, err := s.aggs.ListByPantry(ctx, pantryID)
	if err != nil {
		return nil, &StorageError{Op: "aggregate list", Err: err}
	}
	return aggs, nil
}

// FilterRecent keeps only aggregates whose UpdatedAt falls inside the
// display window ending at now, preserving order.
func FilterRecent(aggs []*models.WishlistAggregate, now time.Time, window recency.Window) []*models.WishlistAggregate {
	out := make([]*models.WishlistAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if window.Contains(now, agg.UpdatedAt) {
			out = append(out, agg)
		}
	}
	return out
}
