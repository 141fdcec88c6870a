// Package memory provides mutex-guarded in-memory implementations of the
// repository interfaces. The store is an injected value, never package state,
// so tests and the dev mode wire it exactly like the Postgres backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/repository"
)

type aggKey struct {
	pantryID string
	itemID   string
}

type versionedAgg struct {
	agg     models.WishlistAggregate
	version int64
}

// Store holds every collection behind one lock. It satisfies all of the
// repository interfaces.
type Store struct {
	mu         sync.RWMutex
	events     []models.WishlistEvent
	aggregates map[aggKey]versionedAgg
	donations  []models.DonationReport
	telemetry  []models.TelemetryReading
	messages   []models.Message
	pantries   map[string]models.Pantry
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		aggregates: make(map[aggKey]versionedAgg),
		pantries:   make(map[string]models.Pantry),
	}
}

var (
	_ repository.WishlistEventRepository = (*Store)(nil)
	_ repository.WishlistAggregateStore  = (*Store)(nil)
	_ repository.DonationRepository      = (*Store)(nil)
	_ repository.TelemetryRepository     = (*Store)(nil)
	_ repository.MessageRepository       = (*messageStore)(nil)
	_ repository.PantryRepository        = (*pantryStore)(nil)
)

// Append records a wishlist event.
func (s *Store) Append(_ context.Context, event *models.WishlistEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

// EventCount returns the number of stored wishlist events.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Get returns the aggregate and its version token, or ErrNotFound.
func (s *Store) Get(_ context.Context, pantryID, itemID string) (*models.WishlistAggregate, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.aggregates[aggKey{pantryID, itemID}]
	if !ok {
		return nil, 0, repository.ErrNotFound
	}
	agg := entry.agg
	return &agg, entry.version, nil
}

// CreateIfAbsent inserts the aggregate or reports ErrConflict.
func (s *Store) CreateIfAbsent(_ context.Context, agg *models.WishlistAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := aggKey{agg.PantryID, agg.ID}
	if _, ok := s.aggregates[key]; ok {
		return repository.ErrConflict
	}
	s.aggregates[key] = versionedAgg{agg: *agg, version: 1}
	return nil
}

// ConditionalReplace overwrites the aggregate while the version still
// matches, otherwise reports ErrStaleVersion.
func (s *Store) ConditionalReplace(_ context.Context, agg *models.WishlistAggregate, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := aggKey{agg.PantryID, agg.ID}
	entry, ok := s.aggregates[key]
	if !ok || entry.version != version {
		return repository.ErrStaleVersion
	}
	s.aggregates[key] = versionedAgg{agg: *agg, version: version + 1}
	return nil
}

// ListByPantry returns the pantry's aggregates ordered by count descending.
func (s *Store) ListByPantry(_ context.Context, pantryID string) ([]*models.WishlistAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var aggs []*models.WishlistAggregate
	for key, entry := range s.aggregates {
		if key.pantryID != pantryID {
			continue
		}
		agg := entry.agg
		aggs = append(aggs, &agg)
	}
	sort.SliceStable(aggs, func(i, j int) bool { return aggs[i].Count > aggs[j].Count })
	return aggs, nil
}

// Create stores a donation report.
func (s *Store) Create(_ context.Context, report *models.DonationReport) (*models.DonationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations = append(s.donations, *report)
	out := *report
	return &out, nil
}

// ListRecent returns the pantry's reports newer than since, newest first.
func (s *Store) ListRecent(_ context.Context, pantryID string, since time.Time) ([]*models.DonationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var reports []*models.DonationReport
	for i := range s.donations {
		d := s.donations[i]
		if d.PantryID != pantryID || !d.CreatedAt.After(since) {
			continue
		}
		report := d
		reports = append(reports, &report)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

// CountRecent returns how many reports the pantry has after since.
func (s *Store) CountRecent(ctx context.Context, pantryID string, since time.Time) (int, error) {
	reports, err := s.ListRecent(ctx, pantryID, since)
	if err != nil {
		return 0, err
	}
	return len(reports), nil
}

// Messages returns the community-message view of the store. Message and
// donation repositories share method names, so each gets its own view type
// over the same lock.
func (s *Store) Messages() repository.MessageRepository { return &messageStore{s: s} }

type messageStore struct {
	s *Store
}

// Create stores a community message.
func (m *messageStore) Create(_ context.Context, message *models.Message) (*models.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.messages = append(m.s.messages, *message)
	out := *message
	return &out, nil
}

// ListRecent returns up to limit messages for the pantry, newest first.
func (m *messageStore) ListRecent(_ context.Context, pantryID string, limit int) ([]*models.Message, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var messages []*models.Message
	for i := range m.s.messages {
		msg := m.s.messages[i]
		if msg.PantryID != pantryID {
			continue
		}
		message := msg
		messages = append(messages, &message)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

// Pantries returns the directory view of the store.
func (s *Store) Pantries() repository.PantryRepository { return &pantryStore{s: s} }

type pantryStore struct {
	s *Store
}

// Create stores a directory entry, overwriting any previous one.
func (p *pantryStore) Create(_ context.Context, pantry *models.Pantry) (*models.Pantry, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.pantries[pantry.ID] = *pantry
	out := *pantry
	return &out, nil
}

// GetByID returns the pantry, or nil when no entry exists.
func (p *pantryStore) GetByID(_ context.Context, id string) (*models.Pantry, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	pantry, ok := p.s.pantries[id]
	if !ok {
		return nil, nil
	}
	return &pantry, nil
}

// List returns every directory entry ordered by name.
func (p *pantryStore) List(_ context.Context) ([]*models.Pantry, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	var pantries []*models.Pantry
	for _, entry := range p.s.pantries {
		pantry := entry
		pantries = append(pantries, &pantry)
	}
	sort.SliceStable(pantries, func(i, j int) bool { return pantries[i].Name < pantries[j].Name })
	return pantries, nil
}

// Insert stores a telemetry reading.
func (s *Store) Insert(_ context.Context, reading *models.TelemetryReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = append(s.telemetry, *reading)
	return nil
}

// GetLatest returns the newest reading for the pantry, or nil.
func (s *Store) GetLatest(_ context.Context, pantryID string) (*models.TelemetryReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.TelemetryReading
	for i := range s.telemetry {
		r := s.telemetry[i]
		if r.PantryID != pantryID {
			continue
		}
		if latest == nil || r.Timestamp.After(latest.Timestamp) {
			reading := r
			latest = &reading
		}
	}
	return latest, nil
}
