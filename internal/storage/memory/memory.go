// Package memory is an in-memory storage driver. It backs unit tests and
// local development where neither sqlite nor a JSON server is wanted.
package memory

import (
	"context"
	"sync"

	"github.com/fallcrate/milestone-web/internal/models"
	"github.com/fallcrate/milestone-web/internal/storage"
)

type Store struct {
	mu      sync.Mutex
	catalog map[string][]models.CatalogEntry
	records map[string][]models.UserRecord
	prefs   map[string]models.UserPreferences

	catalogSubs storage.Subscribers[[]models.CatalogEntry]
	recordSubs  storage.Subscribers[[]models.UserRecord]
	prefSubs    storage.Subscribers[models.UserPreferences]

	// Err, when set, is returned by every subsequent operation. Tests use
	// it to exercise failure paths.
	Err error

	// SaveCalls and DeleteCalls count mutating round-trips, including
	// failed ones.
	SaveCalls   int
	DeleteCalls int
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		catalog: make(map[string][]models.CatalogEntry),
		records: make(map[string][]models.UserRecord),
		prefs:   make(map[string]models.UserPreferences),
	}
}

// SeedCatalog installs the catalog for a game and notifies subscribers.
func (s *Store) SeedCatalog(gameID string, entries []models.CatalogEntry) {
	s.mu.Lock()
	s.catalog[gameID] = append([]models.CatalogEntry(nil), entries...)
	snapshot := append([]models.CatalogEntry(nil), entries...)
	s.mu.Unlock()

	s.catalogSubs.Publish(gameID, snapshot)
}

func (s *Store) FetchCatalog(_ context.Context, gameID string) ([]models.CatalogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]models.CatalogEntry(nil), s.catalog[gameID]...), nil
}

func (s *Store) FetchUserRecords(_ context.Context, ownerID string) ([]models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if ownerID == "" {
		return []models.UserRecord{}, nil
	}
	return append([]models.UserRecord(nil), s.records[ownerID]...), nil
}

func (s *Store) SaveUserRecord(_ context.Context, rec models.UserRecord) (models.UserRecord, error) {
	s.mu.Lock()
	s.SaveCalls++
	if s.Err != nil {
		err := s.Err
		s.mu.Unlock()
		return models.UserRecord{}, err
	}

	stored := s.records[rec.OwnerID]
	replaced := false
	for i, existing := range stored {
		if existing.SameEntry(rec) {
			stored[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		stored = append(stored, rec)
	}
	s.records[rec.OwnerID] = stored
	snapshot := append([]models.UserRecord(nil), stored...)
	s.mu.Unlock()

	s.recordSubs.Publish(rec.OwnerID, snapshot)
	return rec, nil
}

func (s *Store) DeleteUserRecord(_ context.Context, id, gameID, ownerID string) error {
	s.mu.Lock()
	s.DeleteCalls++
	if s.Err != nil {
		err := s.Err
		s.mu.Unlock()
		return err
	}

	stored := s.records[ownerID]
	kept := stored[:0]
	for _, existing := range stored {
		if existing.ID == id && existing.GameID == gameID {
			continue
		}
		kept = append(kept, existing)
	}
	s.records[ownerID] = kept
	snapshot := append([]models.UserRecord(nil), kept...)
	s.mu.Unlock()

	s.recordSubs.Publish(ownerID, snapshot)
	return nil
}

func (s *Store) SubscribeCatalog(gameID string, fn func([]models.CatalogEntry)) (storage.Unsubscribe, error) {
	return s.catalogSubs.AddWith(gameID, fn, func() ([]models.CatalogEntry, error) {
		return s.FetchCatalog(context.Background(), gameID)
	})
}

func (s *Store) SubscribeUserRecords(ownerID string, fn func([]models.UserRecord)) (storage.Unsubscribe, error) {
	if ownerID == "" {
		return func() {}, nil
	}
	return s.recordSubs.AddWith(ownerID, fn, func() ([]models.UserRecord, error) {
		return s.FetchUserRecords(context.Background(), ownerID)
	})
}

func (s *Store) FetchPreferences(_ context.Context, ownerID string) (models.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return models.UserPreferences{}, s.Err
	}
	if prefs, ok := s.prefs[ownerID]; ok {
		return prefs, nil
	}
	return models.DefaultPreferences(), nil
}

func (s *Store) SavePreferences(_ context.Context, ownerID string, prefs models.UserPreferences) error {
	s.mu.Lock()
	if s.Err != nil {
		err := s.Err
		s.mu.Unlock()
		return err
	}
	s.prefs[ownerID] = prefs
	s.mu.Unlock()

	s.prefSubs.Publish(ownerID, prefs)
	return nil
}

func (s *Store) SubscribePreferences(ownerID string, fn func(models.UserPreferences)) (storage.Unsubscribe, error) {
	if ownerID == "" {
		return func() {}, nil
	}
	return s.prefSubs.AddWith(ownerID, fn, func() (models.UserPreferences, error) {
		return s.FetchPreferences(context.Background(), ownerID)
	})
}

func (s *Store) Close() error {
	return nil
}
