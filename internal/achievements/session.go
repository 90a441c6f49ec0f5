package achievements

import (
	"context"
	"errors"
	"sync"

	"github.com/fallcrate/milestone-web/internal/models"
	"github.com/fallcrate/milestone-web/internal/storage"
)

// ErrNotSelectable is returned when a locked achievement without reachable
// neighbors is selected.
var ErrNotSelectable = errors.New("achievement is not selectable")

// Session is the single owner of one user's widget state: the latest
// catalog, record and preference snapshots, the derived achievement view,
// and the transient selection. Subscription callbacks may fire at any
// time; each one replaces its snapshot wholesale and the view is rebuilt
// from scratch, never patched.
type Session struct {
	store     storage.Store
	lifecycle *Lifecycle
	gameID    string
	ownerID   string
	reachable StateSet

	mu           sync.Mutex
	catalog      []models.CatalogEntry
	records      []models.UserRecord
	prefs        models.UserPreferences
	achievements []models.Achievement
	selectedID   string
	unsubs       []storage.Unsubscribe
	stopped      bool
}

func NewSession(store storage.Store, lifecycle *Lifecycle, gameID, ownerID string, reachable StateSet) *Session {
	if reachable == nil {
		reachable = DefaultReachableStates()
	}
	return &Session{
		store:     store,
		lifecycle: lifecycle,
		gameID:    gameID,
		ownerID:   ownerID,
		reachable: reachable,
		prefs:     models.DefaultPreferences(),
	}
}

// OwnerID returns the owner this session belongs to.
func (s *Session) OwnerID() string {
	return s.ownerID
}

// Start opens the three subscriptions. The store delivers the current
// snapshots immediately, so the view is populated when Start returns.
func (s *Session) Start() error {
	catalogUnsub, err := s.store.SubscribeCatalog(s.gameID, s.onCatalog)
	if err != nil {
		return err
	}
	recordsUnsub, err := s.store.SubscribeUserRecords(s.ownerID, s.onRecords)
	if err != nil {
		catalogUnsub()
		return err
	}
	prefsUnsub, err := s.store.SubscribePreferences(s.ownerID, s.onPreferences)
	if err != nil {
		catalogUnsub()
		recordsUnsub()
		return err
	}

	s.mu.Lock()
	s.unsubs = []storage.Unsubscribe{catalogUnsub, recordsUnsub, prefsUnsub}
	s.mu.Unlock()
	return nil
}

// Stop tears the session down: a held newly_unlocked selection is
// acknowledged, then all subscriptions are disposed. Safe to call more
// than once.
func (s *Session) Stop(ctx context.Context) {
	s.Deselect(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (s *Session) onCatalog(catalog []models.CatalogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = catalog
	s.recompute()
}

func (s *Session) onRecords(records []models.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.recompute()
}

func (s *Session) onPreferences(prefs models.UserPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs
}

// recompute rebuilds the derived view from the latest snapshots. Caller
// holds s.mu.
func (s *Session) recompute() {
	s.achievements = Combine(s.catalog, s.records, s.ownerID)
}

// Achievements returns a copy of the current derived view.
func (s *Session) Achievements() []models.Achievement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Achievement(nil), s.achievements...)
}

// Preferences returns the latest preference snapshot.
func (s *Session) Preferences() models.UserPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SavePreferences persists a preference change for the session owner.
func (s *Session) SavePreferences(ctx context.Context, prefs models.UserPreferences) error {
	return s.store.SavePreferences(ctx, s.ownerID, prefs)
}

// find returns the achievement with the given id from the derived view.
func (s *Session) find(id string) (models.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.achievements {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Achievement{}, ErrNotFound
}

// Select makes an achievement the current selection. Selecting away from
// a newly_unlocked achievement acknowledges it first.
func (s *Session) Select(ctx context.Context, id string) error {
	a, err := s.find(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	selectable := Selectable(a, s.achievements, s.reachable)
	sameSelection := s.selectedID == id
	s.mu.Unlock()

	if !selectable {
		return ErrNotSelectable
	}
	if sameSelection {
		return nil
	}

	if err := s.Deselect(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.selectedID = id
	s.mu.Unlock()
	return nil
}

// Deselect clears the selection, acknowledging it when it was sitting in
// newly_unlocked. The selection is released only once the acknowledge
// write is confirmed, so a failure keeps it in place for a retry. No
// selection is a no-op.
func (s *Session) Deselect(ctx context.Context) error {
	s.mu.Lock()
	id := s.selectedID
	s.mu.Unlock()

	if id == "" {
		return nil
	}

	if a, err := s.find(id); err == nil {
		if _, err := s.lifecycle.Acknowledge(ctx, a); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.mu.Unlock()
	return nil
}

// Selected returns the current selection, if any.
func (s *Session) Selected() (models.Achievement, bool) {
	s.mu.Lock()
	id := s.selectedID
	s.mu.Unlock()

	if id == "" {
		return models.Achievement{}, false
	}
	a, err := s.find(id)
	if err != nil {
		return models.Achievement{}, false
	}
	return a, true
}

// Unlock requests an unlock for the achievement with the given id.
func (s *Session) Unlock(ctx context.Context, id string) (models.Achievement, error) {
	a, err := s.find(id)
	if err != nil {
		return models.Achievement{}, err
	}
	return s.lifecycle.RequestUnlock(ctx, a)
}

// Lock reverts the achievement with the given id to locked.
func (s *Session) Lock(ctx context.Context, id string) (models.Achievement, error) {
	a, err := s.find(id)
	if err != nil {
		return models.Achievement{}, err
	}
	return s.lifecycle.RequestLock(ctx, a)
}

// Toggle flips the achievement with the given id between locked and
// unlocked.
func (s *Session) Toggle(ctx context.Context, id string) (models.Achievement, error) {
	a, err := s.find(id)
	if err != nil {
		return models.Achievement{}, err
	}
	return s.lifecycle.Toggle(ctx, a)
}

// Acknowledge settles the achievement with the given id if it is
// newly_unlocked.
func (s *Session) Acknowledge(ctx context.Context, id string) (models.Achievement, error) {
	a, err := s.find(id)
	if err != nil {
		return models.Achievement{}, err
	}
	return s.lifecycle.Acknowledge(ctx, a)
}
