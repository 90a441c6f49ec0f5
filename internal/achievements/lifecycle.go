package achievements

import (
	"context"
	"errors"
	"time"

	"github.com/fallcrate/milestone-web/internal/logger"
	"github.com/fallcrate/milestone-web/internal/models"
	"github.com/fallcrate/milestone-web/internal/storage"
)

// ErrNotFound is returned when an achievement id is not part of the
// current catalog. It fails the specific operation, never the session.
var ErrNotFound = errors.New("achievement not found in catalog")

// Notifier receives the unlock toast side effect. It fires at most once
// per genuine locked -> newly_unlocked transition, and only after the
// store confirmed the write.
type Notifier interface {
	AchievementUnlocked(a models.Achievement)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(a models.Achievement)

func (f NotifierFunc) AchievementUnlocked(a models.Achievement) { f(a) }

// Lifecycle drives the locked -> newly_unlocked -> unlocked state machine
// and persists every transition through the storage port. It never
// advances state optimistically: a failed round-trip leaves the caller's
// view untouched.
type Lifecycle struct {
	store    storage.Store
	notifier Notifier
}

func NewLifecycle(store storage.Store, notifier Notifier) *Lifecycle {
	return &Lifecycle{store: store, notifier: notifier}
}

// RequestUnlock moves a locked achievement to newly_unlocked, stamping
// the unlock time. Unlocking a non-locked achievement is a benign no-op.
func (l *Lifecycle) RequestUnlock(ctx context.Context, a models.Achievement) (models.Achievement, error) {
	if !a.Locked() {
		return a, nil
	}

	now := time.Now()
	record := a.Record()
	record.State = models.StateNewlyUnlocked
	record.UnlockedAt = &now

	saved, err := l.store.SaveUserRecord(ctx, record)
	if err != nil {
		return a, err
	}

	a.State = saved.State
	a.UnlockedAt = saved.UnlockedAt

	if l.showNotifications(ctx, a.OwnerID) && l.notifier != nil {
		l.notifier.AchievementUnlocked(a)
	}
	return a, nil
}

// Acknowledge settles a newly_unlocked achievement into unlocked, keeping
// its unlock time. Acknowledging anything else is a benign no-op.
func (l *Lifecycle) Acknowledge(ctx context.Context, a models.Achievement) (models.Achievement, error) {
	if a.State != models.StateNewlyUnlocked {
		return a, nil
	}

	record := a.Record()
	record.State = models.StateUnlocked

	saved, err := l.store.SaveUserRecord(ctx, record)
	if err != nil {
		return a, err
	}

	a.State = saved.State
	return a, nil
}

// RequestLock reverts an achievement to the implicit default by deleting
// its record outright. Locking a locked achievement is a benign no-op.
func (l *Lifecycle) RequestLock(ctx context.Context, a models.Achievement) (models.Achievement, error) {
	if a.Locked() {
		return a, nil
	}

	if err := l.store.DeleteUserRecord(ctx, a.ID, a.GameID, a.OwnerID); err != nil {
		return a, err
	}

	a.State = models.StateLocked
	a.UnlockedAt = nil
	return a, nil
}

// Toggle locks a non-locked achievement and unlocks a locked one.
func (l *Lifecycle) Toggle(ctx context.Context, a models.Achievement) (models.Achievement, error) {
	if a.Locked() {
		return l.RequestUnlock(ctx, a)
	}
	return l.RequestLock(ctx, a)
}

// showNotifications consults the owner's preference. A failed preference
// lookup suppresses the toast rather than failing the unlock.
func (l *Lifecycle) showNotifications(ctx context.Context, ownerID string) bool {
	prefs, err := l.store.FetchPreferences(ctx, ownerID)
	if err != nil {
		logger.New().WithError(err).Warn("failed to fetch notification preference")
		return false
	}
	return prefs.ShowNotifications
}
