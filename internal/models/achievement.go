package models

import (
	"time"
)

// UnlockState is the lifecycle state of an achievement for one user.
// A catalog entry with no stored user record is implicitly Locked; records
// are never persisted in the Locked state.
type UnlockState string

const (
	StateLocked        UnlockState = "locked"
	StateNewlyUnlocked UnlockState = "newly_unlocked"
	StateUnlocked      UnlockState = "unlocked"
)

// Valid reports whether s is one of the three known states.
func (s UnlockState) Valid() bool {
	switch s {
	case StateLocked, StateNewlyUnlocked, StateUnlocked:
		return true
	}
	return false
}

// CatalogEntry is the static, externally provisioned definition of an
// achievement, independent of any user. Identity key: (gameId, id).
type CatalogEntry struct {
	ID          string `json:"id" db:"id"`
	GameID      string `json:"gameId" db:"game_id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
}

// UserRecord is one user's persisted unlock status for one catalog entry.
// Created lazily on first unlock. Identity key: (ownerId, gameId, id).
// Invariant: UnlockedAt is non-nil iff State != StateLocked.
type UserRecord struct {
	ID         string      `json:"id" db:"id"`
	GameID     string      `json:"gameId" db:"game_id"`
	OwnerID    string      `json:"ownerId" db:"owner_id"`
	UnlockedAt *time.Time  `json:"unlockedAt" db:"unlocked_at"`
	State      UnlockState `json:"state" db:"state"`
}

// SameEntry reports whether r and other refer to the same catalog entry,
// regardless of owner.
func (r UserRecord) SameEntry(other UserRecord) bool {
	return r.ID == other.ID && r.GameID == other.GameID
}

// Achievement is the derived view model: a structural merge of one
// CatalogEntry and one UserRecord (real or synthesized default) sharing
// the same (gameId, id). Never persisted; fully rebuilt on every change.
type Achievement struct {
	ID          string      `json:"id"`
	GameID      string      `json:"gameId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	OwnerID     string      `json:"ownerId"`
	UnlockedAt  *time.Time  `json:"unlockedAt"`
	State       UnlockState `json:"state"`
}

// Record extracts the persistable user-record slice of the view model.
func (a Achievement) Record() UserRecord {
	return UserRecord{
		ID:         a.ID,
		GameID:     a.GameID,
		OwnerID:    a.OwnerID,
		UnlockedAt: a.UnlockedAt,
		State:      a.State,
	}
}

// Locked reports whether the achievement is still in its implicit default
// state.
func (a Achievement) Locked() bool {
	return a.State == StateLocked
}

// UserPreferences controls widget behavior for one owner. Defaults are
// all-on; a preferences document is created implicitly on first edit.
type UserPreferences struct {
	ShowNotifications bool `json:"showNotifications" db:"show_notifications"`
	ShowBadges        bool `json:"showBadges" db:"show_badges"`
}

// DefaultPreferences returns the preferences used when an owner has never
// saved any.
func DefaultPreferences() UserPreferences {
	return UserPreferences{ShowNotifications: true, ShowBadges: true}
}

// MergeEvent is the identity-link trigger handed to the merge reconciler
// when an anonymous owner signs in. Fired exactly once per linking event.
type MergeEvent struct {
	SourceOwnerID string `json:"sourceOwnerId"`
	TargetOwnerID string `json:"targetOwnerId"`
}
