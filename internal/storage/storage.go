// Package storage defines the access port between the achievement core and
// whatever backs it. Two real drivers exist (sqlite, jsonserver) plus an
// in-memory one for tests; the core never knows which it is talking to.
package storage

import (
	"context"

	"github.com/fallcrate/milestone-web/internal/models"
)

// Unsubscribe stops delivery of further callbacks for one subscription.
// Implementations must make it safe to call more than once.
type Unsubscribe func()

// Store is the narrow persistence contract the achievement core requires.
// All operations may fail; no operation retries internally. Subscriptions
// deliver full snapshots, never deltas.
type Store interface {
	// FetchCatalog returns every catalog entry for a game, in catalog order.
	FetchCatalog(ctx context.Context, gameID string) ([]models.CatalogEntry, error)

	// FetchUserRecords returns every stored unlock record for an owner.
	// An empty ownerID yields an empty slice, not an error.
	FetchUserRecords(ctx context.Context, ownerID string) ([]models.UserRecord, error)

	// SaveUserRecord upserts a record by its (ownerId, gameId, id) key and
	// returns the stored value.
	SaveUserRecord(ctx context.Context, rec models.UserRecord) (models.UserRecord, error)

	// DeleteUserRecord removes the record for one (ownerId, gameId, id) key.
	// Deleting an absent record is not an error.
	DeleteUserRecord(ctx context.Context, id, gameID, ownerID string) error

	// SubscribeCatalog registers fn to receive the full catalog snapshot
	// whenever it changes. fn is also invoked once with the current snapshot.
	SubscribeCatalog(gameID string, fn func([]models.CatalogEntry)) (Unsubscribe, error)

	// SubscribeUserRecords is SubscribeCatalog for one owner's records.
	// An empty ownerID returns a no-op subscription.
	SubscribeUserRecords(ownerID string, fn func([]models.UserRecord)) (Unsubscribe, error)

	// FetchPreferences returns the owner's preferences, or the defaults if
	// the owner never saved any.
	FetchPreferences(ctx context.Context, ownerID string) (models.UserPreferences, error)

	// SavePreferences upserts the owner's preferences document.
	SavePreferences(ctx context.Context, ownerID string, prefs models.UserPreferences) error

	// SubscribePreferences registers fn for preference changes.
	SubscribePreferences(ownerID string, fn func(models.UserPreferences)) (Unsubscribe, error)

	Close() error
}
