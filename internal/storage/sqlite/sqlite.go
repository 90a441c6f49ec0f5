// Package sqlite is the embedded storage driver, backed by sqlx over
// mattn/go-sqlite3. Subscriptions are fed from an in-process registry
// notified after every successful write.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fallcrate/milestone-web/internal/models"
	"github.com/fallcrate/milestone-web/internal/storage"
)

type Store struct {
	db *sqlx.DB

	catalogSubs storage.Subscribers[[]models.CatalogEntry]
	recordSubs  storage.Subscribers[[]models.UserRecord]
	prefSubs    storage.Subscribers[models.UserPreferences]
}

var _ storage.Store = (*Store)(nil)

// NewStore opens (or creates) the database file and initializes the schema.
func NewStore(databaseURL string) (*Store, error) {
	if databaseURL == "" {
		databaseURL = "milestone.db"
	}

	db, err := sqlx.Connect("sqlite3", databaseURL+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	catalogTable := `
	CREATE TABLE IF NOT EXISTS catalog_entries (
		id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (game_id, id)
	);`

	recordsTable := `
	CREATE TABLE IF NOT EXISTS user_records (
		id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		state TEXT NOT NULL,
		unlocked_at DATETIME,
		PRIMARY KEY (owner_id, game_id, id)
	);`

	prefsTable := `
	CREATE TABLE IF NOT EXISTS user_preferences (
		owner_id TEXT PRIMARY KEY,
		show_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		show_badges BOOLEAN NOT NULL DEFAULT TRUE
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_catalog_game ON catalog_entries(game_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_records_owner ON user_records(owner_id);`,
	}

	for _, query := range []string{catalogTable, recordsTable, prefsTable} {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, index := range indexes {
		if _, err := s.db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// SeedCatalog inserts entries that are not already present, preserving
// their slice order as the grid position.
func (s *Store) SeedCatalog(entries []models.CatalogEntry) error {
	query := `
		INSERT OR IGNORE INTO catalog_entries (id, game_id, title, description, position)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, entry := range entries {
		if _, err := s.db.Exec(query, entry.ID, entry.GameID, entry.Title, entry.Description, i); err != nil {
			return fmt.Errorf("failed to seed catalog entry %s: %w", entry.ID, err)
		}
	}
	return nil
}

func (s *Store) FetchCatalog(ctx context.Context, gameID string) ([]models.CatalogEntry, error) {
	query := `SELECT id, game_id, title, description FROM catalog_entries
			  WHERE game_id = ? ORDER BY position`

	entries := []models.CatalogEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, gameID); err != nil {
		return nil, storage.WrapErr("fetch catalog", err)
	}
	return entries, nil
}

func (s *Store) FetchUserRecords(ctx context.Context, ownerID string) ([]models.UserRecord, error) {
	if ownerID == "" {
		return []models.UserRecord{}, nil
	}

	query := `SELECT id, game_id, owner_id, state, unlocked_at FROM user_records
			  WHERE owner_id = ? ORDER BY game_id, id`

	records := []models.UserRecord{}
	if err := s.db.SelectContext(ctx, &records, query, ownerID); err != nil {
		return nil, storage.WrapErr("fetch user records", err)
	}
	return records, nil
}

func (s *Store) SaveUserRecord(ctx context.Context, rec models.UserRecord) (models.UserRecord, error) {
	query := `
		INSERT INTO user_records (id, game_id, owner_id, state, unlocked_at)
		VALUES (:id, :game_id, :owner_id, :state, :unlocked_at)
		ON CONFLICT(owner_id, game_id, id) DO UPDATE SET
			state = excluded.state,
			unlocked_at = excluded.unlocked_at
	`

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return models.UserRecord{}, storage.WrapErr("save user record", err)
	}

	s.publishUserRecords(ctx, rec.OwnerID)
	return rec, nil
}

func (s *Store) DeleteUserRecord(ctx context.Context, id, gameID, ownerID string) error {
	query := `DELETE FROM user_records WHERE id = ? AND game_id = ? AND owner_id = ?`
	if _, err := s.db.ExecContext(ctx, query, id, gameID, ownerID); err != nil {
		return storage.WrapErr("delete user record", err)
	}

	s.publishUserRecords(ctx, ownerID)
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

func (s *Store) FetchPreferences(ctx context.Context, ownerID string) (models.UserPreferences, error) {
	query := `SELECT show_notifications, show_badges FROM user_preferences WHERE owner_id = ?`

	var prefs models.UserPreferences
	err := s.db.GetContext(ctx, &prefs, query, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPreferences(), nil
	} else if err != nil {
		return models.UserPreferences{}, storage.WrapErr("fetch preferences", err)
	}
	return prefs, nil
}

func (s *Store) SavePreferences(ctx context.Context, ownerID string, prefs models.UserPreferences) error {
	query := `
		INSERT INTO user_preferences (owner_id, show_notifications, show_badges)
		VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			show_notifications = excluded.show_notifications,
			show_badges = excluded.show_badges
	`

	if _, err := s.db.ExecContext(ctx, query, ownerID, prefs.ShowNotifications, prefs.ShowBadges); err != nil {
		return storage.WrapErr("save preferences", err)
	}

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

func (s *Store) publishUserRecords(ctx context.Context, ownerID string) {
	records, err := s.FetchUserRecords(ctx, ownerID)
	if err != nil {
		return
	}
	s.recordSubs.Publish(ownerID, records)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
