// Package jsonserver is a storage driver speaking to a REST-ish JSON
// server (json-server style routes). The server has no push channel, so
// subscriptions poll on a ticker and fan out whatever comes back.
package jsonserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fallcrate/milestone-web/internal/models"
	"github.com/fallcrate/milestone-web/internal/storage"
)

const defaultPollInterval = 5 * time.Second

type Store struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration

	catalogSubs storage.Subscribers[[]models.CatalogEntry]
	recordSubs  storage.Subscribers[[]models.UserRecord]
	prefSubs    storage.Subscribers[models.UserPreferences]

	mu         sync.Mutex
	closed     bool
	nextPoller int
	pollers    map[int]chan struct{}
}

var _ storage.Store = (*Store)(nil)

func NewStore(baseURL string, pollInterval time.Duration) *Store {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Store{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 10 * time.Second},
		pollInterval: pollInterval,
		pollers:      make(map[int]chan struct{}),
	}
}

// recordKey builds the composite primary key the JSON server stores user
// records under: owner--game--id.
func recordKey(id, gameID, ownerID string) string {
	return fmt.Sprintf("%s--%s--%s", ownerID, gameID, id)
}

// wireRecord is the server-side shape: the id field carries the composite
// key, the achievement id travels separately.
type wireRecord struct {
	ID            string             `json:"id"`
	AchievementID string             `json:"achievementId"`
	GameID        string             `json:"gameId"`
	OwnerID       string             `json:"ownerId"`
	UnlockedAt    *time.Time         `json:"unlockedAt"`
	State         models.UnlockState `json:"state"`
}

func toWire(rec models.UserRecord) wireRecord {
	return wireRecord{
		ID:            recordKey(rec.ID, rec.GameID, rec.OwnerID),
		AchievementID: rec.ID,
		GameID:        rec.GameID,
		OwnerID:       rec.OwnerID,
		UnlockedAt:    rec.UnlockedAt,
		State:         rec.State,
	}
}

func fromWire(w wireRecord) models.UserRecord {
	return models.UserRecord{
		ID:         w.AchievementID,
		GameID:     w.GameID,
		OwnerID:    w.OwnerID,
		UnlockedAt: w.UnlockedAt,
		State:      w.State,
	}
}

func (s *Store) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d for GET %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Store) sendJSON(ctx context.Context, method, path string, body any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d for %s %s", resp.StatusCode, method, path)
	}
	return nil
}

func (s *Store) FetchCatalog(ctx context.Context, gameID string) ([]models.CatalogEntry, error) {
	path := "/gameAchievements?gameId=" + url.QueryEscape(gameID)

	entries := []models.CatalogEntry{}
	if err := s.getJSON(ctx, path, &entries); err != nil {
		return nil, storage.WrapErr("fetch catalog", err)
	}
	return entries, nil
}

func (s *Store) FetchUserRecords(ctx context.Context, ownerID string) ([]models.UserRecord, error) {
	if ownerID == "" {
		return []models.UserRecord{}, nil
	}

	path := "/userAchievements?ownerId=" + url.QueryEscape(ownerID)
	wires := []wireRecord{}
	if err := s.getJSON(ctx, path, &wires); err != nil {
		return nil, storage.WrapErr("fetch user records", err)
	}

	records := make([]models.UserRecord, 0, len(wires))
	for _, w := range wires {
		records = append(records, fromWire(w))
	}
	return records, nil
}

func (s *Store) SaveUserRecord(ctx context.Context, rec models.UserRecord) (models.UserRecord, error) {
	key := recordKey(rec.ID, rec.GameID, rec.OwnerID)

	// The JSON server has no upsert: check for the record first, then
	// PATCH or POST.
	existing := []wireRecord{}
	if err := s.getJSON(ctx, "/userAchievements?id="+url.QueryEscape(key), &existing); err != nil {
		return models.UserRecord{}, storage.WrapErr("save user record", err)
	}

	var err error
	if len(existing) > 0 {
		err = s.sendJSON(ctx, http.MethodPatch, "/userAchievements/"+url.PathEscape(key), toWire(rec))
	} else {
		err = s.sendJSON(ctx, http.MethodPost, "/userAchievements", toWire(rec))
	}
	if err != nil {
		return models.UserRecord{}, storage.WrapErr("save user record", err)
	}
	return rec, nil
}

func (s *Store) DeleteUserRecord(ctx context.Context, id, gameID, ownerID string) error {
	key := recordKey(id, gameID, ownerID)
	err := s.sendJSON(ctx, http.MethodDelete, "/userAchievements/"+url.PathEscape(key), nil)
	return storage.WrapErr("delete user record", err)
}

func (s *Store) FetchPreferences(ctx context.Context, ownerID string) (models.UserPreferences, error) {
	var prefs models.UserPreferences
	err := s.getJSON(ctx, "/userPreferences/"+url.PathEscape(ownerID), &prefs)
	if errors.Is(err, storage.ErrNotFound) {
		return models.DefaultPreferences(), nil
	} else if err != nil {
		return models.UserPreferences{}, storage.WrapErr("fetch preferences", err)
	}
	return prefs, nil
}

func (s *Store) SavePreferences(ctx context.Context, ownerID string, prefs models.UserPreferences) error {
	body := struct {
		ID string `json:"id"`
		models.UserPreferences
	}{ID: ownerID, UserPreferences: prefs}

	err := s.sendJSON(ctx, http.MethodPut, "/userPreferences/"+url.PathEscape(ownerID), body)
	return storage.WrapErr("save preferences", err)
}

func (s *Store) SubscribeCatalog(gameID string, fn func([]models.CatalogEntry)) (storage.Unsubscribe, error) {
	unsub := s.catalogSubs.Add(gameID, fn)
	return s.poll(unsub, func(ctx context.Context) {
		if entries, err := s.FetchCatalog(ctx, gameID); err == nil {
			s.catalogSubs.Publish(gameID, entries)
		}
	})
}

func (s *Store) SubscribeUserRecords(ownerID string, fn func([]models.UserRecord)) (storage.Unsubscribe, error) {
	if ownerID == "" {
		return func() {}, nil
	}
	unsub := s.recordSubs.Add(ownerID, fn)
	return s.poll(unsub, func(ctx context.Context) {
		if records, err := s.FetchUserRecords(ctx, ownerID); err == nil {
			s.recordSubs.Publish(ownerID, records)
		}
	})
}

func (s *Store) SubscribePreferences(ownerID string, fn func(models.UserPreferences)) (storage.Unsubscribe, error) {
	if ownerID == "" {
		return func() {}, nil
	}
	unsub := s.prefSubs.Add(ownerID, fn)
	return s.poll(unsub, func(ctx context.Context) {
		if prefs, err := s.FetchPreferences(ctx, ownerID); err == nil {
			s.prefSubs.Publish(ownerID, prefs)
		}
	})
}

// poll runs tick once immediately and then on every poll interval. Ticks
// deliver through the snapshot registry, so the disposer removes the
// callback under the registry lock first and only then stops the ticker:
// once the disposer has returned, a tick still mid round-trip publishes
// to nobody.
func (s *Store) poll(unsub storage.Unsubscribe, tick func(context.Context)) (storage.Unsubscribe, error) {
	stop := make(chan struct{})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsub()
		return nil, fmt.Errorf("store is closed")
	}
	id := s.nextPoller
	s.nextPoller++
	s.pollers[id] = stop
	s.mu.Unlock()

	ctx := context.Background()
	tick(ctx)

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()

	return func() {
		unsub()
		s.stopPoller(id)
	}, nil
}

// stopPoller closes one poller's stop channel exactly once, whichever of
// the subscription disposer and Close gets there first.
func (s *Store) stopPoller(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.pollers[id]; ok {
		delete(s.pollers, id)
		close(stop)
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, stop := range s.pollers {
		delete(s.pollers, id)
		close(stop)
	}
	return nil
}
