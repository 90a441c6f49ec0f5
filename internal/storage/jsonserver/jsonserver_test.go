package jsonserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fallcrate/milestone-web/internal/models"
)

// fakeServer mimics the json-server routes the driver depends on.
type fakeServer struct {
	mu      sync.Mutex
	records map[string]wireRecord
	catalog []models.CatalogEntry
}

func newFakeServer() *fakeServer {
	return &fakeServer{records: make(map[string]wireRecord)}
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/gameAchievements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(f.catalog)
	})

	mux.HandleFunc("/userAchievements", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			f.mu.Lock()
			defer f.mu.Unlock()

			matches := []wireRecord{}
			for _, record := range f.records {
				if id := r.URL.Query().Get("id"); id != "" && record.ID != id {
					continue
				}
				if owner := r.URL.Query().Get("ownerId"); owner != "" && record.OwnerID != owner {
					continue
				}
				matches = append(matches, record)
			}
			json.NewEncoder(w).Encode(matches)
		case http.MethodPost:
			var record wireRecord
			json.NewDecoder(r.Body).Decode(&record)
			f.mu.Lock()
			f.records[record.ID] = record
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/userAchievements/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/userAchievements/")
		switch r.Method {
		case http.MethodPatch:
			var record wireRecord
			json.NewDecoder(r.Body).Decode(&record)
			f.mu.Lock()
			f.records[id] = record
			f.mu.Unlock()
		case http.MethodDelete:
			f.mu.Lock()
			delete(f.records, id)
			f.mu.Unlock()
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/userPreferences/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return mux
}

func setupDriver(t *testing.T) (*fakeServer, *Store) {
	t.Helper()
	fake := newFakeServer()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	store := NewStore(server.URL, 10*time.Millisecond)
	t.Cleanup(func() { store.Close() })
	return fake, store
}

func TestFetchCatalog(t *testing.T) {
	fake, store := setupDriver(t)
	fake.catalog = []models.CatalogEntry{
		{ID: "first-upload", GameID: "fallcrate", Title: "First Upload"},
	}

	entries, err := store.FetchCatalog(context.Background(), "fallcrate")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "first-upload", entries[0].ID)
}

func TestSaveCreatesThenPatches(t *testing.T) {
	fake, store := setupDriver(t)
	ctx := context.Background()

	now := time.Now()
	record := models.UserRecord{
		ID: "first-upload", GameID: "fallcrate", OwnerID: "owner-1",
		UnlockedAt: &now, State: models.StateNewlyUnlocked,
	}

	_, err := store.SaveUserRecord(ctx, record)
	require.NoError(t, err)

	record.State = models.StateUnlocked
	_, err = store.SaveUserRecord(ctx, record)
	require.NoError(t, err)

	records, err := store.FetchUserRecords(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StateUnlocked, records[0].State)
	assert.Equal(t, "first-upload", records[0].ID, "composite key must unpack to the achievement id")

	require.NoError(t, store.DeleteUserRecord(ctx, "first-upload", "fallcrate", "owner-1"))
	records, err = store.FetchUserRecords(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	fake.mu.Lock()
	assert.Empty(t, fake.records)
	fake.mu.Unlock()
}

func TestMissingPreferencesFallBackToDefaults(t *testing.T) {
	_, store := setupDriver(t)

	prefs, err := store.FetchPreferences(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences(), prefs)
}

func TestPollingSubscriptionDelivers(t *testing.T) {
	_, store := setupDriver(t)

	snapshots := make(chan []models.UserRecord, 16)
	unsub, err := store.SubscribeUserRecords("owner-1", func(records []models.UserRecord) {
		snapshots <- records
	})
	require.NoError(t, err)
	defer unsub()

	// Initial snapshot is empty.
	select {
	case records := <-snapshots:
		assert.Empty(t, records)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	now := time.Now()
	_, err = store.SaveUserRecord(context.Background(), models.UserRecord{
		ID: "first-upload", GameID: "fallcrate", OwnerID: "owner-1",
		UnlockedAt: &now, State: models.StateNewlyUnlocked,
	})
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for {
		select {
		case records := <-snapshots:
			if len(records) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("poller never observed the write")
		}
	}
}

func TestUnsubscribeStopsDeliverySynchronously(t *testing.T) {
	var (
		mu       sync.Mutex
		requests int
	)
	inFlight := make(chan struct{})
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/userAchievements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()

		// Hold the second poll's response open so the tick is mid
		// round-trip when the disposer runs.
		if n == 2 {
			close(inFlight)
		}
		if n >= 2 {
			<-release
		}
		json.NewEncoder(w).Encode([]wireRecord{})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	store := NewStore(server.URL, 10*time.Millisecond)
	t.Cleanup(func() { store.Close() })

	var delivered atomic.Int32
	unsub, err := store.SubscribeUserRecords("owner-1", func([]models.UserRecord) {
		delivered.Add(1)
	})
	require.NoError(t, err)

	<-inFlight
	unsub()
	before := delivered.Load()

	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, delivered.Load(), "a returned disposer means no further delivery")
}

func TestCloseIsSafeAroundUnsubscribe(t *testing.T) {
	_, store := setupDriver(t)

	unsub, err := store.SubscribeUserRecords("owner-1", func([]models.UserRecord) {})
	require.NoError(t, err)

	unsub()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	// Disposing after Close must not close the poller channel again.
	unsub()
}
