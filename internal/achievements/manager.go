package achievements

import (
	"context"
	"sync"

	"github.com/fallcrate/milestone-web/internal/models"
	"github.com/fallcrate/milestone-web/internal/storage"
)

// Manager hands out one Session per owner and routes identity-link events
// into the merge reconciler. It is constructed once at startup and passed
// to whoever needs it; there is no package-level state.
type Manager struct {
	store     storage.Store
	lifecycle *Lifecycle
	merger    *Merger
	gameID    string
	reachable StateSet

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(store storage.Store, lifecycle *Lifecycle, merger *Merger, gameID string, reachable StateSet) *Manager {
	return &Manager{
		store:     store,
		lifecycle: lifecycle,
		merger:    merger,
		gameID:    gameID,
		reachable: reachable,
		sessions:  make(map[string]*Session),
	}
}

// Session returns the owner's live session, starting one on first use.
func (m *Manager) Session(ownerID string) (*Session, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[ownerID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	session := NewSession(m.store, m.lifecycle, m.gameID, ownerID, m.reachable)
	if err := session.Start(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[ownerID]; ok {
		// Lost the race; keep the first one.
		go session.Stop(context.Background())
		return existing, nil
	}
	m.sessions[ownerID] = session
	return session, nil
}

// Close stops and forgets the owner's session, if one is live.
func (m *Manager) Close(ctx context.Context, ownerID string) {
	m.mu.Lock()
	session, ok := m.sessions[ownerID]
	delete(m.sessions, ownerID)
	m.mu.Unlock()

	if ok {
		session.Stop(ctx)
	}
}

// LinkIdentity handles an anonymous -> authenticated linking event: the
// anonymous session ends and its records are merged onto the target owner.
func (m *Manager) LinkIdentity(ctx context.Context, event models.MergeEvent) error {
	m.Close(ctx, event.SourceOwnerID)
	return m.merger.Merge(ctx, event)
}

// Shutdown stops every live session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Stop(ctx)
	}
}
