// internal/store/memory_store.go
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/models"
)

// MemoryStore keeps sessions, actions and config in memory only.
// All writes are serialized by one mutex, which makes CompareAndAppendAction atomic.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]models.VetoSession
	actions  map[uuid.UUID][]models.VetoAction
	matches  map[uuid.UUID]models.MatchConfig
	pools    map[uuid.UUID]models.MapPoolConfig
}

// NewMemoryStore returns an empty in-memory backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]models.VetoSession),
		actions:  make(map[uuid.UUID][]models.VetoAction),
		matches:  make(map[uuid.UUID]models.MatchConfig),
		pools:    make(map[uuid.UUID]models.MapPoolConfig),
	}
}

func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (models.VetoSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return models.VetoSession{}, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s models.VetoSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return ErrConflict
	}
	for _, other := range m.sessions {
		if other.MatchID == s.MatchID {
			return ErrConflict
		}
	}
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) CompareAndAppendAction(_ context.Context, sessionID uuid.UUID, expectedLastOrder int, expectedTurnTeamID uuid.UUID, action models.VetoAction, t models.SessionTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	log := m.actions[sessionID]
	if models.LastOrderNumber(log) != expectedLastOrder || s.CurrentTurnTeamID != expectedTurnTeamID {
		return ErrConflict
	}
	if action.OrderNumber != expectedLastOrder+1 {
		return ErrConflict
	}

	m.actions[sessionID] = append(log, action)
	t.ApplyTo(&s)
	m.sessions[sessionID] = s
	return nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, sessionID uuid.UUID, expected models.SessionStatus, t models.SessionTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.Status != expected {
		return ErrConflict
	}
	t.ApplyTo(&s)
	m.sessions[sessionID] = s
	return nil
}

func (m *MemoryStore) ResetSession(_ context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.Status = models.StatusPending
	s.CurrentTurnTeamID = uuid.Nil
	s.RollTimestamp = nil
	s.StartedAt = nil
	s.CompletedAt = nil
	m.sessions[sessionID] = s
	delete(m.actions, sessionID)
	return nil
}

func (m *MemoryStore) ListByMatch(_ context.Context, matchID uuid.UUID) ([]models.VetoSession, error) {
	return m.filter(func(s models.VetoSession) bool { return s.MatchID == matchID }), nil
}

func (m *MemoryStore) ListByTournament(_ context.Context, tournamentID uuid.UUID) ([]models.VetoSession, error) {
	return m.filter(func(s models.VetoSession) bool { return s.TournamentID == tournamentID }), nil
}

func (m *MemoryStore) ListSessions(_ context.Context) ([]models.VetoSession, error) {
	return m.filter(func(models.VetoSession) bool { return true }), nil
}

func (m *MemoryStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]models.VetoAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.actions[sessionID]
	out := make([]models.VetoAction, len(log))
	copy(out, log)
	return out, nil
}

func (m *MemoryStore) GetMatch(_ context.Context, matchID uuid.UUID) (models.MatchConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.matches[matchID]
	if !ok {
		return models.MatchConfig{}, ErrNotFound
	}
	return mc, nil
}

func (m *MemoryStore) GetMapPool(_ context.Context, tournamentID uuid.UUID) (models.MapPoolConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[tournamentID]
	if !ok {
		return models.MapPoolConfig{}, ErrNotFound
	}
	p.MapIDs = append([]string(nil), p.MapIDs...)
	return p, nil
}

func (m *MemoryStore) PutMatch(_ context.Context, mc models.MatchConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[mc.MatchID] = mc
	return nil
}

func (m *MemoryStore) PutMapPool(_ context.Context, p models.MapPoolConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.MapIDs = append([]string(nil), p.MapIDs...)
	m.pools[p.TournamentID] = p
	return nil
}

// Restore writes a session and its action log verbatim, skipping every check.
// Used to load fixtures and to reproduce damaged sessions for the auditor.
func (m *MemoryStore) Restore(s models.VetoSession, actions []models.VetoAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = cloneSession(s)
	m.actions[s.ID] = append([]models.VetoAction(nil), actions...)
}

// DeleteMatch drops a match config, leaving any sessions that referenced it orphaned.
func (m *MemoryStore) DeleteMatch(matchID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.matches, matchID)
}

func (m *MemoryStore) filter(keep func(models.VetoSession) bool) []models.VetoSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VetoSession
	for _, s := range m.sessions {
		if keep(s) {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneSession(s models.VetoSession) models.VetoSession {
	s.MapPool = append([]string(nil), s.MapPool...)
	return s
}
