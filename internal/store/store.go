// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/models"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a compare-and-swap write found state different from what the caller expected.
var ErrConflict = errors.New("compare-and-swap conflict")

// SessionStore persists veto sessions and is the only writer of the action log.
type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (models.VetoSession, error)
	// CreateSession fails with ErrConflict when the ID is taken or the match already has a session.
	CreateSession(ctx context.Context, s models.VetoSession) error

	// CompareAndAppendAction appends action and applies t in one atomic step, but only if the
	// session's last order number and current turn owner still match the expectations.
	// Otherwise it returns ErrConflict and writes nothing.
	CompareAndAppendAction(ctx context.Context, sessionID uuid.UUID, expectedLastOrder int, expectedTurnTeamID uuid.UUID, action models.VetoAction, t models.SessionTransition) error

	// UpdateStatus applies t if the stored status still equals expected, else ErrConflict.
	UpdateStatus(ctx context.Context, sessionID uuid.UUID, expected models.SessionStatus, t models.SessionTransition) error

	// ResetSession puts the session back to pending, clears the turn owner, roll and
	// completion timestamps, and deletes its action log.
	ResetSession(ctx context.Context, sessionID uuid.UUID) error

	ListByMatch(ctx context.Context, matchID uuid.UUID) ([]models.VetoSession, error)
	ListByTournament(ctx context.Context, tournamentID uuid.UUID) ([]models.VetoSession, error)
	ListSessions(ctx context.Context) ([]models.VetoSession, error)
}

// ActionStore reads the ordered action log of a session.
type ActionStore interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.VetoAction, error)
}

// MatchStore resolves the match that owns a session.
type MatchStore interface {
	GetMatch(ctx context.Context, matchID uuid.UUID) (models.MatchConfig, error)
}

// MapPoolStore resolves a tournament's configured map pool.
type MapPoolStore interface {
	GetMapPool(ctx context.Context, tournamentID uuid.UUID) (models.MapPoolConfig, error)
}

// Backend bundles every store the veto service and auditor read from.
type Backend interface {
	SessionStore
	ActionStore
	MatchStore
	MapPoolStore
}

// Seeder writes match and map pool config. Production deployments usually fill these tables
// from the tournament system; the admin API uses it for local setups.
type Seeder interface {
	PutMatch(ctx context.Context, m models.MatchConfig) error
	PutMapPool(ctx context.Context, p models.MapPoolConfig) error
}
