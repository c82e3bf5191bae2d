// internal/models/veto_session.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the stored lifecycle state of a veto session.
type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// VetoSession represents a row in the veto_sessions table.
// The veto phase is never stored here; it is derived from the session plus its action log.
type VetoSession struct {
	ID           uuid.UUID `json:"id"`
	MatchID      uuid.UUID `json:"match_id"`
	TournamentID uuid.UUID `json:"tournament_id"`
	HomeTeamID   uuid.UUID `json:"home_team_id"`
	AwayTeamID   uuid.UUID `json:"away_team_id"`

	Status SessionStatus `json:"status"`

	// CurrentTurnTeamID is uuid.Nil while the session is pending.
	CurrentTurnTeamID uuid.UUID `json:"current_turn_team_id"`

	RollSeed      int64      `json:"roll_seed"`
	RollTimestamp *time.Time `json:"roll_timestamp,omitempty"`

	// BestOf and MapPool are copied from the match and tournament config when the session is created.
	BestOf  int      `json:"best_of"`
	MapPool []string `json:"map_pool"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HasTeam reports whether teamID is one of the two competing teams.
func (s VetoSession) HasTeam(teamID uuid.UUID) bool {
	return teamID != uuid.Nil && (teamID == s.HomeTeamID || teamID == s.AwayTeamID)
}

// OtherTeam returns the opponent of teamID, or uuid.Nil if teamID is not in the session.
func (s VetoSession) OtherTeam(teamID uuid.UUID) uuid.UUID {
	switch teamID {
	case s.HomeTeamID:
		return s.AwayTeamID
	case s.AwayTeamID:
		return s.HomeTeamID
	}
	return uuid.Nil
}

// SessionTransition holds the session fields written together with an appended action.
type SessionTransition struct {
	Status            SessionStatus
	CurrentTurnTeamID uuid.UUID
	RollTimestamp     *time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

// ApplyTo copies the transition onto a session value.
func (t SessionTransition) ApplyTo(s *VetoSession) {
	s.Status = t.Status
	s.CurrentTurnTeamID = t.CurrentTurnTeamID
	if t.RollTimestamp != nil {
		s.RollTimestamp = t.RollTimestamp
	}
	if t.StartedAt != nil {
		s.StartedAt = t.StartedAt
	}
	if t.CompletedAt != nil {
		s.CompletedAt = t.CompletedAt
	}
}
