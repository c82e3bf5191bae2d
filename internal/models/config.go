// internal/models/config.go
package models

import "github.com/google/uuid"

// MapPoolConfig is the tournament-configured ordered set of maps eligible for veto.
type MapPoolConfig struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	MapIDs       []string  `json:"map_ids"`
	ActiveOnly   bool      `json:"active_only"`
}

// Contains reports whether mapID is in the pool.
func (p MapPoolConfig) Contains(mapID string) bool {
	for _, id := range p.MapIDs {
		if id == mapID {
			return true
		}
	}
	return false
}

// MatchConfig describes the match that owns a veto session.
type MatchConfig struct {
	MatchID      uuid.UUID `json:"match_id"`
	TournamentID uuid.UUID `json:"tournament_id"`
	Team1ID      uuid.UUID `json:"team1_id"`
	Team2ID      uuid.UUID `json:"team2_id"`
	BestOf       int       `json:"best_of"`
}

// HasTeam reports whether teamID competes in the match.
func (m MatchConfig) HasTeam(teamID uuid.UUID) bool {
	return teamID != uuid.Nil && (teamID == m.Team1ID || teamID == m.Team2ID)
}
