// internal/veto/engine.go
package veto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/models"
)

// Command is a team's request to perform the next veto step.
type Command struct {
	ActingTeamID uuid.UUID         `json:"acting_team_id"`
	Action       models.ActionType `json:"action"`
	MapID        string            `json:"map_id,omitempty"`
	SideChoice   models.Side       `json:"side_choice,omitempty"`
}

// ValidateTeams checks that both teams are set and distinct.
func ValidateTeams(home, away uuid.UUID) error {
	if home == uuid.Nil || away == uuid.Nil {
		return fmt.Errorf("%w: both teams must be set", ErrInvalidTeams)
	}
	if home == away {
		return fmt.Errorf("%w: team %s cannot face itself", ErrInvalidTeams, home)
	}
	return nil
}

// InitializeSession builds a pending session for a match. Team1 plays home.
func InitializeSession(match models.MatchConfig, pool models.MapPoolConfig, now time.Time) (models.VetoSession, error) {
	if err := ValidateTeams(match.Team1ID, match.Team2ID); err != nil {
		return models.VetoSession{}, err
	}

	s := models.VetoSession{
		ID:           uuid.New(),
		MatchID:      match.MatchID,
		TournamentID: match.TournamentID,
		HomeTeamID:   match.Team1ID,
		AwayTeamID:   match.Team2ID,
		Status:       models.StatusPending,
		RollSeed:     RollSeedFor(match.MatchID, match.Team1ID, match.Team2ID),
		BestOf:       match.BestOf,
		MapPool:      append([]string(nil), pool.MapIDs...),
		CreatedAt:    now,
	}
	if _, err := planFor(s); err != nil {
		return models.VetoSession{}, err
	}
	return s, nil
}

// FirstActorTeam resolves the roll winner to a team ID.
func FirstActorTeam(s models.VetoSession) uuid.UUID {
	if DetermineFirstActor(s.RollSeed) == SideHome {
		return s.HomeTeamID
	}
	return s.AwayTeamID
}

// Roll computes the transition that moves a pending session into play. It is the same
// transition Apply performs implicitly on the first action.
func Roll(s models.VetoSession, now time.Time) (models.SessionTransition, error) {
	if s.Status != models.StatusPending {
		return models.SessionTransition{}, fmt.Errorf("%w: session is %s", ErrInvalidActionForPhase, s.Status)
	}
	if err := ValidateTeams(s.HomeTeamID, s.AwayTeamID); err != nil {
		return models.SessionTransition{}, err
	}
	return models.SessionTransition{
		Status:            models.StatusInProgress,
		CurrentTurnTeamID: FirstActorTeam(s),
		RollTimestamp:     &now,
		StartedAt:         &now,
	}, nil
}

// Apply validates cmd against the session and its log and returns the action to append together
// with the session fields to write alongside it. Nothing is mutated; the caller commits both
// through the store's compare-and-append.
func Apply(s models.VetoSession, actions []models.VetoAction, cmd Command, now time.Time) (models.VetoAction, models.SessionTransition, error) {
	var none models.VetoAction

	if s.Status == models.StatusCompleted {
		return none, models.SessionTransition{}, fmt.Errorf("%w: session is completed", ErrInvalidActionForPhase)
	}
	plan, err := planFor(s)
	if err != nil {
		return none, models.SessionTransition{}, err
	}
	if len(actions) >= len(plan) {
		return none, models.SessionTransition{}, fmt.Errorf("%w: all %d steps are done", ErrInvalidActionForPhase, len(plan))
	}

	t := models.SessionTransition{
		Status:            s.Status,
		CurrentTurnTeamID: s.CurrentTurnTeamID,
	}
	if s.Status == models.StatusPending {
		t, err = Roll(s, now)
		if err != nil {
			return none, models.SessionTransition{}, err
		}
	}

	if cmd.ActingTeamID != t.CurrentTurnTeamID {
		return none, models.SessionTransition{}, fmt.Errorf("%w: waiting on %s", ErrWrongTurn, t.CurrentTurnTeamID)
	}

	step := plan[len(actions)]
	if cmd.Action != models.ActionSideChoice {
		if err := checkMap(s, actions, cmd.MapID); err != nil {
			return none, models.SessionTransition{}, err
		}
	}
	if cmd.Action != step.Action {
		return none, models.SessionTransition{}, fmt.Errorf("%w: expected %s, got %q", ErrInvalidActionForPhase, step.Action, cmd.Action)
	}

	switch cmd.Action {
	case models.ActionSideChoice:
		if !cmd.SideChoice.Valid() {
			return none, models.SessionTransition{}, fmt.Errorf("%w: %q", ErrInvalidSide, cmd.SideChoice)
		}
		if cmd.MapID != "" && cmd.MapID != lastPick(actions) {
			return none, models.SessionTransition{}, fmt.Errorf("%w: side choice must follow the pick of %q", ErrInvalidActionForPhase, lastPick(actions))
		}
	default:
		if cmd.SideChoice != "" {
			return none, models.SessionTransition{}, fmt.Errorf("%w: side only allowed on side_choice", ErrInvalidSide)
		}
	}

	action := models.VetoAction{
		ID:                uuid.New(),
		SessionID:         s.ID,
		OrderNumber:       models.LastOrderNumber(actions) + 1,
		Action:            cmd.Action,
		MapID:             cmd.MapID,
		SideChoice:        cmd.SideChoice,
		PerformedByTeamID: cmd.ActingTeamID,
		PerformedAt:       now,
	}
	if action.Action == models.ActionSideChoice {
		action.MapID = ""
	}

	if len(actions)+1 == len(plan) {
		t.Status = models.StatusCompleted
		t.CompletedAt = &now
	} else {
		t.CurrentTurnTeamID = s.OtherTeam(cmd.ActingTeamID)
	}
	return action, t, nil
}

func checkMap(s models.VetoSession, actions []models.VetoAction, mapID string) error {
	if mapID == "" {
		return fmt.Errorf("%w: map id is required", ErrUnknownMap)
	}
	if !(models.MapPoolConfig{MapIDs: s.MapPool}).Contains(mapID) {
		return fmt.Errorf("%w: %q", ErrUnknownMap, mapID)
	}
	for _, a := range actions {
		if a.Action != models.ActionSideChoice && a.MapID == mapID {
			return fmt.Errorf("%w: %q at step %d", ErrMapAlreadyUsed, mapID, a.OrderNumber)
		}
	}
	return nil
}

func lastPick(actions []models.VetoAction) string {
	for i := len(actions) - 1; i >= 0; i-- {
		if actions[i].Action == models.ActionPick {
			return actions[i].MapID
		}
	}
	return ""
}

// RemainingMaps lists pool maps not yet banned or picked, in pool order.
func RemainingMaps(s models.VetoSession, actions []models.VetoAction) []string {
	used := make(map[string]bool, len(actions))
	for _, a := range actions {
		if a.MapID != "" {
			used[a.MapID] = true
		}
	}
	var out []string
	for _, id := range s.MapPool {
		if !used[id] {
			out = append(out, id)
		}
	}
	return out
}
