// internal/view/view.go
package view

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/jason-s-yu/mapveto/internal/veto"
)

// View is what a consumer needs to render controls for one team.
type View struct {
	Phase    veto.Phase `json:"phase"`
	IsMyTurn bool       `json:"is_my_turn"`
	CanAct   bool       `json:"can_act"`
}

// DeriveView computes the view for userTeamID. A nil session means the veto has not been created
// yet; members of the match can still act, since their first action or roll creates it.
func DeriveView(match models.MatchConfig, session *models.VetoSession, actions []models.VetoAction, userTeamID uuid.UUID) View {
	if session == nil {
		return View{
			Phase:  veto.PhaseDiceRoll,
			CanAct: match.HasTeam(userTeamID),
		}
	}
	return View{
		Phase: veto.CurrentPhase(*session, actions),
		IsMyTurn: session.Status == models.StatusInProgress &&
			userTeamID != uuid.Nil &&
			session.CurrentTurnTeamID == userTeamID,
		CanAct: session.HasTeam(userTeamID),
	}
}

// Snapshot is the complete consumer-facing state of a match's veto.
type Snapshot struct {
	MatchID       uuid.UUID           `json:"match_id"`
	Session       *models.VetoSession `json:"session"`
	Actions       []models.VetoAction `json:"actions"`
	Phase         veto.Phase          `json:"phase"`
	IsMyTurn      bool                `json:"is_my_turn"`
	CanAct        bool                `json:"can_act"`
	NextAction    models.ActionType   `json:"next_action,omitempty"`
	RemainingMaps []string            `json:"remaining_maps"`
}

// BuildSnapshot assembles a Snapshot from one consistent read.
func BuildSnapshot(match models.MatchConfig, session *models.VetoSession, actions []models.VetoAction, userTeamID uuid.UUID) Snapshot {
	v := DeriveView(match, session, actions, userTeamID)
	snap := Snapshot{
		MatchID:  match.MatchID,
		Session:  session,
		Actions:  actions,
		Phase:    v.Phase,
		IsMyTurn: v.IsMyTurn,
		CanAct:   v.CanAct,
	}
	if snap.Actions == nil {
		snap.Actions = []models.VetoAction{}
	}
	if session != nil {
		if step, ok := veto.NextStep(*session, actions); ok {
			snap.NextAction = step.Action
		}
		snap.RemainingMaps = veto.RemainingMaps(*session, actions)
	}
	return snap
}

// Loader reads the state a snapshot is built from. *veto.Service implements it.
type Loader interface {
	Load(ctx context.Context, sessionID uuid.UUID) (models.VetoSession, []models.VetoAction, error)
	SessionForMatch(ctx context.Context, matchID uuid.UUID) (*models.VetoSession, []models.VetoAction, error)
	ResolveMatch(ctx context.Context, matchID uuid.UUID) (models.MatchConfig, error)
}

// LoadMatch builds the snapshot of a match's veto, which may not have a session yet.
func LoadMatch(ctx context.Context, l Loader, matchID, userTeamID uuid.UUID) (Snapshot, error) {
	match, err := l.ResolveMatch(ctx, matchID)
	if err != nil {
		return Snapshot{}, err
	}
	session, actions, err := l.SessionForMatch(ctx, matchID)
	if err != nil {
		return Snapshot{}, err
	}
	return BuildSnapshot(match, session, actions, userTeamID), nil
}

// LoadSession builds the snapshot of an existing session. An orphaned session is still shown; its
// match config is reconstructed from the session.
func LoadSession(ctx context.Context, l Loader, sessionID, userTeamID uuid.UUID) (Snapshot, error) {
	session, actions, err := l.Load(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	match, err := l.ResolveMatch(ctx, session.MatchID)
	if err != nil {
		if veto.KindOf(err) != veto.KindNotFound {
			return Snapshot{}, err
		}
		match = models.MatchConfig{
			MatchID:      session.MatchID,
			TournamentID: session.TournamentID,
			Team1ID:      session.HomeTeamID,
			Team2ID:      session.AwayTeamID,
			BestOf:       session.BestOf,
		}
	}
	return BuildSnapshot(match, &session, actions, userTeamID), nil
}
