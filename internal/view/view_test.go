package view

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/jason-s-yu/mapveto/internal/veto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatch() models.MatchConfig {
	return models.MatchConfig{
		MatchID:      uuid.New(),
		TournamentID: uuid.New(),
		Team1ID:      uuid.New(),
		Team2ID:      uuid.New(),
		BestOf:       1,
	}
}

func sessionFor(m models.MatchConfig, status models.SessionStatus, turn uuid.UUID) *models.VetoSession {
	return &models.VetoSession{
		ID:                uuid.New(),
		MatchID:           m.MatchID,
		TournamentID:      m.TournamentID,
		HomeTeamID:        m.Team1ID,
		AwayTeamID:        m.Team2ID,
		Status:            status,
		CurrentTurnTeamID: turn,
		BestOf:            1,
		MapPool:           []string{"Ascent", "Bind", "Haven"},
	}
}

func TestDeriveView(t *testing.T) {
	m := testMatch()
	outsider := uuid.New()

	tests := []struct {
		name    string
		session *models.VetoSession
		actions []models.VetoAction
		user    uuid.UUID
		want    View
	}{
		{"no session, member", nil, nil, m.Team1ID, View{Phase: veto.PhaseDiceRoll, CanAct: true}},
		{"no session, outsider", nil, nil, outsider, View{Phase: veto.PhaseDiceRoll}},
		{"no session, anonymous", nil, nil, uuid.Nil, View{Phase: veto.PhaseDiceRoll}},
		{"pending", sessionFor(m, models.StatusPending, uuid.Nil), nil, m.Team2ID, View{Phase: veto.PhaseDiceRoll, CanAct: true}},
		{"my turn", sessionFor(m, models.StatusInProgress, m.Team1ID), nil, m.Team1ID, View{Phase: veto.PhaseBanning, IsMyTurn: true, CanAct: true}},
		{"their turn", sessionFor(m, models.StatusInProgress, m.Team1ID), nil, m.Team2ID, View{Phase: veto.PhaseBanning, CanAct: true}},
		{"spectator", sessionFor(m, models.StatusInProgress, m.Team1ID), nil, outsider, View{Phase: veto.PhaseBanning}},
		{"completed", sessionFor(m, models.StatusCompleted, m.Team2ID), nil, m.Team2ID, View{Phase: veto.PhaseCompleted, CanAct: true}},
		{
			"side choice",
			sessionFor(m, models.StatusInProgress, m.Team2ID),
			[]models.VetoAction{
				{OrderNumber: 1, Action: models.ActionBan, MapID: "Ascent"},
				{OrderNumber: 2, Action: models.ActionBan, MapID: "Bind"},
				{OrderNumber: 3, Action: models.ActionPick, MapID: "Haven"},
			},
			m.Team2ID,
			View{Phase: veto.PhaseSideChoice, IsMyTurn: true, CanAct: true},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveView(m, tc.session, tc.actions, tc.user))
		})
	}
}

func TestBuildSnapshot(t *testing.T) {
	m := testMatch()
	s := sessionFor(m, models.StatusInProgress, m.Team2ID)
	actions := []models.VetoAction{{OrderNumber: 1, Action: models.ActionBan, MapID: "Bind"}}

	snap := BuildSnapshot(m, s, actions, m.Team2ID)
	assert.Equal(t, m.MatchID, snap.MatchID)
	assert.True(t, snap.IsMyTurn)
	assert.Equal(t, models.ActionBan, snap.NextAction)
	assert.Equal(t, []string{"Ascent", "Haven"}, snap.RemainingMaps)

	empty := BuildSnapshot(m, nil, nil, m.Team1ID)
	assert.NotNil(t, empty.Actions)
	assert.Nil(t, empty.Session)
	assert.True(t, empty.CanAct)
}

type stubLoader struct {
	match    models.MatchConfig
	matchErr error
	session  *models.VetoSession
	actions  []models.VetoAction
}

func (l stubLoader) Load(_ context.Context, id uuid.UUID) (models.VetoSession, []models.VetoAction, error) {
	if l.session == nil || l.session.ID != id {
		return models.VetoSession{}, nil, veto.ErrSessionNotFound
	}
	return *l.session, l.actions, nil
}

func (l stubLoader) SessionForMatch(context.Context, uuid.UUID) (*models.VetoSession, []models.VetoAction, error) {
	return l.session, l.actions, nil
}

func (l stubLoader) ResolveMatch(context.Context, uuid.UUID) (models.MatchConfig, error) {
	return l.match, l.matchErr
}

func TestLoadSession_OrphanStillRenders(t *testing.T) {
	m := testMatch()
	s := sessionFor(m, models.StatusInProgress, m.Team1ID)
	l := stubLoader{session: s, matchErr: veto.ErrMatchNotFound}

	snap, err := LoadSession(context.Background(), l, s.ID, m.Team1ID)
	require.NoError(t, err)
	assert.True(t, snap.IsMyTurn)
	assert.Equal(t, m.MatchID, snap.MatchID)

	_, err = LoadSession(context.Background(), l, uuid.New(), m.Team1ID)
	assert.ErrorIs(t, err, veto.ErrSessionNotFound)
}

func TestLoadMatch_BeforeSessionExists(t *testing.T) {
	m := testMatch()
	snap, err := LoadMatch(context.Background(), stubLoader{match: m}, m.MatchID, m.Team2ID)
	require.NoError(t, err)
	assert.Equal(t, veto.PhaseDiceRoll, snap.Phase)
	assert.True(t, snap.CanAct)
	assert.False(t, snap.IsMyTurn)
}

func TestRefreshGate(t *testing.T) {
	clock := time.Unix(1000, 0)
	g := newRefreshGate(5*time.Second, func() time.Time { return clock })

	assert.True(t, g.Allow(), "first refresh passes")
	assert.False(t, g.Allow())

	clock = clock.Add(4 * time.Second)
	assert.False(t, g.Allow())

	clock = clock.Add(time.Second)
	assert.True(t, g.Allow())
	assert.False(t, g.Allow())
}
