package veto

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sevenMaps = []string{"Ascent", "Bind", "Haven", "Split", "Icebox", "Breeze", "Fracture"}

var t0 = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

// matchWithFirstActor draws random IDs until the roll favors want.
func matchWithFirstActor(t *testing.T, want TeamSide, bestOf int) models.MatchConfig {
	t.Helper()
	for i := 0; i < 1000; i++ {
		m := models.MatchConfig{
			MatchID:      uuid.New(),
			TournamentID: uuid.New(),
			Team1ID:      uuid.New(),
			Team2ID:      uuid.New(),
			BestOf:       bestOf,
		}
		if DetermineFirstActor(RollSeedFor(m.MatchID, m.Team1ID, m.Team2ID)) == want {
			return m
		}
	}
	t.Fatalf("no match rolled %s in 1000 draws", want)
	return models.MatchConfig{}
}

func newSession(t *testing.T, first TeamSide, bestOf int, pool []string) models.VetoSession {
	t.Helper()
	m := matchWithFirstActor(t, first, bestOf)
	s, err := InitializeSession(m, models.MapPoolConfig{TournamentID: m.TournamentID, MapIDs: pool}, t0)
	require.NoError(t, err)
	return s
}

// nextCommand builds a valid command for whatever step the session is waiting on.
func nextCommand(t *testing.T, s models.VetoSession, actions []models.VetoAction) Command {
	t.Helper()
	step, ok := NextStep(s, actions)
	require.True(t, ok, "session has no next step")

	turn := s.CurrentTurnTeamID
	if s.Status == models.StatusPending {
		turn = FirstActorTeam(s)
	}
	cmd := Command{ActingTeamID: turn, Action: step.Action}
	if step.Action == models.ActionSideChoice {
		cmd.SideChoice = models.SideDefense
	} else {
		cmd.MapID = RemainingMaps(s, actions)[0]
	}
	return cmd
}

// playOut drives s to completion, applying each transition the way the store would.
func playOut(t *testing.T, s models.VetoSession) (models.VetoSession, []models.VetoAction) {
	t.Helper()
	var actions []models.VetoAction
	now := t0
	for s.Status != models.StatusCompleted {
		now = now.Add(10 * time.Second)
		a, tr, err := Apply(s, actions, nextCommand(t, s, actions), now)
		require.NoError(t, err)
		actions = append(actions, a)
		tr.ApplyTo(&s)
	}
	return s, actions
}

func TestInitializeSession(t *testing.T) {
	m := models.MatchConfig{MatchID: uuid.New(), TournamentID: uuid.New(), Team1ID: uuid.New(), Team2ID: uuid.New(), BestOf: 1}
	pool := models.MapPoolConfig{TournamentID: m.TournamentID, MapIDs: sevenMaps}

	s, err := InitializeSession(m, pool, t0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, s.Status)
	assert.Equal(t, uuid.Nil, s.CurrentTurnTeamID)
	assert.Equal(t, m.Team1ID, s.HomeTeamID)
	assert.Equal(t, m.Team2ID, s.AwayTeamID)
	assert.Equal(t, RollSeedFor(m.MatchID, m.Team1ID, m.Team2ID), s.RollSeed)
	assert.Equal(t, sevenMaps, s.MapPool)
	assert.Nil(t, s.StartedAt)

	// the session keeps its own copy of the pool
	pool.MapIDs[0] = "Lotus"
	assert.Equal(t, "Ascent", s.MapPool[0])
	pool.MapIDs[0] = "Ascent"
}

func TestInitializeSession_InvalidTeams(t *testing.T) {
	team := uuid.New()
	pool := models.MapPoolConfig{MapIDs: sevenMaps}

	_, err := InitializeSession(models.MatchConfig{MatchID: uuid.New(), Team1ID: team, Team2ID: team, BestOf: 1}, pool, t0)
	assert.ErrorIs(t, err, ErrInvalidTeams)

	_, err = InitializeSession(models.MatchConfig{MatchID: uuid.New(), Team1ID: team, BestOf: 1}, pool, t0)
	assert.ErrorIs(t, err, ErrInvalidTeams)
}

func TestInitializeSession_InvalidFormat(t *testing.T) {
	m := models.MatchConfig{MatchID: uuid.New(), Team1ID: uuid.New(), Team2ID: uuid.New(), BestOf: 5}
	_, err := InitializeSession(m, models.MapPoolConfig{MapIDs: []string{"Ascent", "Bind", "Haven"}}, t0)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	m.BestOf = 1
	_, err = InitializeSession(m, models.MapPoolConfig{MapIDs: []string{"Ascent", "Ascent"}}, t0)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

// Scenario A: best of one over seven maps with home winning the roll.
func TestApply_BestOfOneFullVeto(t *testing.T) {
	s := newSession(t, SideHome, 1, sevenMaps)
	home, away := s.HomeTeamID, s.AwayTeamID

	done, actions := playOut(t, s)

	require.Len(t, actions, 8)
	for i := 0; i < 6; i++ {
		assert.Equal(t, models.ActionBan, actions[i].Action)
		want := home
		if i%2 == 1 {
			want = away
		}
		assert.Equal(t, want, actions[i].PerformedByTeamID, "ban %d", i+1)
	}
	assert.Equal(t, models.ActionPick, actions[6].Action)
	assert.Equal(t, home, actions[6].PerformedByTeamID)
	assert.Equal(t, "Fracture", actions[6].MapID)
	assert.Equal(t, models.ActionSideChoice, actions[7].Action)
	assert.Equal(t, away, actions[7].PerformedByTeamID)
	assert.Equal(t, models.SideDefense, actions[7].SideChoice)
	assert.Empty(t, actions[7].MapID)

	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, actions[7].PerformedAt, *done.CompletedAt)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.RollTimestamp)
	assert.Equal(t, PhaseCompleted, CurrentPhase(done, actions))
}

func TestApply_AwayWinsRoll(t *testing.T) {
	s := newSession(t, SideAway, 1, sevenMaps)
	_, actions := playOut(t, s)
	assert.Equal(t, s.AwayTeamID, actions[0].PerformedByTeamID)
	assert.Equal(t, s.HomeTeamID, actions[1].PerformedByTeamID)
}

func TestApply_LogInvariantsAllFormats(t *testing.T) {
	for _, bo := range []int{1, 3, 5} {
		s := newSession(t, SideHome, bo, sevenMaps)
		done, actions := playOut(t, s)

		plan, err := RequiredActionPlan(bo, len(sevenMaps))
		require.NoError(t, err)
		require.Len(t, actions, len(plan), "best of %d", bo)
		assert.Equal(t, models.StatusCompleted, done.Status)

		seen := map[string]bool{}
		for i, a := range actions {
			assert.Equal(t, i+1, a.OrderNumber, "gap-free order, best of %d", bo)
			if a.MapID != "" {
				assert.False(t, seen[a.MapID], "map %s repeated", a.MapID)
				seen[a.MapID] = true
			}
			if i > 0 {
				assert.NotEqual(t, actions[i-1].PerformedByTeamID, a.PerformedByTeamID, "turns alternate")
			}
		}
		assert.Len(t, seen, len(sevenMaps))
	}
}

// Scenario B: the away team acts out of turn.
func TestApply_WrongTurn(t *testing.T) {
	s := newSession(t, SideHome, 1, sevenMaps)

	_, _, err := Apply(s, nil, Command{ActingTeamID: s.AwayTeamID, Action: models.ActionBan, MapID: "Bind"}, t0)
	assert.ErrorIs(t, err, ErrWrongTurn)

	a, tr, err := Apply(s, nil, Command{ActingTeamID: s.HomeTeamID, Action: models.ActionBan, MapID: "Bind"}, t0)
	require.NoError(t, err)
	tr.ApplyTo(&s)
	actions := []models.VetoAction{a}

	_, _, err = Apply(s, actions, Command{ActingTeamID: s.HomeTeamID, Action: models.ActionBan, MapID: "Haven"}, t0)
	assert.ErrorIs(t, err, ErrWrongTurn)
	assert.Equal(t, 1, models.LastOrderNumber(actions))

	_, _, err = Apply(s, actions, Command{ActingTeamID: uuid.New(), Action: models.ActionBan, MapID: "Haven"}, t0)
	assert.ErrorIs(t, err, ErrWrongTurn)
}

// Scenario C: a map that was already banned.
func TestApply_MapAlreadyUsed(t *testing.T) {
	s := newSession(t, SideHome, 1, sevenMaps)
	a, tr, err := Apply(s, nil, Command{ActingTeamID: s.HomeTeamID, Action: models.ActionBan, MapID: "Split"}, t0)
	require.NoError(t, err)
	tr.ApplyTo(&s)

	_, _, err = Apply(s, []models.VetoAction{a}, Command{ActingTeamID: s.AwayTeamID, Action: models.ActionBan, MapID: "Split"}, t0)
	assert.ErrorIs(t, err, ErrMapAlreadyUsed)
}

func TestApply_Rejections(t *testing.T) {
	s := newSession(t, SideHome, 1, sevenMaps)
	home := s.HomeTeamID

	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"unknown map", Command{ActingTeamID: home, Action: models.ActionBan, MapID: "Lotus"}, ErrUnknownMap},
		{"missing map", Command{ActingTeamID: home, Action: models.ActionBan}, ErrUnknownMap},
		{"pick during bans", Command{ActingTeamID: home, Action: models.ActionPick, MapID: "Bind"}, ErrInvalidActionForPhase},
		{"side during bans", Command{ActingTeamID: home, Action: models.ActionSideChoice, SideChoice: models.SideAttack}, ErrInvalidActionForPhase},
		{"side on a ban", Command{ActingTeamID: home, Action: models.ActionBan, MapID: "Bind", SideChoice: models.SideAttack}, ErrInvalidSide},
		{"unknown action", Command{ActingTeamID: home, Action: "swap", MapID: "Bind"}, ErrInvalidActionForPhase},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Apply(s, nil, tc.cmd, t0)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestApply_SideChoiceValidation(t *testing.T) {
	s := newSession(t, SideHome, 1, sevenMaps)
	var actions []models.VetoAction
	for i := 0; i < 7; i++ {
		a, tr, err := Apply(s, actions, nextCommand(t, s, actions), t0)
		require.NoError(t, err)
		actions = append(actions, a)
		tr.ApplyTo(&s)
	}
	require.Equal(t, PhaseSideChoice, CurrentPhase(s, actions))

	_, _, err := Apply(s, actions, Command{ActingTeamID: s.CurrentTurnTeamID, Action: models.ActionSideChoice, SideChoice: "left"}, t0)
	assert.ErrorIs(t, err, ErrInvalidSide)

	_, _, err = Apply(s, actions, Command{ActingTeamID: s.CurrentTurnTeamID, Action: models.ActionSideChoice, MapID: "Ascent", SideChoice: models.SideAttack}, t0)
	assert.ErrorIs(t, err, ErrInvalidActionForPhase)

	a, _, err := Apply(s, actions, Command{ActingTeamID: s.CurrentTurnTeamID, Action: models.ActionSideChoice, MapID: actions[6].MapID, SideChoice: models.SideAttack}, t0)
	require.NoError(t, err)
	assert.Empty(t, a.MapID)
	assert.Equal(t, models.SideAttack, a.SideChoice)
}

func TestApply_CompletedSessionRejects(t *testing.T) {
	s := newSession(t, SideHome, 1, sevenMaps)
	done, actions := playOut(t, s)

	_, _, err := Apply(done, actions, Command{ActingTeamID: done.CurrentTurnTeamID, Action: models.ActionBan, MapID: "Ascent"}, t0)
	assert.ErrorIs(t, err, ErrInvalidActionForPhase)

	// an in-progress row whose log is already full is treated the same way
	done.Status = models.StatusInProgress
	_, _, err = Apply(done, actions, Command{ActingTeamID: done.CurrentTurnTeamID, Action: models.ActionBan, MapID: "Ascent"}, t0)
	assert.ErrorIs(t, err, ErrInvalidActionForPhase)
}

func TestApply_PendingAutoRolls(t *testing.T) {
	s := newSession(t, SideAway, 1, sevenMaps)
	now := t0.Add(time.Minute)

	_, tr, err := Apply(s, nil, Command{ActingTeamID: s.AwayTeamID, Action: models.ActionBan, MapID: "Ascent"}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, tr.Status)
	assert.Equal(t, s.HomeTeamID, tr.CurrentTurnTeamID)
	require.NotNil(t, tr.RollTimestamp)
	assert.Equal(t, now, *tr.RollTimestamp)
	require.NotNil(t, tr.StartedAt)
	assert.Nil(t, tr.CompletedAt)
}

func TestRoll(t *testing.T) {
	s := newSession(t, SideAway, 3, sevenMaps)
	tr, err := Roll(s, t0)
	require.NoError(t, err)
	assert.Equal(t, s.AwayTeamID, tr.CurrentTurnTeamID)
	assert.Equal(t, models.StatusInProgress, tr.Status)

	tr.ApplyTo(&s)
	_, err = Roll(s, t0)
	assert.ErrorIs(t, err, ErrInvalidActionForPhase)
}

func TestRemainingMaps(t *testing.T) {
	s := newSession(t, SideHome, 1, []string{"Ascent", "Bind", "Haven"})
	a, _, err := Apply(s, nil, Command{ActingTeamID: s.HomeTeamID, Action: models.ActionBan, MapID: "Bind"}, t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ascent", "Haven"}, RemainingMaps(s, []models.VetoAction{a}))
}
