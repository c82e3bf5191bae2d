package veto

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	B = models.ActionBan
	P = models.ActionPick
	S = models.ActionSideChoice
)

func actionsOf(plan []PlanStep) []models.ActionType {
	out := make([]models.ActionType, len(plan))
	for i, st := range plan {
		out[i] = st.Action
	}
	return out
}

func TestRequiredActionPlan(t *testing.T) {
	tests := []struct {
		name     string
		bestOf   int
		mapCount int
		want     []models.ActionType
	}{
		{"bo1 seven maps", 1, 7, []models.ActionType{B, B, B, B, B, B, P, S}},
		{"bo1 single map", 1, 1, []models.ActionType{P, S}},
		{"bo3 seven maps", 3, 7, []models.ActionType{B, B, P, S, B, P, S, B, P, S}},
		{"bo3 six maps", 3, 6, []models.ActionType{B, B, P, S, B, P, S, P, S}},
		{"bo3 four maps", 3, 4, []models.ActionType{B, P, S, P, S, P, S}},
		{"bo3 exact pool", 3, 3, []models.ActionType{P, S, P, S, P, S}},
		{"bo5 seven maps", 5, 7, []models.ActionType{B, B, P, S, P, S, P, S, P, S, P, S}},
		{"bo5 eleven maps", 5, 11, []models.ActionType{B, B, P, S, B, P, S, B, P, S, B, P, S, B, P, S}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := RequiredActionPlan(tc.bestOf, tc.mapCount)
			require.NoError(t, err)
			assert.Equal(t, tc.want, actionsOf(plan))

			for i, st := range plan {
				want := ActorFirst
				if i%2 == 1 {
					want = ActorSecond
				}
				assert.Equal(t, want, st.Actor, "step %d", i)
			}
		})
	}
}

func TestRequiredActionPlan_PicksSplitBetweenTeams(t *testing.T) {
	for _, tc := range []struct{ bestOf, maps int }{
		{3, 6}, {3, 7}, {3, 9}, {5, 10}, {5, 11},
	} {
		plan, err := RequiredActionPlan(tc.bestOf, tc.maps)
		require.NoError(t, err)

		picks := map[Actor]int{}
		for i, st := range plan[:len(plan)-2] {
			if st.Action != P {
				continue
			}
			picks[st.Actor]++
			assert.NotEqual(t, st.Actor, plan[i+1].Actor, "bo%d/%d: side at step %d goes to the other team", tc.bestOf, tc.maps, i+1)
		}
		assert.Equal(t, (tc.bestOf-1)/2, picks[ActorFirst], "bo%d/%d", tc.bestOf, tc.maps)
		assert.Equal(t, (tc.bestOf-1)/2, picks[ActorSecond], "bo%d/%d", tc.bestOf, tc.maps)
	}
}

func TestRequiredActionPlan_BestOfOneCounts(t *testing.T) {
	for n := 1; n <= 9; n++ {
		plan, err := RequiredActionPlan(1, n)
		require.NoError(t, err)
		assert.Len(t, plan, n+1)
		// the pick goes to the team that did not ban last, the side to the other team
		pick := plan[len(plan)-2]
		side := plan[len(plan)-1]
		assert.Equal(t, P, pick.Action)
		assert.NotEqual(t, pick.Actor, side.Actor)
		if n > 1 {
			assert.NotEqual(t, plan[len(plan)-3].Actor, pick.Actor)
		}
	}
}

func TestRequiredActionPlan_Invalid(t *testing.T) {
	for _, tc := range []struct{ bestOf, maps int }{
		{0, 7}, {2, 7}, {7, 9}, {3, 2}, {5, 4}, {1, 0},
	} {
		_, err := RequiredActionPlan(tc.bestOf, tc.maps)
		assert.ErrorIs(t, err, ErrInvalidFormat, "bo%d with %d maps", tc.bestOf, tc.maps)
	}
}

func TestCurrentPhase(t *testing.T) {
	s := models.VetoSession{
		ID:         uuid.New(),
		HomeTeamID: uuid.New(),
		AwayTeamID: uuid.New(),
		Status:     models.StatusPending,
		BestOf:     1,
		MapPool:    []string{"Ascent", "Bind", "Haven"},
	}
	assert.Equal(t, PhaseDiceRoll, CurrentPhase(s, nil))

	s.Status = models.StatusInProgress
	assert.Equal(t, PhaseBanning, CurrentPhase(s, nil))

	log := []models.VetoAction{
		{OrderNumber: 1, Action: B, MapID: "Ascent"},
		{OrderNumber: 2, Action: B, MapID: "Bind"},
	}
	assert.Equal(t, PhaseBanning, CurrentPhase(s, log), "pick step")

	log = append(log, models.VetoAction{OrderNumber: 3, Action: P, MapID: "Haven"})
	assert.Equal(t, PhaseSideChoice, CurrentPhase(s, log))

	log = append(log, models.VetoAction{OrderNumber: 4, Action: S, SideChoice: models.SideAttack})
	assert.Equal(t, PhaseCompleted, CurrentPhase(s, log), "full log completes even before status does")

	s.Status = models.StatusCompleted
	assert.Equal(t, PhaseCompleted, CurrentPhase(s, nil))

	s.Status = models.StatusInProgress
	s.BestOf = 2
	assert.Equal(t, PhaseBanning, CurrentPhase(s, nil), "invalid format falls back to banning")
}

func TestCurrentPhase_Pure(t *testing.T) {
	s := newSession(t, SideHome, 3, sevenMaps)
	var actions []models.VetoAction
	for s.Status != models.StatusCompleted {
		first := CurrentPhase(s, actions)
		assert.Equal(t, first, CurrentPhase(s, actions))

		a, tr, err := Apply(s, actions, nextCommand(t, s, actions), t0)
		require.NoError(t, err)
		actions = append(actions, a)
		tr.ApplyTo(&s)
	}
	assert.Equal(t, CurrentPhase(s, actions), CurrentPhase(s, actions))
}

func TestExpectedActionCount(t *testing.T) {
	s := models.VetoSession{BestOf: 3, MapPool: sevenMaps}
	assert.Equal(t, 10, ExpectedActionCount(s))
	s.BestOf = 4
	assert.Equal(t, 0, ExpectedActionCount(s))
}
