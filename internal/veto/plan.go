// internal/veto/plan.go
package veto

import (
	"fmt"

	"github.com/jason-s-yu/mapveto/internal/models"
)

// Actor identifies which team performs a plan step, relative to the dice roll.
type Actor int

const (
	ActorFirst  Actor = iota // the team that won the roll
	ActorSecond
)

// PlanStep is one required action in a session's veto.
type PlanStep struct {
	Action models.ActionType
	Actor  Actor
}

// maxOpeningBans caps the bans made before the first pick in a multi-map series.
const maxOpeningBans = 2

// RequiredActionPlan returns the ordered steps a session with the given format must complete.
//
// Best of one bans down to a single map, then picks it and chooses a side. Longer series open with
// up to two bans, then play a pick and side choice for every map but the last. While bans remain,
// one is placed between consecutive pick pairs so the next pick moves to the other team. Leftover
// bans follow, then the decider pick and its side. Actors strictly alternate from the first step
// to the last.
func RequiredActionPlan(bestOf, mapCount int) ([]PlanStep, error) {
	switch bestOf {
	case 1, 3, 5:
	default:
		return nil, fmt.Errorf("%w: best of %d", ErrInvalidFormat, bestOf)
	}
	if mapCount < bestOf {
		return nil, fmt.Errorf("%w: %d maps for best of %d", ErrInvalidFormat, mapCount, bestOf)
	}

	bans := mapCount - bestOf
	opening := bans
	if bestOf > 1 && opening > maxOpeningBans {
		opening = maxOpeningBans
	}
	spare := bans - opening

	var kinds []models.ActionType
	for i := 0; i < opening; i++ {
		kinds = append(kinds, models.ActionBan)
	}
	for i := 0; i < bestOf-1; i++ {
		if i > 0 && spare > 0 {
			kinds = append(kinds, models.ActionBan)
			spare--
		}
		kinds = append(kinds, models.ActionPick, models.ActionSideChoice)
	}
	for ; spare > 0; spare-- {
		kinds = append(kinds, models.ActionBan)
	}
	kinds = append(kinds, models.ActionPick, models.ActionSideChoice)

	plan := make([]PlanStep, len(kinds))
	for i, k := range kinds {
		actor := ActorFirst
		if i%2 == 1 {
			actor = ActorSecond
		}
		plan[i] = PlanStep{Action: k, Actor: actor}
	}
	return plan, nil
}

// planFor builds the plan for a stored session, rejecting pools with repeated maps.
func planFor(s models.VetoSession) ([]PlanStep, error) {
	seen := make(map[string]struct{}, len(s.MapPool))
	for _, id := range s.MapPool {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: map %q listed twice", ErrInvalidFormat, id)
		}
		seen[id] = struct{}{}
	}
	return RequiredActionPlan(s.BestOf, len(s.MapPool))
}

// ExpectedActionCount returns the plan length for a session, or 0 if its format is invalid.
func ExpectedActionCount(s models.VetoSession) int {
	plan, err := planFor(s)
	if err != nil {
		return 0
	}
	return len(plan)
}
