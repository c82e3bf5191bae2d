// internal/veto/phase.go
package veto

import "github.com/jason-s-yu/mapveto/internal/models"

// Phase is the user-visible stage of a veto. It is always computed, never stored.
type Phase string

const (
	PhaseDiceRoll   Phase = "dice_roll"
	PhaseBanning    Phase = "banning"
	PhaseSideChoice Phase = "side_choice"
	PhaseCompleted  Phase = "completed"
)

// CurrentPhase derives the phase from the stored session and its action log.
// Pick steps report as banning; the client distinguishes them by the next plan step.
func CurrentPhase(s models.VetoSession, actions []models.VetoAction) Phase {
	switch s.Status {
	case models.StatusPending:
		return PhaseDiceRoll
	case models.StatusCompleted:
		return PhaseCompleted
	}

	plan, err := planFor(s)
	if err != nil {
		return PhaseBanning
	}
	if len(actions) >= len(plan) {
		return PhaseCompleted
	}
	if plan[len(actions)].Action == models.ActionSideChoice {
		return PhaseSideChoice
	}
	return PhaseBanning
}

// NextStep returns the plan step awaiting action, or false when none remains.
func NextStep(s models.VetoSession, actions []models.VetoAction) (PlanStep, bool) {
	if s.Status == models.StatusCompleted {
		return PlanStep{}, false
	}
	plan, err := planFor(s)
	if err != nil || len(actions) >= len(plan) {
		return PlanStep{}, false
	}
	return plan[len(actions)], true
}
