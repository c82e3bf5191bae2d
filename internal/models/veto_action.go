// internal/models/veto_action.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionType is the kind of step a team performs during the veto.
type ActionType string

const (
	ActionBan        ActionType = "ban"
	ActionPick       ActionType = "pick"
	ActionSideChoice ActionType = "side_choice"
)

// Side is the starting side chosen on a side_choice step.
type Side string

const (
	SideAttack  Side = "attack"
	SideDefense Side = "defense"
)

// Valid reports whether s is a selectable side.
func (s Side) Valid() bool {
	return s == SideAttack || s == SideDefense
}

// VetoAction represents a row in the veto_actions table.
type VetoAction struct {
	ID          uuid.UUID  `json:"id"`
	SessionID   uuid.UUID  `json:"session_id"`
	OrderNumber int        `json:"order_number"` // 1-based, gap-free
	Action      ActionType `json:"action"`

	// MapID is empty on side_choice steps; the side applies to the preceding pick.
	MapID      string `json:"map_id,omitempty"`
	SideChoice Side   `json:"side_choice,omitempty"`

	PerformedByTeamID uuid.UUID `json:"performed_by_team_id"`
	PerformedAt       time.Time `json:"performed_at"`
}

// LastOrderNumber returns the order number of the final action, or 0 for an empty log.
func LastOrderNumber(actions []VetoAction) int {
	if len(actions) == 0 {
		return 0
	}
	return actions[len(actions)-1].OrderNumber
}
