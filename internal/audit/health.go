// internal/audit/health.go
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/jason-s-yu/mapveto/internal/veto"
)

// DefaultStaleAfter is how long an in-progress session may sit idle before it is reported stuck.
const DefaultStaleAfter = 30 * time.Minute

// Severity separates findings that break correctness from advisory ones.
type Severity string

const (
	SeverityIssue   Severity = "issue"
	SeverityWarning Severity = "warning"
)

// Finding codes.
const (
	CodeDuplicateMap     = "duplicate_map"
	CodeMapOutsidePool   = "map_outside_pool"
	CodeTooManyActions   = "too_many_actions"
	CodeMissingTeam      = "missing_team"
	CodeSameTeam         = "same_team"
	CodeOrderGap         = "order_gap"
	CodeIncompleteLog    = "incomplete_log"
	CodeMissingTurnOwner = "missing_turn_owner"
	CodeInvalidFormat    = "invalid_format"
	CodeStuckSession     = "stuck_session"
	CodeUnknownStatus    = "unknown_status"

	CodeOrphanSession     = "orphan_session"
	CodeMultipleSessions  = "multiple_sessions"
	CodeEmptyMapPool      = "empty_map_pool"
	CodeSmallMapPool      = "small_map_pool"
	CodeLowCompletionRate = "low_completion_rate"
	CodeUnfilteredPool    = "unfiltered_map_pool"
)

// Finding is one diagnostic result.
type Finding struct {
	Code      string    `json:"code"`
	Severity  Severity  `json:"severity"`
	SessionID uuid.UUID `json:"session_id,omitempty"`
	Message   string    `json:"message"`
}

// SessionHealth is the audit report for one session.
type SessionHealth struct {
	SessionID           uuid.UUID            `json:"session_id"`
	Status              models.SessionStatus `json:"status"`
	Phase               veto.Phase           `json:"phase"`
	Issues              []Finding            `json:"issues"`
	ActionCount         int                  `json:"action_count"`
	ExpectedActionCount int                  `json:"expected_action_count"`
	IsStuck             bool                 `json:"is_stuck"`
	LastActivity        time.Time            `json:"last_activity"`
}

// Blocking returns the findings with issue severity.
func (h SessionHealth) Blocking() []Finding {
	var out []Finding
	for _, f := range h.Issues {
		if f.Severity == SeverityIssue {
			out = append(out, f)
		}
	}
	return out
}

// EvaluateSession audits a session against its action log. pool is the tournament's configured
// pool; when nil the session's own snapshot of the pool is used.
func EvaluateSession(s models.VetoSession, actions []models.VetoAction, pool *models.MapPoolConfig, now time.Time, staleAfter time.Duration) SessionHealth {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	h := SessionHealth{
		SessionID:           s.ID,
		Status:              s.Status,
		Phase:               veto.CurrentPhase(s, actions),
		ActionCount:         len(actions),
		ExpectedActionCount: veto.ExpectedActionCount(s),
		LastActivity:        lastActivity(s, actions),
	}
	issue := func(code, format string, args ...any) {
		h.Issues = append(h.Issues, Finding{Code: code, Severity: SeverityIssue, SessionID: s.ID, Message: fmt.Sprintf(format, args...)})
	}

	if !s.Status.Valid() {
		issue(CodeUnknownStatus, "stored status %q is not a known status", s.Status)
	}

	switch {
	case s.HomeTeamID == uuid.Nil || s.AwayTeamID == uuid.Nil:
		issue(CodeMissingTeam, "session has no home or away team")
	case s.HomeTeamID == s.AwayTeamID:
		issue(CodeSameTeam, "team %s is both home and away", s.HomeTeamID)
	}

	if h.ExpectedActionCount == 0 {
		issue(CodeInvalidFormat, "best of %d cannot be played on %d maps", s.BestOf, len(s.MapPool))
	} else if h.ActionCount > h.ExpectedActionCount {
		issue(CodeTooManyActions, "%d actions recorded, format allows %d", h.ActionCount, h.ExpectedActionCount)
	}

	allowed := models.MapPoolConfig{TournamentID: s.TournamentID, MapIDs: s.MapPool}
	if pool != nil {
		allowed = *pool
	}
	seen := make(map[string]int)
	for i, a := range actions {
		if a.OrderNumber != i+1 {
			issue(CodeOrderGap, "action %d has order number %d", i+1, a.OrderNumber)
		}
		if a.MapID == "" {
			continue
		}
		seen[a.MapID]++
		if seen[a.MapID] == 2 {
			issue(CodeDuplicateMap, "map %q used more than once", a.MapID)
		}
		if !allowed.Contains(a.MapID) {
			issue(CodeMapOutsidePool, "map %q is not in the configured pool", a.MapID)
		}
	}

	if s.Status == models.StatusCompleted && h.ExpectedActionCount > 0 && h.ActionCount < h.ExpectedActionCount {
		issue(CodeIncompleteLog, "completed with %d of %d actions", h.ActionCount, h.ExpectedActionCount)
	}
	if s.Status == models.StatusInProgress && s.CurrentTurnTeamID == uuid.Nil {
		issue(CodeMissingTurnOwner, "in progress with no team on turn")
	}

	if s.Status == models.StatusInProgress && now.Sub(h.LastActivity) > staleAfter {
		h.IsStuck = true
		h.Issues = append(h.Issues, Finding{
			Code:      CodeStuckSession,
			Severity:  SeverityWarning,
			SessionID: s.ID,
			Message:   fmt.Sprintf("no activity for %s", now.Sub(h.LastActivity).Truncate(time.Minute)),
		})
	}
	return h
}

func lastActivity(s models.VetoSession, actions []models.VetoAction) time.Time {
	last := s.CreatedAt
	if s.StartedAt != nil && s.StartedAt.After(last) {
		last = *s.StartedAt
	}
	if n := len(actions); n > 0 && actions[n-1].PerformedAt.After(last) {
		last = actions[n-1].PerformedAt
	}
	return last
}
