// internal/audit/auditor.go
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/events"
	"github.com/jason-s-yu/mapveto/internal/metrics"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/jason-s-yu/mapveto/internal/store"
	"github.com/jason-s-yu/mapveto/internal/veto"
	"github.com/sirupsen/logrus"
)

const (
	minPoolSize            = 3
	lowCompletionThreshold = 0.5
	lowCompletionMinimum   = 5
)

// SystemHealth aggregates session audits for a tournament or the whole deployment.
type SystemHealth struct {
	IsHealthy             bool        `json:"is_healthy"`
	Issues                []Finding   `json:"issues"`
	Warnings              []Finding   `json:"warnings"`
	Recommendations       []string    `json:"recommendations"`
	RemediationCandidates []uuid.UUID `json:"remediation_candidates"`
	SessionCount          int         `json:"session_count"`
	CompletedSessions     int         `json:"completed_sessions"`
	CheckedAt             time.Time   `json:"checked_at"`
}

// RemediationError reports a session that could not be reset.
type RemediationError struct {
	SessionID uuid.UUID `json:"session_id"`
	Err       string    `json:"error"`
}

// RemediationResult summarizes a Remediate call.
type RemediationResult struct {
	Cleaned int                `json:"cleaned"`
	Errors  []RemediationError `json:"errors"`
}

// Auditor inspects sessions read-only. Remediate is its only write path.
type Auditor struct {
	Store      store.Backend
	Events     events.Publisher
	Metrics    *metrics.Recorder
	Logger     *logrus.Logger
	StaleAfter time.Duration
	Now        func() time.Time
}

// New returns an Auditor using the wall clock.
func New(st store.Backend, pub events.Publisher, rec *metrics.Recorder, logger *logrus.Logger, staleAfter time.Duration) *Auditor {
	return &Auditor{
		Store:      st,
		Events:     pub,
		Metrics:    rec,
		Logger:     logger,
		StaleAfter: staleAfter,
		Now:        time.Now,
	}
}

// AuditSession loads one session and evaluates it.
func (a *Auditor) AuditSession(ctx context.Context, sessionID uuid.UUID) (SessionHealth, error) {
	s, err := a.Store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SessionHealth{}, veto.ErrSessionNotFound
		}
		return SessionHealth{}, &veto.StoreError{Op: "get session", Err: err}
	}
	actions, err := a.Store.ListBySession(ctx, sessionID)
	if err != nil {
		return SessionHealth{}, &veto.StoreError{Op: "list actions", Err: err}
	}
	pool, err := a.pool(ctx, s.TournamentID)
	if err != nil {
		return SessionHealth{}, err
	}
	return EvaluateSession(s, actions, pool, a.now(), a.StaleAfter), nil
}

// AuditSystem audits every session in scope. A nil tournamentID covers all sessions.
func (a *Auditor) AuditSystem(ctx context.Context, tournamentID *uuid.UUID) (SystemHealth, error) {
	var (
		sessions []models.VetoSession
		err      error
	)
	if tournamentID != nil {
		sessions, err = a.Store.ListByTournament(ctx, *tournamentID)
	} else {
		sessions, err = a.Store.ListSessions(ctx)
	}
	if err != nil {
		return SystemHealth{}, &veto.StoreError{Op: "list sessions", Err: err}
	}

	now := a.now()
	out := SystemHealth{SessionCount: len(sessions), CheckedAt: now}

	pools := make(map[uuid.UUID]*models.MapPoolConfig)
	var tournaments []uuid.UUID
	if tournamentID != nil {
		tournaments = append(tournaments, *tournamentID)
	}
	byMatch := make(map[uuid.UUID][]uuid.UUID)
	orphans, stuck := 0, 0

	for _, s := range sessions {
		if s.Status == models.StatusCompleted {
			out.CompletedSessions++
		}
		byMatch[s.MatchID] = append(byMatch[s.MatchID], s.ID)

		pool, seen := pools[s.TournamentID]
		if !seen {
			pool, err = a.pool(ctx, s.TournamentID)
			if err != nil {
				return SystemHealth{}, err
			}
			pools[s.TournamentID] = pool
			if tournamentID == nil || *tournamentID != s.TournamentID {
				tournaments = append(tournaments, s.TournamentID)
			}
		}

		actions, err := a.Store.ListBySession(ctx, s.ID)
		if err != nil {
			return SystemHealth{}, &veto.StoreError{Op: "list actions", Err: err}
		}
		h := EvaluateSession(s, actions, pool, now, a.StaleAfter)
		blocking := h.Blocking()
		out.Issues = append(out.Issues, blocking...)
		for _, f := range h.Issues {
			if f.Severity != SeverityIssue {
				out.Warnings = append(out.Warnings, f)
			}
		}
		if len(blocking) > 0 {
			out.RemediationCandidates = append(out.RemediationCandidates, s.ID)
		}
		if h.IsStuck {
			stuck++
		}

		if _, err := a.Store.GetMatch(ctx, s.MatchID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return SystemHealth{}, &veto.StoreError{Op: "get match", Err: err}
			}
			orphans++
			out.Warnings = append(out.Warnings, Finding{
				Code:      CodeOrphanSession,
				Severity:  SeverityWarning,
				SessionID: s.ID,
				Message:   fmt.Sprintf("match %s no longer exists", s.MatchID),
			})
		}
	}

	matchIDs := make([]uuid.UUID, 0, len(byMatch))
	for id, ids := range byMatch {
		if len(ids) > 1 {
			matchIDs = append(matchIDs, id)
		}
	}
	sort.Slice(matchIDs, func(i, j int) bool { return matchIDs[i].String() < matchIDs[j].String() })
	for _, id := range matchIDs {
		ids := byMatch[id]
		// the first session created is treated as canonical
		for _, dup := range ids[1:] {
			out.Issues = append(out.Issues, Finding{
				Code:      CodeMultipleSessions,
				Severity:  SeverityIssue,
				SessionID: dup,
				Message:   fmt.Sprintf("match %s has %d sessions", id, len(ids)),
			})
		}
	}

	for _, tid := range tournaments {
		pool, seen := pools[tid]
		if !seen {
			pool, err = a.pool(ctx, tid)
			if err != nil {
				return SystemHealth{}, err
			}
			pools[tid] = pool
		}
		switch {
		case pool == nil || len(pool.MapIDs) == 0:
			out.Issues = append(out.Issues, Finding{
				Code:     CodeEmptyMapPool,
				Severity: SeverityIssue,
				Message:  fmt.Sprintf("tournament %s has no active maps", tid),
			})
			out.Recommendations = append(out.Recommendations, fmt.Sprintf("Configure an active map pool for tournament %s", tid))
		case len(pool.MapIDs) < minPoolSize:
			out.Warnings = append(out.Warnings, Finding{
				Code:     CodeSmallMapPool,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("tournament %s has only %d active maps", tid, len(pool.MapIDs)),
			})
			out.Recommendations = append(out.Recommendations, fmt.Sprintf("Add maps to the pool of tournament %s", tid))
		case !pool.ActiveOnly:
			out.Warnings = append(out.Warnings, Finding{
				Code:     CodeUnfilteredPool,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("tournament %s pool is not restricted to active maps", tid),
			})
			out.Recommendations = append(out.Recommendations, fmt.Sprintf("Remove retired maps from the pool of tournament %s and mark it active only", tid))
		}
	}

	if out.SessionCount >= lowCompletionMinimum {
		rate := float64(out.CompletedSessions) / float64(out.SessionCount)
		if rate < lowCompletionThreshold {
			out.Warnings = append(out.Warnings, Finding{
				Code:     CodeLowCompletionRate,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("only %d of %d sessions completed", out.CompletedSessions, out.SessionCount),
			})
		}
	}

	if n := len(out.RemediationCandidates); n > 0 {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf("Remediate %d session(s) with blocking issues", n))
	}
	if stuck > 0 {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf("Contact teams in %d stuck session(s) or remediate them", stuck))
	}
	if orphans > 0 {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf("Review %d session(s) whose match was removed", orphans))
	}
	if len(matchIDs) > 0 {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf("Resolve duplicate sessions on %d match(es)", len(matchIDs)))
	}

	out.IsHealthy = len(out.Issues) == 0
	a.Metrics.AuditCompleted(len(out.Issues), len(out.Warnings))
	return out, nil
}

// Remediate resets each session to pending, clearing its turn owner and action log. Sessions
// already in that state count as cleaned without being written.
func (a *Auditor) Remediate(ctx context.Context, sessionIDs []uuid.UUID) RemediationResult {
	res := RemediationResult{}
	done := make(map[uuid.UUID]bool, len(sessionIDs))

	for _, id := range sessionIDs {
		if done[id] {
			continue
		}
		done[id] = true

		if err := a.remediateOne(ctx, id); err != nil {
			res.Errors = append(res.Errors, RemediationError{SessionID: id, Err: err.Error()})
			a.Metrics.Remediation("failed")
			a.log().WithFields(logrus.Fields{"session_id": id}).Warnf("remediation failed: %v", err)
			continue
		}
		res.Cleaned++
		a.Metrics.Remediation("cleaned")
	}
	return res
}

func (a *Auditor) remediateOne(ctx context.Context, id uuid.UUID) error {
	s, err := a.Store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return veto.ErrSessionNotFound
		}
		return &veto.StoreError{Op: "get session", Err: err}
	}
	actions, err := a.Store.ListBySession(ctx, id)
	if err != nil {
		return &veto.StoreError{Op: "list actions", Err: err}
	}
	if s.Status == models.StatusPending && s.CurrentTurnTeamID == uuid.Nil && len(actions) == 0 {
		return nil
	}

	if err := a.Store.ResetSession(ctx, id); err != nil {
		return &veto.StoreError{Op: "reset session", Err: err}
	}
	a.log().WithFields(logrus.Fields{
		"session_id":      id,
		"match_id":        s.MatchID,
		"previous_status": s.Status,
		"cleared_actions": len(actions),
	}).Info("veto session reset to pending")

	if a.Events != nil {
		n := events.Notification{Type: events.SessionChanged, SessionID: id, MatchID: s.MatchID, At: a.now()}
		if err := a.Events.Publish(ctx, n); err != nil {
			a.log().WithFields(logrus.Fields{"session_id": id}).Warnf("failed to publish reset: %v", err)
		}
	}
	return nil
}

func (a *Auditor) pool(ctx context.Context, tournamentID uuid.UUID) (*models.MapPoolConfig, error) {
	p, err := a.Store.GetMapPool(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, &veto.StoreError{Op: "get map pool", Err: err}
	}
	return &p, nil
}

func (a *Auditor) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Auditor) log() *logrus.Logger {
	if a.Logger == nil {
		return logrus.StandardLogger()
	}
	return a.Logger
}
