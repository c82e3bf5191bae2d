// internal/handlers/audit.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/jason-s-yu/mapveto/internal/veto"
)

type remediateRequest struct {
	SessionIDs []uuid.UUID `json:"session_ids"`
}

// AuditSessionHandler reports the health of one session.
func (a *API) AuditSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuidParam(r, "sessionID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	h, err := a.Auditor.AuditSession(r.Context(), sessionID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// AuditSystemHandler audits every session, or only a tournament's when tournament_id is given.
func (a *API) AuditSystemHandler(w http.ResponseWriter, r *http.Request) {
	var tournamentID *uuid.UUID
	if raw := r.URL.Query().Get("tournament_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid tournament_id")
			return
		}
		tournamentID = &id
	}
	h, err := a.Auditor.AuditSystem(r.Context(), tournamentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// RemediateHandler resets the listed sessions to pending. Per-session failures are reported in
// the body; the request itself succeeds.
func (a *API) RemediateHandler(w http.ResponseWriter, r *http.Request) {
	var req remediateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.SessionIDs) == 0 {
		writeMessage(w, http.StatusBadRequest, "session_ids is required")
		return
	}
	writeJSON(w, http.StatusOK, a.Auditor.Remediate(r.Context(), req.SessionIDs))
}

// PutMatchHandler stores a match config.
func (a *API) PutMatchHandler(w http.ResponseWriter, r *http.Request) {
	var m models.MatchConfig
	if err := decodeJSON(w, r, &m); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if m.MatchID == uuid.Nil || m.TournamentID == uuid.Nil {
		writeMessage(w, http.StatusBadRequest, "match_id and tournament_id are required")
		return
	}
	if err := veto.ValidateTeams(m.Team1ID, m.Team2ID); err != nil {
		a.writeError(w, r, err)
		return
	}
	if _, err := veto.RequiredActionPlan(m.BestOf, m.BestOf); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.Seeder.PutMatch(r.Context(), m); err != nil {
		a.log().Errorf("put match %s: %v", m.MatchID, err)
		writeMessage(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// PutMapPoolHandler replaces a tournament's map pool.
func (a *API) PutMapPoolHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := uuidParam(r, "tournamentID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	var p models.MapPoolConfig
	if err := decodeJSON(w, r, &p); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.TournamentID != uuid.Nil && p.TournamentID != tournamentID {
		writeMessage(w, http.StatusBadRequest, "tournament_id does not match the path")
		return
	}
	p.TournamentID = tournamentID

	seen := make(map[string]struct{}, len(p.MapIDs))
	for _, id := range p.MapIDs {
		if id == "" {
			writeMessage(w, http.StatusUnprocessableEntity, "map ids must not be empty")
			return
		}
		if _, dup := seen[id]; dup {
			writeMessage(w, http.StatusUnprocessableEntity, "map "+id+" listed twice")
			return
		}
		seen[id] = struct{}{}
	}

	if err := a.Seeder.PutMapPool(r.Context(), p); err != nil {
		a.log().Errorf("put map pool %s: %v", tournamentID, err)
		writeMessage(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
