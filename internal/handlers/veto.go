// internal/handlers/veto.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/auth"
	"github.com/jason-s-yu/mapveto/internal/middleware"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/jason-s-yu/mapveto/internal/veto"
	"github.com/jason-s-yu/mapveto/internal/view"
)

type recordActionResponse struct {
	Action   models.VetoAction `json:"action"`
	Snapshot view.Snapshot     `json:"snapshot"`
}

// callerTeam is the team the caller views as, or uuid.Nil for spectators.
func callerTeam(r *http.Request) uuid.UUID {
	c, _ := middleware.ClaimsFrom(r.Context())
	return c.TeamID
}

// participant returns the caller's claims if they may act in a match between home and away.
func participant(w http.ResponseWriter, r *http.Request, home, away uuid.UUID) (auth.Claims, bool) {
	c, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return auth.Claims{}, false
	}
	if c.Admin || (c.TeamID != uuid.Nil && (c.TeamID == home || c.TeamID == away)) {
		return c, true
	}
	writeMessage(w, http.StatusForbidden, "not a participant in this match")
	return auth.Claims{}, false
}

// GetMatchHandler returns the snapshot of a match's veto, which may not have started yet.
func (a *API) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuidParam(r, "matchID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := view.LoadMatch(r.Context(), a.Service, matchID, callerTeam(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// InitSessionHandler creates the match's session, or returns the existing one.
func (a *API) InitSessionHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuidParam(r, "matchID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	match, err := a.Service.ResolveMatch(r.Context(), matchID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if _, ok := participant(w, r, match.Team1ID, match.Team2ID); !ok {
		return
	}
	sess, err := a.Service.InitializeSession(r.Context(), matchID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// GetSessionHandler returns the snapshot of one session from the caller's point of view.
func (a *API) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuidParam(r, "sessionID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := view.LoadSession(r.Context(), a.Service, sessionID, callerTeam(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RollHandler performs the dice roll. Rolling twice is harmless.
func (a *API) RollHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuidParam(r, "sessionID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, _, err := a.Service.Load(r.Context(), sessionID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if _, ok := participant(w, r, sess.HomeTeamID, sess.AwayTeamID); !ok {
		return
	}
	sess, err = a.Service.Roll(r.Context(), sessionID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// RecordActionHandler records the caller's team's next veto step. Admins may act for either team
// by naming it in acting_team_id.
func (a *API) RecordActionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuidParam(r, "sessionID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	var cmd veto.Command
	if err := decodeJSON(w, r, &cmd); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	c, ok := middleware.ClaimsFrom(r.Context())
	switch {
	case !ok:
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	case c.Admin && cmd.ActingTeamID != uuid.Nil:
	case c.TeamID == uuid.Nil:
		writeMessage(w, http.StatusForbidden, "token carries no team")
		return
	case cmd.ActingTeamID != uuid.Nil && cmd.ActingTeamID != c.TeamID:
		writeMessage(w, http.StatusForbidden, "cannot act for another team")
		return
	default:
		cmd.ActingTeamID = c.TeamID
	}

	action, err := a.Service.RecordActionWithRetry(r.Context(), veto.RecordRequest{SessionID: sessionID, Command: cmd})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	snap, err := view.LoadSession(r.Context(), a.Service, sessionID, cmd.ActingTeamID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordActionResponse{Action: action, Snapshot: snap})
}
