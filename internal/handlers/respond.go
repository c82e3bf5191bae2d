package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/veto"
)

type errorBody struct {
	Error string    `json:"error"`
	Kind  veto.Kind `json:"kind,omitempty"`
	Retry bool      `json:"retry,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps a veto error to its HTTP status.
func statusFor(kind veto.Kind) int {
	switch kind {
	case veto.KindWrongTurn, veto.KindMapUsed, veto.KindInvalidPhase, veto.KindConflict:
		return http.StatusConflict
	case veto.KindUnknownMap, veto.KindInvalidSide, veto.KindInvalidFormat, veto.KindInvalidTeams:
		return http.StatusUnprocessableEntity
	case veto.KindNotFound:
		return http.StatusNotFound
	case veto.KindStore:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError reports err with its kind. Internal and store failures are logged and not echoed.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := veto.KindOf(err)
	status := statusFor(kind)
	body := errorBody{Error: err.Error(), Kind: kind, Retry: kind == veto.KindConflict}

	switch kind {
	case veto.KindStore:
		a.log().WithField("path", r.URL.Path).Errorf("store unavailable: %v", err)
		body.Error = "storage unavailable"
		body.Retry = true
	case veto.KindInternal:
		a.log().WithField("path", r.URL.Path).Errorf("internal error: %v", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
