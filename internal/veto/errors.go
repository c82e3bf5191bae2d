// internal/veto/errors.go
package veto

import (
	"errors"
	"fmt"
)

// Protocol violations. These are the caller's fault and are never retried.
var (
	ErrInvalidTeams          = errors.New("session teams are missing or identical")
	ErrWrongTurn             = errors.New("not this team's turn")
	ErrMapAlreadyUsed        = errors.New("map already banned or picked")
	ErrInvalidActionForPhase = errors.New("action not allowed in current phase")
	ErrUnknownMap            = errors.New("map is not in the session's pool")
	ErrInvalidSide           = errors.New("side must be attack or defense")
	ErrInvalidFormat         = errors.New("map pool cannot support the match format")
	ErrSessionNotFound       = errors.New("veto session not found")
	ErrMatchNotFound         = errors.New("match not found")
)

// ErrConflictRetry is returned when another writer appended to the log between our read and our
// write. The caller should reload and decide again.
var ErrConflictRetry = errors.New("session changed concurrently, retry")

// StoreError wraps an infrastructure failure from the persistence layer.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("veto store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// Kind is a stable classification of an error for transports and metrics.
type Kind string

const (
	KindNone          Kind = ""
	KindInvalidTeams  Kind = "invalid_teams"
	KindWrongTurn     Kind = "wrong_turn"
	KindMapUsed       Kind = "map_already_used"
	KindInvalidPhase  Kind = "invalid_action_for_phase"
	KindUnknownMap    Kind = "unknown_map"
	KindInvalidSide   Kind = "invalid_side"
	KindInvalidFormat Kind = "invalid_format"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict_retry"
	KindStore         Kind = "store_unavailable"
	KindInternal      Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidTeams, KindInvalidTeams},
	{ErrWrongTurn, KindWrongTurn},
	{ErrMapAlreadyUsed, KindMapUsed},
	{ErrInvalidActionForPhase, KindInvalidPhase},
	{ErrUnknownMap, KindUnknownMap},
	{ErrInvalidSide, KindInvalidSide},
	{ErrInvalidFormat, KindInvalidFormat},
	{ErrSessionNotFound, KindNotFound},
	{ErrMatchNotFound, KindNotFound},
	{ErrConflictRetry, KindConflict},
}

// KindOf classifies err. Unrecognized errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	var se *StoreError
	if errors.As(err, &se) {
		return KindStore
	}
	return KindInternal
}

// IsProtocolViolation reports whether err was caused by an invalid request rather than by
// contention or infrastructure.
func IsProtocolViolation(err error) bool {
	switch KindOf(err) {
	case KindNone, KindConflict, KindStore, KindInternal, KindNotFound:
		return false
	}
	return true
}
