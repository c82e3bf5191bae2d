// internal/veto/service.go
package veto

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/events"
	"github.com/jason-s-yu/mapveto/internal/metrics"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/jason-s-yu/mapveto/internal/store"
	"github.com/sirupsen/logrus"
)

// Service runs the veto engine against a store and announces every committed change.
type Service struct {
	Store   store.Backend
	Events  events.Publisher
	Metrics *metrics.Recorder
	Logger  *logrus.Logger
	Now     func() time.Time

	// MaxRetries bounds RecordActionWithRetry. Zero means three.
	MaxRetries uint64
}

// NewService wires a Service with the wall clock.
func NewService(st store.Backend, pub events.Publisher, rec *metrics.Recorder, logger *logrus.Logger) *Service {
	return &Service{
		Store:   st,
		Events:  pub,
		Metrics: rec,
		Logger:  logger,
		Now:     time.Now,
	}
}

// RecordRequest identifies the session a command targets.
type RecordRequest struct {
	SessionID uuid.UUID
	Command   Command
}

// Load returns a session and its ordered action log.
func (s *Service) Load(ctx context.Context, sessionID uuid.UUID) (models.VetoSession, []models.VetoAction, error) {
	sess, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.VetoSession{}, nil, ErrSessionNotFound
		}
		return models.VetoSession{}, nil, storeErr("get session", err)
	}
	actions, err := s.Store.ListBySession(ctx, sessionID)
	if err != nil {
		return models.VetoSession{}, nil, storeErr("list actions", err)
	}
	return sess, actions, nil
}

// RecordAction validates req against the current log and appends it in one compare-and-append.
// A concurrent writer that got there first turns this call into ErrConflictRetry.
func (s *Service) RecordAction(ctx context.Context, req RecordRequest) (models.VetoAction, error) {
	sess, actions, err := s.Load(ctx, req.SessionID)
	if err != nil {
		return models.VetoAction{}, err
	}

	action, t, err := Apply(sess, actions, req.Command, s.now())
	if err != nil {
		s.Metrics.ActionRejected(string(KindOf(err)))
		s.log().WithFields(logrus.Fields{
			"session_id": sess.ID,
			"team_id":    req.Command.ActingTeamID,
			"action":     req.Command.Action,
			"map_id":     req.Command.MapID,
		}).Debugf("rejected veto command: %v", err)
		return models.VetoAction{}, err
	}

	err = s.Store.CompareAndAppendAction(ctx, sess.ID, models.LastOrderNumber(actions), sess.CurrentTurnTeamID, action, t)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			s.Metrics.Conflict()
			return models.VetoAction{}, ErrConflictRetry
		case errors.Is(err, store.ErrNotFound):
			return models.VetoAction{}, ErrSessionNotFound
		}
		return models.VetoAction{}, storeErr("append action", err)
	}

	s.Metrics.ActionRecorded(string(action.Action))
	s.log().WithFields(logrus.Fields{
		"session_id": sess.ID,
		"order":      action.OrderNumber,
		"action":     action.Action,
		"map_id":     action.MapID,
		"team_id":    action.PerformedByTeamID,
	}).Info("veto action recorded")

	s.publish(ctx, events.ActionRecorded, sess)
	if t.Status != sess.Status {
		s.publish(ctx, events.SessionChanged, sess)
	}
	return action, nil
}

// RecordActionWithRetry retries RecordAction while it loses compare-and-append races. The command
// is re-validated against fresh state each time, so a retry after the turn has moved on fails with
// ErrWrongTurn rather than appending twice.
func (s *Service) RecordActionWithRetry(ctx context.Context, req RecordRequest) (models.VetoAction, error) {
	maxRetries := s.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 20 * time.Millisecond
	eb.MaxInterval = 250 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries), ctx)

	var out models.VetoAction
	err := backoff.Retry(func() error {
		a, err := s.RecordAction(ctx, req)
		if err == nil {
			out = a
			return nil
		}
		if errors.Is(err, ErrConflictRetry) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	return out, err
}

// InitializeSession creates the pending session for a match, or returns the one that exists.
func (s *Service) InitializeSession(ctx context.Context, matchID uuid.UUID) (models.VetoSession, error) {
	existing, err := s.Store.ListByMatch(ctx, matchID)
	if err != nil {
		return models.VetoSession{}, storeErr("list by match", err)
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	match, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.VetoSession{}, ErrMatchNotFound
		}
		return models.VetoSession{}, storeErr("get match", err)
	}
	pool, err := s.Store.GetMapPool(ctx, match.TournamentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.VetoSession{}, ErrInvalidFormat
		}
		return models.VetoSession{}, storeErr("get map pool", err)
	}

	sess, err := InitializeSession(match, pool, s.now())
	if err != nil {
		return models.VetoSession{}, err
	}
	if err := s.Store.CreateSession(ctx, sess); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// lost the race to another initializer
			existing, lerr := s.Store.ListByMatch(ctx, matchID)
			if lerr == nil && len(existing) > 0 {
				return existing[0], nil
			}
		}
		return models.VetoSession{}, storeErr("create session", err)
	}

	s.log().WithFields(logrus.Fields{
		"session_id": sess.ID,
		"match_id":   sess.MatchID,
		"home":       sess.HomeTeamID,
		"away":       sess.AwayTeamID,
		"best_of":    sess.BestOf,
	}).Info("veto session created")
	s.publish(ctx, events.SessionChanged, sess)
	return sess, nil
}

// Roll performs the dice roll explicitly. Rolling an already-rolled session returns it unchanged.
func (s *Service) Roll(ctx context.Context, sessionID uuid.UUID) (models.VetoSession, error) {
	sess, _, err := s.Load(ctx, sessionID)
	if err != nil {
		return models.VetoSession{}, err
	}
	if sess.Status != models.StatusPending {
		return sess, nil
	}

	t, err := Roll(sess, s.now())
	if err != nil {
		return models.VetoSession{}, err
	}
	if err := s.Store.UpdateStatus(ctx, sess.ID, models.StatusPending, t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// someone else rolled or acted first
			fresh, _, lerr := s.Load(ctx, sessionID)
			if lerr != nil {
				return models.VetoSession{}, lerr
			}
			return fresh, nil
		}
		return models.VetoSession{}, storeErr("update status", err)
	}

	t.ApplyTo(&sess)
	s.log().WithFields(logrus.Fields{
		"session_id":  sess.ID,
		"first_actor": sess.CurrentTurnTeamID,
	}).Info("veto dice rolled")
	s.publish(ctx, events.SessionChanged, sess)
	return sess, nil
}

// ResolveMatch looks up the match config for a session.
func (s *Service) ResolveMatch(ctx context.Context, matchID uuid.UUID) (models.MatchConfig, error) {
	m, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.MatchConfig{}, ErrMatchNotFound
		}
		return models.MatchConfig{}, storeErr("get match", err)
	}
	return m, nil
}

// SessionForMatch returns the match's session, or nil if none has been created yet.
func (s *Service) SessionForMatch(ctx context.Context, matchID uuid.UUID) (*models.VetoSession, []models.VetoAction, error) {
	list, err := s.Store.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, nil, storeErr("list by match", err)
	}
	if len(list) == 0 {
		return nil, nil, nil
	}
	sess := list[0]
	actions, err := s.Store.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, nil, storeErr("list actions", err)
	}
	return &sess, actions, nil
}

func (s *Service) publish(ctx context.Context, typ events.Type, sess models.VetoSession) {
	if s.Events == nil {
		return
	}
	n := events.Notification{Type: typ, SessionID: sess.ID, MatchID: sess.MatchID, At: s.now()}
	if err := s.Events.Publish(ctx, n); err != nil {
		s.log().WithFields(logrus.Fields{
			"session_id": sess.ID,
			"type":       typ,
		}).Warnf("failed to publish veto notification: %v", err)
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) log() *logrus.Logger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}
