// internal/database/postgres.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/jason-s-yu/mapveto/internal/store"
)

const uniqueViolation = "23505"

// Store is the Postgres implementation of store.Backend and store.Seeder.
type Store struct {
	db *pgxpool.Pool
}

// NewStore wraps an open pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const sessionColumns = `id, match_id, tournament_id, home_team_id, away_team_id, status,
	current_turn_team_id, roll_seed, roll_timestamp, best_of, map_pool,
	created_at, started_at, completed_at`

func scanSession(row pgx.Row) (models.VetoSession, error) {
	var (
		s                models.VetoSession
		home, away, turn *uuid.UUID
		status           string
	)
	err := row.Scan(
		&s.ID, &s.MatchID, &s.TournamentID, &home, &away, &status,
		&turn, &s.RollSeed, &s.RollTimestamp, &s.BestOf, &s.MapPool,
		&s.CreatedAt, &s.StartedAt, &s.CompletedAt,
	)
	if err != nil {
		return models.VetoSession{}, err
	}
	s.Status = models.SessionStatus(status)
	s.HomeTeamID = derefUUID(home)
	s.AwayTeamID = derefUUID(away)
	s.CurrentTurnTeamID = derefUUID(turn)
	return s, nil
}

func derefUUID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

// nullUUID maps uuid.Nil to SQL NULL.
func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (models.VetoSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM veto_sessions WHERE id = $1`
	sess, err := scanSession(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.VetoSession{}, store.ErrNotFound
	}
	if err != nil {
		return models.VetoSession{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// CreateSession inserts a session. A transaction-scoped advisory lock on the match serializes
// concurrent creators so only one session per match is written.
func (s *Store) CreateSession(ctx context.Context, sess models.VetoSession) error {
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, sess.MatchID); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM veto_sessions WHERE match_id = $1)`, sess.MatchID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return store.ErrConflict
		}

		q := `
			INSERT INTO veto_sessions (` + sessionColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`
		_, err := tx.Exec(ctx, q,
			sess.ID, sess.MatchID, sess.TournamentID, nullUUID(sess.HomeTeamID), nullUUID(sess.AwayTeamID), string(sess.Status),
			nullUUID(sess.CurrentTurnTeamID), sess.RollSeed, sess.RollTimestamp, sess.BestOf, sess.MapPool,
			sess.CreatedAt, sess.StartedAt, sess.CompletedAt,
		)
		return err
	})
	if err != nil {
		return mapWriteErr("insert session", err)
	}
	return nil
}

// CompareAndAppendAction locks the session row, checks the expectations against the locked state
// and writes the action and the transition in the same transaction.
func (s *Store) CompareAndAppendAction(ctx context.Context, sessionID uuid.UUID, expectedLastOrder int, expectedTurnTeamID uuid.UUID, action models.VetoAction, t models.SessionTransition) error {
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var turn *uuid.UUID
		err := tx.QueryRow(ctx, `SELECT current_turn_team_id FROM veto_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&turn)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}

		var last int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(order_number), 0) FROM veto_actions WHERE session_id = $1`, sessionID).Scan(&last); err != nil {
			return err
		}
		if last != expectedLastOrder || derefUUID(turn) != expectedTurnTeamID || action.OrderNumber != last+1 {
			return store.ErrConflict
		}

		insert := `
			INSERT INTO veto_actions (id, session_id, order_number, action, map_id, side_choice, performed_by_team_id, performed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := tx.Exec(ctx, insert,
			action.ID, sessionID, action.OrderNumber, string(action.Action), action.MapID,
			string(action.SideChoice), action.PerformedByTeamID, action.PerformedAt,
		); err != nil {
			return err
		}
		return applyTransition(ctx, tx, sessionID, t)
	})
	if err != nil {
		return mapWriteErr("append action", err)
	}
	return nil
}

func applyTransition(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, t models.SessionTransition) error {
	q := `
		UPDATE veto_sessions
		SET status = $2,
			current_turn_team_id = $3,
			roll_timestamp = COALESCE($4, roll_timestamp),
			started_at = COALESCE($5, started_at),
			completed_at = COALESCE($6, completed_at)
		WHERE id = $1
	`
	_, err := tx.Exec(ctx, q, sessionID, string(t.Status), nullUUID(t.CurrentTurnTeamID), t.RollTimestamp, t.StartedAt, t.CompletedAt)
	return err
}

func (s *Store) UpdateStatus(ctx context.Context, sessionID uuid.UUID, expected models.SessionStatus, t models.SessionTransition) error {
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM veto_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		if models.SessionStatus(status) != expected {
			return store.ErrConflict
		}
		return applyTransition(ctx, tx, sessionID, t)
	})
	if err != nil {
		return mapWriteErr("update status", err)
	}
	return nil
}

func (s *Store) ResetSession(ctx context.Context, sessionID uuid.UUID) error {
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE veto_sessions
			SET status = 'pending',
				current_turn_team_id = NULL,
				roll_timestamp = NULL,
				started_at = NULL,
				completed_at = NULL
			WHERE id = $1
		`, sessionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM veto_actions WHERE session_id = $1`, sessionID)
		return err
	})
	if err != nil {
		return mapWriteErr("reset session", err)
	}
	return nil
}

func (s *Store) ListByMatch(ctx context.Context, matchID uuid.UUID) ([]models.VetoSession, error) {
	return s.listSessions(ctx, `WHERE match_id = $1`, matchID)
}

func (s *Store) ListByTournament(ctx context.Context, tournamentID uuid.UUID) ([]models.VetoSession, error) {
	return s.listSessions(ctx, `WHERE tournament_id = $1`, tournamentID)
}

func (s *Store) ListSessions(ctx context.Context) ([]models.VetoSession, error) {
	return s.listSessions(ctx, ``)
}

func (s *Store) listSessions(ctx context.Context, where string, args ...any) ([]models.VetoSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM veto_sessions ` + where + ` ORDER BY created_at, id`
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.VetoSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.VetoAction, error) {
	q := `
		SELECT id, session_id, order_number, action, map_id, side_choice, performed_by_team_id, performed_at
		FROM veto_actions
		WHERE session_id = $1
		ORDER BY order_number
	`
	rows, err := s.db.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []models.VetoAction
	for rows.Next() {
		var (
			a            models.VetoAction
			action, side string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.OrderNumber, &action, &a.MapID, &side, &a.PerformedByTeamID, &a.PerformedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Action = models.ActionType(action)
		a.SideChoice = models.Side(side)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetMatch(ctx context.Context, matchID uuid.UUID) (models.MatchConfig, error) {
	var (
		m            models.MatchConfig
		team1, team2 *uuid.UUID
	)
	err := s.db.QueryRow(ctx,
		`SELECT match_id, tournament_id, team1_id, team2_id, best_of FROM veto_matches WHERE match_id = $1`,
		matchID,
	).Scan(&m.MatchID, &m.TournamentID, &team1, &team2, &m.BestOf)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MatchConfig{}, store.ErrNotFound
	}
	if err != nil {
		return models.MatchConfig{}, fmt.Errorf("get match %s: %w", matchID, err)
	}
	m.Team1ID = derefUUID(team1)
	m.Team2ID = derefUUID(team2)
	return m, nil
}

func (s *Store) GetMapPool(ctx context.Context, tournamentID uuid.UUID) (models.MapPoolConfig, error) {
	var p models.MapPoolConfig
	err := s.db.QueryRow(ctx,
		`SELECT tournament_id, map_ids, active_only FROM veto_map_pools WHERE tournament_id = $1`,
		tournamentID,
	).Scan(&p.TournamentID, &p.MapIDs, &p.ActiveOnly)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MapPoolConfig{}, store.ErrNotFound
	}
	if err != nil {
		return models.MapPoolConfig{}, fmt.Errorf("get map pool %s: %w", tournamentID, err)
	}
	return p, nil
}

func (s *Store) PutMatch(ctx context.Context, m models.MatchConfig) error {
	q := `
		INSERT INTO veto_matches (match_id, tournament_id, team1_id, team2_id, best_of)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (match_id)
		DO UPDATE SET tournament_id = $2, team1_id = $3, team2_id = $4, best_of = $5
	`
	if _, err := s.db.Exec(ctx, q, m.MatchID, m.TournamentID, nullUUID(m.Team1ID), nullUUID(m.Team2ID), m.BestOf); err != nil {
		return fmt.Errorf("upsert match: %w", err)
	}
	return nil
}

func (s *Store) PutMapPool(ctx context.Context, p models.MapPoolConfig) error {
	mapIDs := p.MapIDs
	if mapIDs == nil {
		mapIDs = []string{}
	}
	q := `
		INSERT INTO veto_map_pools (tournament_id, map_ids, active_only)
		VALUES ($1, $2, $3)
		ON CONFLICT (tournament_id)
		DO UPDATE SET map_ids = $2, active_only = $3
	`
	if _, err := s.db.Exec(ctx, q, p.TournamentID, mapIDs, p.ActiveOnly); err != nil {
		return fmt.Errorf("upsert map pool: %w", err)
	}
	return nil
}

// mapWriteErr keeps the store sentinels intact and turns unique violations into conflicts.
func mapWriteErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, store.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var (
	_ store.Backend = (*Store)(nil)
	_ store.Seeder  = (*Store)(nil)
)
