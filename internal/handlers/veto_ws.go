// internal/handlers/veto_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/auth"
	"github.com/jason-s-yu/mapveto/internal/middleware"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/jason-s-yu/mapveto/internal/veto"
	"github.com/jason-s-yu/mapveto/internal/view"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "veto"

const writeTimeout = 5 * time.Second

// Message types exchanged on the veto stream.
const (
	msgSnapshot       = "veto_snapshot"
	msgActionRejected = "action_rejected"
	msgError          = "error"
	msgPong           = "pong"

	msgAction      = "action"
	msgRoll        = "roll"
	msgResync      = "resync"
	msgReconnected = "reconnected"
	msgPing        = "ping"
)

type wsClientMessage struct {
	Type       string            `json:"type"`
	Action     models.ActionType `json:"action,omitempty"`
	MapID      string            `json:"map_id,omitempty"`
	SideChoice models.Side       `json:"side_choice,omitempty"`
}

type wsServerMessage struct {
	Type     string         `json:"type"`
	Snapshot *view.Snapshot `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
	Kind     veto.Kind      `json:"kind,omitempty"`
	Retry    bool           `json:"retry,omitempty"`
}

// vetoConn is one consumer of a match's veto stream.
type vetoConn struct {
	match  models.MatchConfig
	claims auth.Claims
	syncer *view.Syncer
	out    chan wsServerMessage
	logger *logrus.Entry
}

// VetoWSHandler streams snapshots of a match's veto and accepts roll and action commands.
// Spectators connect without a token and only receive snapshots.
func (a *API) VetoWSHandler(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	matchID, err := uuidParam(r, "matchID")
	if err != nil {
		http.Error(w, "invalid match_id", http.StatusBadRequest)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: a.originPatterns(),
	})
	if err != nil {
		a.log().Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the veto subprotocol")
		return
	}

	claims, err := wsClaims(r)
	if err != nil {
		a.log().Debugf("veto ws auth failed for %s: %v", remoteAddr, err)
		c.Close(InvalidAuthTokenError, "invalid auth token")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	match, err := a.Service.ResolveMatch(ctx, matchID)
	if err != nil {
		if veto.KindOf(err) == veto.KindNotFound {
			c.Close(InvalidMatchIDError, "match does not exist")
			return
		}
		a.log().Errorf("veto ws match lookup %s: %v", matchID, err)
		c.Close(websocket.StatusInternalError, "match lookup failed")
		return
	}

	notifications, unsubscribe, err := a.Bus.Subscribe(ctx, matchID)
	if err != nil {
		a.log().Errorf("veto ws subscribe %s: %v", matchID, err)
		c.Close(StreamUnavailable, "notifications unavailable")
		return
	}
	defer unsubscribe()

	logger := a.log().WithFields(logrus.Fields{
		"match_id": matchID,
		"team_id":  claims.TeamID,
		"remote":   remoteAddr,
	})
	opts := a.Sync
	opts.OnError = func(err error) {
		logger.Warnf("veto snapshot refresh failed: %v", err)
	}
	conn := &vetoConn{
		match:  match,
		claims: claims,
		syncer: view.NewSyncer(func(ctx context.Context) (view.Snapshot, error) {
			return view.LoadMatch(ctx, a.Service, matchID, claims.TeamID)
		}, opts),
		out:    make(chan wsServerMessage, 8),
		logger: logger,
	}

	middleware.LogWebSocketConnect(a.log(), remoteAddr, matchID.String())

	go conn.syncer.Run(ctx, notifications)
	go vetoWritePump(ctx, cancel, c, conn)
	err = a.vetoReadPump(ctx, c, conn)
	cancel()

	middleware.LogWebSocketDisconnect(a.log(), remoteAddr, matchID.String(), err)
	if err == nil {
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// wsClaims authenticates the upgrade request. Browsers cannot set headers on a websocket, so the
// cookie and a token query parameter are accepted as well as a bearer header.
func wsClaims(r *http.Request) (auth.Claims, error) {
	tok, err := auth.TokenFromRequest(r)
	if errors.Is(err, auth.ErrNoToken) {
		tok = r.URL.Query().Get("token")
	}
	if tok == "" {
		return auth.Claims{}, nil
	}
	return auth.AuthenticateJWT(tok)
}

// originPatterns converts the configured origins to the host patterns websocket.Accept expects.
func (a *API) originPatterns() []string {
	if len(a.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	out := make([]string, 0, len(a.AllowedOrigins))
	for _, o := range a.AllowedOrigins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, strings.TrimSuffix(o, "/"))
	}
	return out
}

// vetoReadPump handles incoming commands until the client leaves. A nil return means the client
// closed normally.
func (a *API) vetoReadPump(ctx context.Context, c *websocket.Conn, conn *vetoConn) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			conn.logger.Debugf("ignoring non-text message type %d", typ)
			continue
		}

		var m wsClientMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			conn.send(ctx, wsServerMessage{Type: msgError, Error: "invalid JSON format"})
			continue
		}

		switch m.Type {
		case msgPing:
			conn.send(ctx, wsServerMessage{Type: msgPong})
		case msgResync:
			conn.syncer.Resync()
		case msgReconnected:
			conn.syncer.Reconnected()
		case msgRoll:
			a.handleWSRoll(ctx, conn)
		case msgAction:
			a.handleWSAction(ctx, conn, m)
		default:
			conn.send(ctx, wsServerMessage{Type: msgError, Error: "unknown message type " + m.Type})
		}
	}
}

// ensureSession returns the match's session, creating it on the first command.
func (a *API) ensureSession(ctx context.Context, matchID uuid.UUID) (uuid.UUID, error) {
	sess, _, err := a.Service.SessionForMatch(ctx, matchID)
	if err != nil {
		return uuid.Nil, err
	}
	if sess != nil {
		return sess.ID, nil
	}
	created, err := a.Service.InitializeSession(ctx, matchID)
	if err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}

func (a *API) handleWSRoll(ctx context.Context, conn *vetoConn) {
	if !conn.claims.Admin && !conn.match.HasTeam(conn.claims.TeamID) {
		conn.send(ctx, wsServerMessage{Type: msgActionRejected, Error: "not a participant in this match"})
		return
	}
	sessionID, err := a.ensureSession(ctx, conn.match.MatchID)
	if err == nil {
		_, err = a.Service.Roll(ctx, sessionID)
	}
	if err != nil {
		conn.reject(ctx, err)
		return
	}
	conn.syncer.ActionSubmitted()
}

func (a *API) handleWSAction(ctx context.Context, conn *vetoConn, m wsClientMessage) {
	if !conn.match.HasTeam(conn.claims.TeamID) {
		conn.send(ctx, wsServerMessage{Type: msgActionRejected, Error: "not a participant in this match"})
		return
	}
	sessionID, err := a.ensureSession(ctx, conn.match.MatchID)
	if err != nil {
		conn.reject(ctx, err)
		return
	}
	cmd := veto.Command{
		ActingTeamID: conn.claims.TeamID,
		Action:       m.Action,
		MapID:        m.MapID,
		SideChoice:   m.SideChoice,
	}
	if _, err := a.Service.RecordActionWithRetry(ctx, veto.RecordRequest{SessionID: sessionID, Command: cmd}); err != nil {
		conn.reject(ctx, err)
		return
	}
	conn.syncer.ActionSubmitted()
}

func (conn *vetoConn) reject(ctx context.Context, err error) {
	kind := veto.KindOf(err)
	msg := wsServerMessage{Type: msgActionRejected, Error: err.Error(), Kind: kind, Retry: kind == veto.KindConflict}
	if kind == veto.KindStore || kind == veto.KindInternal {
		conn.logger.Errorf("veto command failed: %v", err)
		msg.Error = "command could not be processed"
		msg.Retry = kind == veto.KindStore
	}
	conn.send(ctx, msg)
}

func (conn *vetoConn) send(ctx context.Context, m wsServerMessage) {
	select {
	case conn.out <- m:
	case <-ctx.Done():
	}
}

// vetoWritePump serializes snapshots and replies onto the socket. A write failure ends the
// connection.
func vetoWritePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, conn *vetoConn) {
	defer cancel()
	snapshots := conn.syncer.Snapshots()
	for {
		var m wsServerMessage
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			m = wsServerMessage{Type: msgSnapshot, Snapshot: &snap}
		case m = <-conn.out:
		}

		wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, c, m)
		wcancel()
		if err != nil {
			if ctx.Err() == nil {
				conn.logger.Warnf("veto ws write failed: %v", err)
			}
			return
		}
	}
}
