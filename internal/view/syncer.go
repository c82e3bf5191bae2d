// internal/view/syncer.go
package view

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/events"
	"github.com/jason-s-yu/mapveto/internal/models"
)

// LoadFunc reloads the full snapshot from the authoritative store.
type LoadFunc func(ctx context.Context) (Snapshot, error)

// SyncOptions tunes a Syncer. Zero values take the package defaults.
type SyncOptions struct {
	RefreshCooldown time.Duration
	ConfirmDelay    time.Duration
	OnError         func(error)
}

// Syncer keeps one consumer's snapshot current. Every trigger reloads the whole snapshot; nothing
// is patched incrementally, so duplicated or reordered notifications cannot corrupt it.
// A snapshot is emitted only when it differs from the previous one, or on a forced refresh.
type Syncer struct {
	load         LoadFunc
	out          chan Snapshot
	gate         *RefreshGate
	confirmDelay time.Duration
	onError      func(error)

	reconnect chan struct{}
	submitted chan struct{}
	forced    chan struct{}

	last    fingerprint
	hasLast bool
}

type fingerprint struct {
	sessionID uuid.UUID
	status    models.SessionStatus
	count     int
	lastOrder int
	turn      uuid.UUID
	canAct    bool
}

func fingerprintOf(s Snapshot) fingerprint {
	fp := fingerprint{count: len(s.Actions), lastOrder: models.LastOrderNumber(s.Actions), canAct: s.CanAct}
	if s.Session != nil {
		fp.sessionID = s.Session.ID
		fp.status = s.Session.Status
		fp.turn = s.Session.CurrentTurnTeamID
	}
	return fp
}

// NewSyncer returns a Syncer that is idle until Run is called.
func NewSyncer(load LoadFunc, opts SyncOptions) *Syncer {
	if opts.ConfirmDelay <= 0 {
		opts.ConfirmDelay = DefaultConfirmDelay
	}
	return &Syncer{
		load:         load,
		out:          make(chan Snapshot, 1),
		gate:         NewRefreshGate(opts.RefreshCooldown),
		confirmDelay: opts.ConfirmDelay,
		onError:      opts.OnError,
		reconnect:    make(chan struct{}, 1),
		submitted:    make(chan struct{}, 1),
		forced:       make(chan struct{}, 1),
	}
}

// Snapshots streams emitted snapshots. It is closed when Run returns. The channel holds only the
// newest snapshot; a slow reader skips intermediate ones.
func (s *Syncer) Snapshots() <-chan Snapshot { return s.out }

// Reconnected requests a refresh after the consumer regained connectivity. Requests inside the
// cooldown window are ignored.
func (s *Syncer) Reconnected() { signal(s.reconnect) }

// ActionSubmitted refreshes now and schedules one delayed confirmation refresh. A second
// submission before the confirmation fires pushes the confirmation back instead of adding one.
func (s *Syncer) ActionSubmitted() { signal(s.submitted) }

// Resync re-sends the current snapshot even if it is unchanged.
func (s *Syncer) Resync() { signal(s.forced) }

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Run drives the syncer until ctx ends. notifications may be nil.
func (s *Syncer) Run(ctx context.Context, notifications <-chan events.Notification) {
	defer close(s.out)

	var (
		confirm  *time.Timer
		confirmC <-chan time.Time
	)
	defer func() {
		if confirm != nil {
			confirm.Stop()
		}
	}()

	s.refresh(ctx, true)
	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			s.refresh(ctx, false)

		case <-s.reconnect:
			if s.gate.Allow() {
				s.refresh(ctx, true)
			}

		case <-s.forced:
			s.refresh(ctx, true)

		case <-s.submitted:
			s.refresh(ctx, false)
			if confirm != nil {
				confirm.Stop()
			}
			confirm = time.NewTimer(s.confirmDelay)
			confirmC = confirm.C

		case <-confirmC:
			confirmC = nil
			s.refresh(ctx, false)
		}
	}
}

func (s *Syncer) refresh(ctx context.Context, force bool) {
	snap, err := s.load(ctx)
	if err != nil {
		if s.onError != nil && ctx.Err() == nil {
			s.onError(err)
		}
		return
	}
	fp := fingerprintOf(snap)
	if !force && s.hasLast && fp == s.last {
		return
	}
	s.last, s.hasLast = fp, true

	select {
	case s.out <- snap:
	default:
		// replace the unread snapshot with the newer one
		select {
		case <-s.out:
		default:
		}
		select {
		case s.out <- snap:
		default:
		}
	}
}
