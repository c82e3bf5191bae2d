// internal/audit/monitor.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultInterval is how often a Monitor audits when no interval is set.
const DefaultInterval = 5 * time.Minute

// Monitor periodically audits the system and logs what it finds. It only reads; remediation
// stays an explicit admin decision.
type Monitor struct {
	Auditor      *Auditor
	Interval     time.Duration
	TournamentID *uuid.UUID
}

// Run audits once immediately and then on every tick until ctx ends. Failed runs are logged and
// retried on the next tick.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce performs one audit and logs it.
func (m *Monitor) RunOnce(ctx context.Context) (SystemHealth, error) {
	logger := m.Auditor.log()
	h, err := m.Auditor.AuditSystem(ctx, m.TournamentID)
	if err != nil {
		if ctx.Err() == nil {
			logger.Errorf("veto audit failed: %v", err)
		}
		return SystemHealth{}, err
	}

	for _, f := range h.Issues {
		logger.WithFields(findingFields(f)).Warn(f.Message)
	}
	for _, f := range h.Warnings {
		logger.WithFields(findingFields(f)).Info(f.Message)
	}
	for _, r := range h.Recommendations {
		logger.WithField("recommendation", true).Info(r)
	}

	entry := logger.WithFields(logrus.Fields{
		"sessions":               h.SessionCount,
		"completed":              h.CompletedSessions,
		"issues":                 len(h.Issues),
		"warnings":               len(h.Warnings),
		"remediation_candidates": len(h.RemediationCandidates),
	})
	if h.IsHealthy {
		entry.Info("veto audit healthy")
	} else {
		entry.Warn("veto audit found blocking issues")
	}
	return h, nil
}

func findingFields(f Finding) logrus.Fields {
	fields := logrus.Fields{
		"code":     f.Code,
		"severity": f.Severity,
	}
	if f.SessionID != uuid.Nil {
		fields["session_id"] = f.SessionID
	}
	return fields
}
