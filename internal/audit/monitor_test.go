package audit

import (
	"context"
	"testing"
	"time"

	"github.com/jason-s-yu/mapveto/internal/metrics"
	"github.com/jason-s-yu/mapveto/internal/models"
	"github.com/jason-s-yu/mapveto/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMonitor(t *testing.T) (*Monitor, *store.MemoryStore, *test.Hook) {
	t.Helper()
	mem := store.NewMemoryStore()
	logger, hook := test.NewNullLogger()
	a := New(mem, nil, metrics.NewRecorder(), logger, DefaultStaleAfter)
	a.Now = func() time.Time { return now }
	return &Monitor{Auditor: a, Interval: time.Hour}, mem, hook
}

func TestMonitor_LogsWarningsWithoutRemediating(t *testing.T) {
	m, mem, hook := newMonitor(t)
	f := &auditFixture{auditor: m.Auditor, mem: mem}
	s, actions := inProgress(now.Add(-45 * time.Minute))
	f.seed(t, s, actions, sevenMaps)

	h, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, h.IsHealthy)

	var stuck *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Data["code"] == CodeStuckSession {
			stuck = e
		}
	}
	require.NotNil(t, stuck)
	assert.Equal(t, s.ID, stuck.Data["session_id"])
	assert.Equal(t, "veto audit healthy", hook.LastEntry().Message)

	// still in progress with its log intact
	got, err := mem.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	log, err := mem.ListBySession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestMonitor_BlockingIssuesWarn(t *testing.T) {
	m, mem, hook := newMonitor(t)
	f := &auditFixture{auditor: m.Auditor, mem: mem}
	s, actions := inProgress(now.Add(-time.Minute))
	f.seed(t, s, actions, sevenMaps)
	dup, _ := inProgress(now.Add(-time.Minute))
	dup.MatchID, dup.TournamentID = s.MatchID, s.TournamentID
	dup.CreatedAt = s.CreatedAt.Add(time.Second)
	mem.Restore(dup, nil)

	h, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, h.IsHealthy)

	last := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, last.Level)
	assert.Equal(t, "veto audit found blocking issues", last.Message)
	assert.Equal(t, len(h.Issues), last.Data["issues"])
}

func TestMonitor_RunStopsWithContext(t *testing.T) {
	m, _, hook := newMonitor(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(hook.AllEntries()) > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
