package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelFor(t *testing.T) {
	id := uuid.MustParse("6f1c1b8e-3c1a-4a53-9d53-0a4f3f1f2d11")
	assert.Equal(t, "veto:match:6f1c1b8e-3c1a-4a53-9d53-0a4f3f1f2d11", channelFor(id))
}

func TestRedisBus_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := ConnectRedis(ctx, addr, 0)
	require.NoError(t, err)
	defer rdb.Close()

	bus := NewRedisBus(rdb, nil)
	match := uuid.New()
	ch, unsubscribe, err := bus.Subscribe(ctx, match)
	require.NoError(t, err)
	defer unsubscribe()

	want := events.Notification{
		Type:      events.ActionRecorded,
		SessionID: uuid.New(),
		MatchID:   match,
		At:        time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, bus.Publish(ctx, want))

	select {
	case got := <-ch:
		assert.Equal(t, want.SessionID, got.SessionID)
		assert.Equal(t, want.Type, got.Type)
		assert.True(t, want.At.Equal(got.At))
	case <-ctx.Done():
		t.Fatal("no notification received")
	}

	unsubscribe()
	_, open := <-ch
	for open {
		_, open = <-ch
	}
}
