// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ChannelPrefix namespaces the pub/sub channels, one per match.
const ChannelPrefix = "veto:match:"

// ConnectRedis opens a client and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisBus carries veto notifications between server instances over Redis pub/sub.
// Delivery is at most once.
type RedisBus struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

// NewRedisBus wraps a connected client.
func NewRedisBus(rdb *redis.Client, logger *logrus.Logger) *RedisBus {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisBus{rdb: rdb, logger: logger}
}

func channelFor(matchID uuid.UUID) string {
	return ChannelPrefix + matchID.String()
}

// Publish serializes n to JSON and publishes it on the match channel.
func (b *RedisBus) Publish(ctx context.Context, n events.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := b.rdb.Publish(ctx, channelFor(n.MatchID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to '%s': %w", channelFor(n.MatchID), err)
	}
	return nil
}

// Subscribe listens on the match channel. Malformed payloads are logged and skipped.
func (b *RedisBus) Subscribe(ctx context.Context, matchID uuid.UUID) (<-chan events.Notification, func(), error) {
	ps := b.rdb.Subscribe(ctx, channelFor(matchID))
	// wait for the subscription confirmation so no publish after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to '%s': %w", channelFor(matchID), err)
	}

	out := make(chan events.Notification, 16)
	subCtx, stop := context.WithCancel(ctx)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				cancel()
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n events.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					b.logger.WithFields(logrus.Fields{
						"channel": msg.Channel,
					}).Warnf("dropping malformed veto notification: %v", err)
					continue
				}
				select {
				case out <- n:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}
