// internal/app/app.go wires the configured backends for the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/mapveto/internal/auth"
	"github.com/jason-s-yu/mapveto/internal/cache"
	"github.com/jason-s-yu/mapveto/internal/config"
	"github.com/jason-s-yu/mapveto/internal/database"
	"github.com/jason-s-yu/mapveto/internal/events"
	"github.com/jason-s-yu/mapveto/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Storage is a store backend that also accepts config seeding.
type Storage interface {
	store.Backend
	store.Seeder
}

// connectTimeout bounds how long startup waits for Postgres or Redis to come up.
const connectTimeout = 30 * time.Second

// OpenStore returns the configured store and a func releasing its resources. Postgres is
// retried with backoff while it starts, then migrated.
func OpenStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (Storage, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("using in-memory veto store; state is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	var pool *pgxpool.Pool
	err := retry(ctx, logger, "postgres", func() error {
		var err error
		pool, err = database.ConnectDB(ctx, cfg.DatabaseURL)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("connected to postgres")
	return database.NewStore(pool), pool.Close, nil
}

// OpenBus returns the configured notification bus and a func releasing its resources.
func OpenBus(ctx context.Context, cfg config.Config, logger *logrus.Logger) (events.Bus, func(), error) {
	if cfg.EventBackend == config.BackendMemory {
		return events.NewMemoryBus(), func() {}, nil
	}

	var rdb *redis.Client
	err := retry(ctx, logger, "redis", func() error {
		var err error
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("connected to redis at %s", cfg.RedisAddr)
	return cache.NewRedisBus(rdb, logger), func() { _ = rdb.Close() }, nil
}

// InitAuth loads the JWT keys, generating an ephemeral pair when no paths are configured.
func InitAuth(cfg config.Config, logger *logrus.Logger) error {
	if cfg.JWTPrivateKeyPath == "" || cfg.JWTPublicKeyPath == "" {
		logger.Warn("no JWT key paths configured; generating ephemeral keys")
		return auth.Init(cfg.TokenExpire)
	}
	return auth.InitFromPath(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenExpire)
}

func retry(ctx context.Context, logger *logrus.Logger, what string, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = connectTimeout
	err := backoff.RetryNotify(op, backoff.WithContext(eb, ctx), func(err error, next time.Duration) {
		logger.Warnf("%s not ready, retrying in %s: %v", what, next.Round(time.Millisecond), err)
	})
	if err != nil {
		return fmt.Errorf("connect %s: %w", what, err)
	}
	return nil
}
