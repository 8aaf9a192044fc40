// Package bootstrap opens the runtime dependencies shared by the server and the seeder.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/docstore"
	"agora/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Runtime holds the opened document store and the Redis client used for rate limiting.
type Runtime struct {
	Store docstore.Store
	// Redis is nil when Redis is unreachable and the store does not need it.
	Redis *redis.Client

	ownsRedis bool
}

// InitRuntime opens the store selected by STORE_DRIVER and wraps it with timeouts, metrics
// and tracing.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}

	var store docstore.Store
	switch cfg.StoreDriver {
	case config.StoreRedis:
		rdb, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis store connection failed: %w", err)
		}
		rt.Redis = rdb
		store = docstore.NewRedisStore(rdb, cfg.RedisKeyPrefix)

	case config.StorePostgres, config.StoreSQLite:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		sqlStore := docstore.NewSQLStore(db)
		if err := sqlStore.Migrate(ctx); err != nil {
			_ = sqlStore.Close()
			return nil, fmt.Errorf("document table migration failed: %w", err)
		}
		store = sqlStore

	case config.StoreMongo:
		db, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("mongo connection failed: %w", err)
		}
		store = docstore.NewMongoStore(db)

	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	rt.Store = docstore.Instrument(store, cfg.StoreDriver, cfg.StoreTimeout())

	if rt.Redis == nil {
		rdb, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "redis unavailable, rate limiting fails open",
				slog.String("error", err.Error()))
		} else {
			rt.Redis = rdb
			rt.ownsRedis = true
		}
	}

	return rt, nil
}

// Close releases the store and, when it was opened separately, the Redis client.
func (r *Runtime) Close() error {
	var errs []error
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	if r.ownsRedis && r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	return errors.Join(errs...)
}
