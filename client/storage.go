package client

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-session-client/internal/config"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/storage/filestore"
	"github.com/jrsteele09/go-session-client/storage/memstore"
	"github.com/jrsteele09/go-session-client/storage/pgstore"
	"github.com/jrsteele09/go-session-client/storage/redisstore"
)

// openStore returns the configured backend. Connections it opens are added to
// c.closers.
func (c *Client) openStore(ctx context.Context, cfg config.Config, o *options) (storage.Store, error) {
	if o.store != nil {
		return o.store, nil
	}

	switch backend := cfg.GetStorageBackend(); backend {
	case config.StorageMemory:
		return memstore.New(), nil
	case config.StorageFile:
		s, err := filestore.New(cfg.GetDataFolder())
		if err != nil {
			return nil, apperrors.Wrapf(err, "file store in %s", cfg.GetDataFolder())
		}
		c.logger.Debug().Str("path", s.Path()).Msg("using file session store")
		return s, nil
	case config.StorageRedis:
		return redisstore.New(c.redisClient(cfg, o)), nil
	case config.StoragePostgres:
		s, pool, err := pgstore.Connect(ctx, cfg.GetDatabaseURL(), cfg.GetAppName())
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error {
			pool.Close()
			return nil
		})
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// redisClient returns the shared Redis client, creating it on first use.
func (c *Client) redisClient(cfg config.StorageConfig, o *options) redis.UniversalClient {
	if o.redis == nil {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		c.closers = append(c.closers, rdb.Close)
		o.redis = rdb
	}
	return o.redis
}
