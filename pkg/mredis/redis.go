package mredis

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/mlog"
	"github.com/redis/go-redis/v9"
)

// RedisTTL is a 300-second expiration constant. Nothing in this package
// applies it; the cache falls back to its own default TTL.
const RedisTTL = 300 * time.Second

// RedisConnection is a hub which deal with redis connections.
type RedisConnection struct {
	ConnectionStringSource string
	Client                 redis.UniversalClient
	Connected              bool
	Logger                 mlog.Logger
}

// Connect keeps a singleton connection with redis.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	rc.Logger.Info("Connecting to redis...")

	opts, err := redis.ParseURL(rc.ConnectionStringSource)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(opts)

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rc.Logger.Errorf("RedisConnection.Ping %v", err)

		return err
	}

	rc.Logger.Info("Connected to redis ✅ ")

	rc.Connected = true

	rc.Client = rdb

	return nil
}

// GetClient returns the redis client, initializing the connection if necessary.
func (rc *RedisConnection) GetClient(ctx context.Context) (redis.UniversalClient, error) {
	if rc.Client == nil {
		if err := rc.Connect(ctx); err != nil {
			rc.Logger.Errorf("ERRCONECT %s", err)
			return nil, err
		}
	}

	return rc.Client, nil
}
