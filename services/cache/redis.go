package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/feeledger/core"
)

const scanBatch = 100

type RedisCache struct {
	client    redis.UniversalClient
	namespace string
}

var _ core.Cache = (*RedisCache)(nil)

// NewRedisCache namespaces every key with the app name so several deployments can share a server.
func NewRedisCache(client redis.UniversalClient, conf *core.Config) *RedisCache {
	return &RedisCache{client: client, namespace: conf.AppName + ":"}
}

func NewRedisClient(conf *core.Config) redis.UniversalClient {
	return redis.NewClient(&redis.Options{Addr: conf.Cache.RedisAddr})
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "getting %q", key)
	}
	if err = json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrapf(err, "decoding %q", key)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %q", key)
	}
	return errors.Wrapf(c.client.Set(ctx, c.namespace+key, data, ttl).Err(), "setting %q", key)
}

func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, c.namespace+prefix+"*", scanBatch).Iterator()
	keys := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatch {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Wrapf(err, "deleting %q", prefix)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrapf(err, "scanning %q", prefix)
	}
	if len(keys) > 0 {
		return errors.Wrapf(c.client.Del(ctx, keys...).Err(), "deleting %q", prefix)
	}
	return nil
}
