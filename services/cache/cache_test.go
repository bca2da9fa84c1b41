package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feeledger/core"
)

type report struct {
	Total string `json:"total"`
	Count int    `json:"count"`
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, core.NewTestConfig()), srv
}

func testCaches(t *testing.T) map[string]core.Cache {
	rc, _ := newRedisCache(t)
	return map[string]core.Cache{
		"memory": NewMemoryCache(),
		"redis":  rc,
	}
}

func TestCache_GetSet(t *testing.T) {
	ctx := context.Background()
	for name, cache := range testCaches(t) {
		t.Run(name, func(t *testing.T) {
			var got report
			ok, err := cache.Get(ctx, "reports:missing", &got)
			require.NoError(t, err)
			assert.False(t, ok)

			want := report{Total: "1500.00", Count: 3}
			require.NoError(t, cache.Set(ctx, "reports:collection", want, time.Minute))

			ok, err = cache.Get(ctx, "reports:collection", &got)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	for name, cache := range testCaches(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, cache.Set(ctx, "reports:a", report{Count: 1}, time.Minute))
			require.NoError(t, cache.Set(ctx, "reports:b", report{Count: 2}, time.Minute))
			require.NoError(t, cache.Set(ctx, "other:c", report{Count: 3}, time.Minute))

			require.NoError(t, cache.DeletePrefix(ctx, "reports:"))

			var got report
			for _, key := range []string{"reports:a", "reports:b"} {
				ok, err := cache.Get(ctx, key, &got)
				require.NoError(t, err)
				assert.False(t, ok, key)
			}
			ok, err := cache.Get(ctx, "other:c", &got)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestMemoryCache_expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "k", report{Count: 1}, time.Minute))

	var got report
	ok, _ := cache.Get(ctx, "k", &got)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = cache.Get(ctx, "k", &got)
	assert.False(t, ok)
}

func TestRedisCache_expiry(t *testing.T) {
	ctx := context.Background()
	cache, srv := newRedisCache(t)

	require.NoError(t, cache.Set(ctx, "k", report{Count: 1}, time.Minute))
	srv.FastForward(2 * time.Minute)

	var got report
	ok, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_namespace(t *testing.T) {
	ctx := context.Background()
	cache, srv := newRedisCache(t)

	require.NoError(t, cache.Set(ctx, "k", report{Count: 1}, 0))
	assert.True(t, srv.Exists(core.NewTestConfig().AppName+":k"))
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()

	conf.Cache.Driver = DriverMemory
	cache, err := New(conf)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, cache)

	conf.Cache.Driver = "memcached"
	_, err = New(conf)
	assert.Error(t, err)
}
