package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/restaurant-order-service/internal/config"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestRedis(t *testing.T) *Redis {
	client := getRedisClient(t)
	prefix := "restaurant-test:" + t.Name() + ":"

	c := NewRedis(client, prefix)
	t.Cleanup(func() { c.FlushPattern(context.Background(), "*") })
	return c
}

func TestRedis_PutGetForget(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	require.NoError(t, c.Put(ctx, "tables:all", []byte(`[{"id":1}]`), time.Minute))

	got, ok, err := c.Get(ctx, "tables:all")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"id":1}]`, string(got))

	ok, err = c.Has(ctx, "tables:all")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Forget(ctx, "tables:all"))
	_, ok, err = c.Get(ctx, "tables:all")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_TTLIsSet(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	require.NoError(t, c.Put(ctx, "order:all", []byte(`[]`), 360*time.Second))

	ttl, err := c.client.TTL(ctx, c.prefix+"order:all").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 350*time.Second)
	assert.LessOrEqual(t, ttl, 360*time.Second)
}

func TestRedis_FlushPattern(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	for _, key := range []string{"order:all", "order:7", "tables:all"} {
		require.NoError(t, c.Put(ctx, key, []byte("x"), time.Minute))
	}

	n, err := c.FlushPattern(ctx, "order:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, _ := c.Has(ctx, "tables:all")
	assert.True(t, ok)
}

func TestRedis_KeysAndTTL(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	require.NoError(t, c.Put(ctx, "tables:all", []byte("x"), time.Hour))
	require.NoError(t, c.Put(ctx, "order:all", []byte("x"), time.Minute))

	keys, err := c.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"order:all", "tables:all"}, keys)

	ttl, err := c.TTL(ctx, "tables:all")
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	ttl, err = c.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Less(t, ttl, time.Duration(0))
}

func TestRedis_UnreachableServerFailsPerCall(t *testing.T) {
	ctx := context.Background()

	// порт 1 на localhost никто не слушает
	client := NewRedisClient(config.Redis{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { client.Close() })
	c := NewRedis(client, "restaurant-test:")

	assert.Error(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "tables:all")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Put(ctx, "tables:all", []byte(`[]`), time.Minute))
}

func TestParseInfo(t *testing.T) {
	raw := "# Server\r\nredis_version:7.2.4\r\n\r\n# Memory\r\nused_memory_human:1.05M\r\n# Keyspace\r\ndb0:keys=3,expires=3,avg_ttl=0\r\n"

	info := parseInfo(raw)
	assert.Equal(t, "7.2.4", info["redis_version"])
	assert.Equal(t, "1.05M", info["used_memory_human"])
	assert.Equal(t, "keys=3,expires=3,avg_ttl=0", info["db0"])
	assert.Len(t, info, 3)
}

func TestRedis_StatAndInfo(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	require.NoError(t, c.Put(ctx, "kitchen_display:all", []byte(`[{"id":1}]`), 360*time.Second))

	stat, err := c.Stat(ctx, "kitchen_display:all")
	require.NoError(t, err)
	assert.Equal(t, "string", stat.Type)
	assert.Equal(t, int64(len(`[{"id":1}]`)), stat.Size)
	assert.Greater(t, stat.TTL, 350*time.Second)

	missing, err := c.Stat(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "none", missing.Type)
	assert.Equal(t, int64(-1), missing.Size)

	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, info["redis_version"])
}
