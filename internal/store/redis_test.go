package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/tabpulse/internal/config"
	"github.com/lazypower/tabpulse/internal/model"
)

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "tp:")
	defer r.Close()
	ctx := context.Background()

	require.NoError(t, r.PingContext(ctx))

	_, err := r.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, r.Set(ctx, "k", []byte("v")))
	got, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	raw, err := mr.Get("tp:k")
	require.NoError(t, err)
	assert.Equal(t, "v", raw, "keys are prefixed")

	require.NoError(t, r.Delete(ctx, "k"))
	assert.False(t, mr.Exists("tp:k"))
	assert.Equal(t, "redis:"+mr.Addr(), r.Name())
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default().Storage
	cfg.Backend = "redis"
	cfg.RedisAddr = mr.Addr()

	s, err := Connect(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SaveLeak(ctx, model.Leak{TabID: 3}))
	assert.True(t, mr.Exists(cfg.RedisPrefix+KeyLeaks))
	assert.Len(t, s.MemoryLeaks(ctx), 1)
}

func TestOpenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default().Storage
	cfg.RedisAddr = addr
	_, err := OpenRedis(cfg)
	assert.Error(t, err)
}
