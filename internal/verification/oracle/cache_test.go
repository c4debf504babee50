package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"challenge-verifier/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextCacheKey(t *testing.T) {
	a := TextCacheKey("clip-b32", "a person running")
	assert.Len(t, a, 40)
	assert.Equal(t, a, TextCacheKey("clip-b32", "a person running"))
	assert.NotEqual(t, a, TextCacheKey("clip-l14", "a person running"))
	assert.NotEqual(t, a, TextCacheKey("clip-b32", "a person reading"))
}

func TestMemoryTextCache_Copies(t *testing.T) {
	c := NewMemoryTextCache()
	ctx := context.Background()

	vec := []float32{1, 2, 3}
	c.Set(ctx, "k", vec)
	vec[0] = 99

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)

	got[1] = 42
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, []float32{1, 2, 3}, again)

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestRedisTextCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisTextCache(client, "test:", time.Hour, logger.NewTestLogger(t))
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "k", []float32{0.5, -0.25, 1})
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, -0.25, 1}, got)

	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Hour, mr.TTL("test:k"))
}

func TestRedisTextCache_CorruptValueIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("p:k", "xy"))
	c := NewRedisTextCache(client, "p:", 0, logger.NewNoOpLogger())

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestRedisTextCache_ErrorsDegradeToMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisTextCache(client, "p:", time.Minute, logger.NewNoOpLogger())
	ctx := context.Background()

	mock.ExpectGet("p:k").SetErr(errors.New("connection refused"))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	mock.ExpectSet("p:k", encodeVector([]float32{1}), time.Minute).SetErr(errors.New("READONLY"))
	assert.NotPanics(t, func() { c.Set(ctx, "k", []float32{1}) })

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTieredTextCache_FillsLocalFromRemote(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryTextCache()
	remote := NewMemoryTextCache()
	remote.Set(ctx, "k", []float32{7})

	c := NewTieredTextCache(local, remote)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []float32{7}, got)
	_, ok = local.Get(ctx, "k")
	assert.True(t, ok)

	c.Set(ctx, "n", []float32{8})
	_, ok = remote.Get(ctx, "n")
	assert.True(t, ok)
}

func TestDecodeVector_Errors(t *testing.T) {
	_, err := decodeVector([]byte{1})
	assert.Error(t, err)

	blob := encodeVector([]float32{1, 2})
	_, err = decodeVector(blob[:len(blob)-1])
	assert.Error(t, err)
}
