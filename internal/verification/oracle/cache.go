package oracle

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"challenge-verifier/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// TextCache stores prompt embeddings. Prompt vectors depend only on the model
// and the prompt text, so they can be shared across requests and processes.
// Implementations never fail a request: errors count as misses.
type TextCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32)
}

// TextCacheKey derives the cache key for a prompt embedded by model.
func TextCacheKey(model, prompt string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, model)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, prompt)
	return hex.EncodeToString(h.Sum(nil))
}

type MemoryTextCache struct {
	mu      sync.RWMutex
	entries map[string][]float32
}

func NewMemoryTextCache() *MemoryTextCache {
	return &MemoryTextCache{entries: make(map[string][]float32)}
}

func (c *MemoryTextCache) Get(_ context.Context, key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return cloneVector(vec), true
}

func (c *MemoryTextCache) Set(_ context.Context, key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cloneVector(vec)
}

// RedisTextCache keeps embeddings in Redis as little-endian float32 blobs.
type RedisTextCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisTextCache(client redis.Cmdable, prefix string, ttl time.Duration, log logger.Logger) *RedisTextCache {
	return &RedisTextCache{client: client, prefix: prefix, ttl: ttl, logger: log}
}

func (c *RedisTextCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("text embedding cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("discarding corrupt text embedding", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	return vec, true
}

func (c *RedisTextCache) Set(ctx context.Context, key string, vec []float32) {
	if err := c.client.Set(ctx, c.prefix+key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Warn("text embedding cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

type tieredTextCache struct {
	local  TextCache
	remote TextCache
}

// NewTieredTextCache reads through local then remote, filling local on a
// remote hit, and writes to both.
func NewTieredTextCache(local, remote TextCache) TextCache {
	return &tieredTextCache{local: local, remote: remote}
}

func (c *tieredTextCache) Get(ctx context.Context, key string) ([]float32, bool) {
	if vec, ok := c.local.Get(ctx, key); ok {
		return vec, true
	}
	vec, ok := c.remote.Get(ctx, key)
	if ok {
		c.local.Set(ctx, key, vec)
	}
	return vec, ok
}

func (c *tieredTextCache) Set(ctx context.Context, key string, vec []float32) {
	c.local.Set(ctx, key, vec)
	c.remote.Set(ctx, key, vec)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	off := 4
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("vector blob too small: %d bytes", len(data))
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*4 {
		return nil, fmt.Errorf("vector length mismatch: header %d, payload %d bytes", length, len(data))
	}
	vec := make([]float32, length)
	for i := 0; i < length; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return vec, nil
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
