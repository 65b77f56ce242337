package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/logger"
)

const embedKeyPrefix = "libassist:embed:"

// CachedEmbedder memoizes embeddings in Redis. Cache failures are logged and
// fall through to the wrapped provider; they never fail a request.
type CachedEmbedder struct {
	next  core.EmbeddingProvider
	rdb   *redis.Client
	model string
	ttl   time.Duration
	log   logger.Logger
}

func NewCachedEmbedder(next core.EmbeddingProvider, rdb *redis.Client, model string, ttl time.Duration, log logger.Logger) *CachedEmbedder {
	return &CachedEmbedder{next: next, rdb: rdb, model: model, ttl: ttl, log: log}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, ok := decodeVector(raw); ok {
			return vec, nil
		}
		c.log.Warn("discarding malformed cached embedding", "key", key)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("embedding cache read failed", "error", err)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.log.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return embedKeyPrefix + c.model + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, bool) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, false
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, true
}

var _ core.EmbeddingProvider = (*CachedEmbedder)(nil)
