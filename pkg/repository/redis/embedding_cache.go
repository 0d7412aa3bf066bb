package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
)

const defaultKeyPrefix = "storyweaver:embedding:"

// EmbeddingCache stores vectors as little-endian float32 blobs with a TTL
type EmbeddingCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ interfaces.EmbeddingCache = &EmbeddingCache{}

type Option func(*EmbeddingCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *EmbeddingCache) {
		c.ttl = ttl
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(c *EmbeddingCache) {
		c.prefix = prefix
	}
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, addr, password string, db int, opts ...Option) (*EmbeddingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", addr))
	}

	c := &EmbeddingCache{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *EmbeddingCache) Close() error {
	return c.client.Close()
}

func (c *EmbeddingCache) GetMany(ctx context.Context, keys []string) ([][]float32, error) {
	if len(keys) == 0 {
		return [][]float32{}, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = c.prefix + k
	}

	values, err := c.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get cached embeddings", goerr.V("count", len(keys)))
	}

	out := make([][]float32, len(keys))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		vec, err := decodeVector([]byte(s))
		if err != nil {
			// A corrupt entry is a miss; it is overwritten on the next store
			continue
		}
		out[i] = vec
	}
	return out, nil
}

func (c *EmbeddingCache) PutMany(ctx context.Context, keys []string, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return goerr.New("keys and vectors length mismatch",
			goerr.V("keys", len(keys)), goerr.V("vectors", len(vectors)))
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := c.client.TxPipeline()
	for i, k := range keys {
		pipe.Set(ctx, c.prefix+k, encodeVector(vectors[i]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return goerr.Wrap(err, "failed to store embeddings", goerr.V("count", len(keys)))
	}
	return nil
}

var errCorruptVector = errors.New("corrupt vector blob")

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errCorruptVector
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
