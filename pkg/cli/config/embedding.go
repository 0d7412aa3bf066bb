package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/repository/redis"
	"github.com/secmon-lab/storyweaver/pkg/service/embedding"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Embedding holds CLI flags for the embedding generator and its cache
type Embedding struct {
	backend       string
	batchSize     int
	concurrency   int
	redisAddr     string
	redisPassword string
	redisDB       int
	redisTTL      time.Duration
}

// Flags returns CLI flags for embedding configuration
func (e *Embedding) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedding-backend",
			Usage:       "Embedding backend (gemini, hash)",
			Value:       "gemini",
			Category:    "Embedding",
			Sources:     cli.EnvVars("STORYWEAVER_EMBEDDING_BACKEND"),
			Destination: &e.backend,
		},
		&cli.IntFlag{
			Name:        "embedding-batch-size",
			Usage:       "Texts per embedding request",
			Value:       100,
			Category:    "Embedding",
			Sources:     cli.EnvVars("STORYWEAVER_EMBEDDING_BATCH_SIZE"),
			Destination: &e.batchSize,
		},
		&cli.IntFlag{
			Name:        "embedding-concurrency",
			Usage:       "Parallel embedding requests",
			Value:       4,
			Category:    "Embedding",
			Sources:     cli.EnvVars("STORYWEAVER_EMBEDDING_CONCURRENCY"),
			Destination: &e.concurrency,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address for the embedding cache (disabled when empty)",
			Category:    "Embedding",
			Sources:     cli.EnvVars("STORYWEAVER_REDIS_ADDR"),
			Destination: &e.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Category:    "Embedding",
			Sources:     cli.EnvVars("STORYWEAVER_REDIS_PASSWORD"),
			Destination: &e.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Category:    "Embedding",
			Sources:     cli.EnvVars("STORYWEAVER_REDIS_DB"),
			Destination: &e.redisDB,
		},
		&cli.DurationFlag{
			Name:        "redis-ttl",
			Usage:       "Lifetime of cached embeddings",
			Value:       30 * 24 * time.Hour,
			Category:    "Embedding",
			Sources:     cli.EnvVars("STORYWEAVER_REDIS_TTL"),
			Destination: &e.redisTTL,
		},
	}
}

// LogAttrs returns log attributes for the embedding configuration
func (e *Embedding) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", e.backend),
		slog.Int("batch_size", e.batchSize),
		slog.Int("concurrency", e.concurrency),
		slog.String("redis_addr", e.redisAddr),
		slog.Int("redis_db", e.redisDB),
	}
}

// Configure builds the embedder producing vectors of the given dimension.
// llmClient may be nil for the hash backend. The returned closer releases the cache connection.
func (e *Embedding) Configure(ctx context.Context, llmClient gollem.LLMClient, dimension int) (interfaces.Embedder, func(), error) {
	closer := func() {}

	var (
		embedder  interfaces.Embedder
		namespace string
	)
	switch e.backend {
	case "gemini":
		if llmClient == nil {
			return nil, closer, goerr.Wrap(ErrMissingRequired, "gemini-project-id is required when using gemini embedding backend")
		}
		g, err := embedding.NewGemini(llmClient,
			embedding.WithDimension(dimension),
			embedding.WithBatchSize(e.batchSize),
			embedding.WithConcurrency(e.concurrency),
		)
		if err != nil {
			return nil, closer, goerr.Wrap(err, "failed to create gemini embedder")
		}
		embedder, namespace = g, "gemini"

	case "hash":
		h, err := embedding.NewHash(dimension)
		if err != nil {
			return nil, closer, goerr.Wrap(err, "failed to create hash embedder")
		}
		logging.Default().Warn("Using hash embedder (development mode, no semantic similarity)")
		embedder, namespace = h, "hash"

	default:
		return nil, closer, goerr.Wrap(ErrInvalidConfig, "invalid embedding backend", goerr.V(BackendKey, e.backend))
	}

	if e.redisAddr == "" {
		return embedder, closer, nil
	}

	cache, err := redis.New(ctx, e.redisAddr, e.redisPassword, e.redisDB, redis.WithTTL(e.redisTTL))
	if err != nil {
		return nil, closer, goerr.Wrap(err, "failed to initialize embedding cache")
	}
	logging.Default().Info("Embedding cache enabled", "redis_addr", e.redisAddr)

	closer = func() {
		if err := cache.Close(); err != nil {
			logging.Default().Warn("failed to close embedding cache", "error", err)
		}
	}
	return embedding.NewCached(embedder, cache, namespace), closer, nil
}
