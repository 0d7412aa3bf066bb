package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/repository/firestore"
	"github.com/secmon-lab/storyweaver/pkg/repository/memory"
	"github.com/secmon-lab/storyweaver/pkg/repository/qdrant"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for segment store backend configuration
type Repository struct {
	backend          string
	projectID        string
	databaseID       string
	collectionPrefix string
	qdrantURL        string
	qdrantAPIKey     string
	qdrantCollection string
	dimension        int
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Segment store backend (firestore, qdrant or memory)",
			Value:       "firestore",
			Category:    "Repository",
			Sources:     cli.EnvVars("STORYWEAVER_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("STORYWEAVER_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("STORYWEAVER_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of Firestore collection names",
			Category:    "Repository",
			Sources:     cli.EnvVars("STORYWEAVER_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
		&cli.StringFlag{
			Name:        "qdrant-url",
			Usage:       "Qdrant gRPC endpoint such as localhost:6334 or https://host:6334 (required when using qdrant backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("STORYWEAVER_QDRANT_URL"),
			Destination: &r.qdrantURL,
		},
		&cli.StringFlag{
			Name:        "qdrant-api-key",
			Usage:       "Qdrant API key",
			Category:    "Repository",
			Sources:     cli.EnvVars("STORYWEAVER_QDRANT_API_KEY"),
			Destination: &r.qdrantAPIKey,
		},
		&cli.StringFlag{
			Name:        "qdrant-collection",
			Usage:       "Qdrant collection holding segments",
			Value:       "storyweaver_segments",
			Category:    "Repository",
			Sources:     cli.EnvVars("STORYWEAVER_QDRANT_COLLECTION"),
			Destination: &r.qdrantCollection,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector length of the segment collection",
			Value:       model.EmbeddingDimension,
			Category:    "Repository",
			Sources:     cli.EnvVars("STORYWEAVER_EMBEDDING_DIMENSION"),
			Destination: &r.dimension,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// CollectionPrefix returns the Firestore collection name prefix
func (r *Repository) CollectionPrefix() string {
	return r.collectionPrefix
}

// Dimension returns the embedding dimension of the segment collection
func (r *Repository) Dimension() int {
	return r.dimension
}

// LogAttrs returns log attributes for the repository configuration
func (r *Repository) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", r.backend),
		slog.String("firestore_project_id", r.projectID),
		slog.String("firestore_database_id", r.databaseID),
		slog.String("qdrant_url", r.qdrantURL),
		slog.String("qdrant_collection", r.qdrantCollection),
		slog.Int("dimension", r.dimension),
	}
}

// Configure initializes and returns a segment store based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.SegmentRepository, error) {
	if r.dimension <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "embedding dimension must be positive", goerr.V("dimension", r.dimension))
	}

	switch r.backend {
	case "firestore":
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrMissingRequired, "firestore-project-id is required when using firestore backend")
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID,
			firestore.WithCollectionPrefix(r.collectionPrefix),
			firestore.WithDimension(r.dimension),
		)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore segment store",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case "qdrant":
		if r.qdrantURL == "" {
			return nil, goerr.Wrap(ErrMissingRequired, "qdrant-url is required when using qdrant backend")
		}
		repo, err := qdrant.New(ctx, r.qdrantURL, r.qdrantCollection,
			qdrant.WithAPIKey(r.qdrantAPIKey),
			qdrant.WithDimension(r.dimension),
		)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize qdrant repository")
		}
		logging.Default().Info("Using Qdrant segment store",
			"url", r.qdrantURL,
			"collection", r.qdrantCollection,
		)
		return repo, nil

	case "memory":
		logging.Default().Info("Using in-memory segment store (development mode)")
		return memory.New(memory.WithDimension(r.dimension)), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid repository backend", goerr.V(BackendKey, r.backend))
	}
}
