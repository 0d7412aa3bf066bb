package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var dimension int
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("STORYWEAVER_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Value:       "(default)",
				Sources:     cli.EnvVars("STORYWEAVER_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.IntFlag{
				Name:        "embedding-dimension",
				Usage:       "Dimension of the segment vector index",
				Value:       model.EmbeddingDimension,
				Sources:     cli.EnvVars("STORYWEAVER_EMBEDDING_DIMENSION"),
				Destination: &dimension,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"dimension", dimension,
				"dryRun", dryRun)

			indexConfig := getIndexConfig(dimension)

			client, err := fireconf.New(ctx, projectID, databaseID, indexConfig,
				fireconf.WithLogger(logger))
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			if !dryRun {
				logger.Info("Applying migrations")
				if err := client.Migrate(ctx); err != nil {
					return goerr.Wrap(err, "failed to apply migrations")
				}
				logger.Info("Migrations applied successfully")
				return nil
			}

			logger.Info("Dry run mode - previewing changes")
			names := make([]string, 0, len(indexConfig.Collections))
			for _, col := range indexConfig.Collections {
				names = append(names, col.Name)
			}
			current, err := client.Import(ctx, names...)
			if err != nil {
				return goerr.Wrap(err, "failed to import current indexes")
			}
			diff, err := client.DiffConfigs(current)
			if err != nil {
				return goerr.Wrap(err, "failed to diff index configuration")
			}
			if len(diff.Collections) == 0 {
				logger.Info("No changes required")
				return nil
			}
			for _, col := range diff.Collections {
				logger.Info("Migration step",
					"collection", col.Name,
					"action", col.Action,
					"indexesToAdd", len(col.IndexesToAdd),
					"indexesToDelete", len(col.IndexesToDelete))
			}
			return nil
		},
	}
}

// getIndexConfig returns the Firestore index configuration of the segments collection group
func getIndexConfig(dimension int) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: "segments",
				Indexes: []fireconf.Index{
					// FindNearest on Embedding
					{
						Fields: []fireconf.IndexField{
							{
								Path: "Embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
				},
			},
		},
	}
}
