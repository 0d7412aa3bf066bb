package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/repository/gcs"
	"github.com/urfave/cli/v3"
)

// Archive holds CLI flags for the raw transcript archive
type Archive struct {
	bucket string
	prefix string
}

// Flags returns CLI flags for archive configuration
func (a *Archive) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket for raw transcripts (disabled when empty)",
			Category:    "Archive",
			Sources:     cli.EnvVars("STORYWEAVER_ARCHIVE_BUCKET"),
			Destination: &a.bucket,
		},
		&cli.StringFlag{
			Name:        "archive-prefix",
			Usage:       "Object name prefix of archived transcripts",
			Value:       "transcripts",
			Category:    "Archive",
			Sources:     cli.EnvVars("STORYWEAVER_ARCHIVE_PREFIX"),
			Destination: &a.prefix,
		},
	}
}

// LogAttrs returns log attributes for the archive configuration
func (a *Archive) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("bucket", a.bucket),
		slog.String("prefix", a.prefix),
	}
}

// Configure returns the archive, or nil when no bucket is set
func (a *Archive) Configure(ctx context.Context) (*gcs.Archive, error) {
	if a.bucket == "" {
		return nil, nil
	}

	archive, err := gcs.New(ctx, a.bucket, gcs.WithPrefix(a.prefix))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize transcript archive", goerr.V("bucket", a.bucket))
	}
	return archive, nil
}
