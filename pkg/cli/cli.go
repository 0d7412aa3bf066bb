package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/secmon-lab/storyweaver/pkg/cli/config"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string, version string) error {
	return run(ctx, args, version, os.Stdout)
}

func run(ctx context.Context, args []string, version string, w io.Writer) error {
	var loggerCfg config.Logger
	var sentryCfg config.Sentry
	var envFile string
	closers := []func(){}

	// The env file feeds flag sources, so it is read before parsing.
	if err := config.LoadEnvFile(config.EnvFilePath(args)); err != nil {
		return err
	}

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "env-file",
			Usage:       "Load environment variables from a dotenv file",
			Destination: &envFile,
		},
	}
	flags = append(flags, loggerCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	app := &cli.Command{
		Name:    "storyweaver",
		Usage:   "Grounded outlines from segmented meeting transcripts",
		Version: version,
		Writer:  w,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closers = append(closers, f)

			flush, err := sentryCfg.Configure(version)
			if err != nil {
				return ctx, err
			}
			closers = append(closers, flush)

			logging.Default().Info("Starting storyweaver",
				"logger", loggerCfg,
				"env_file", envFile,
				slog.GroupAttrs("sentry", sentryCfg.LogAttrs()...),
			)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(version),
			cmdIngest(w),
			cmdOutline(w),
			cmdMigrate(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}
