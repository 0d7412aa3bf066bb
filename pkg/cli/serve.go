package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/cli/config"
	httpctrl "github.com/secmon-lab/storyweaver/pkg/controller/http"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var maxBodyBytes int
	var pipelineCfg pipelineConfig
	var authCfg config.Auth

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("STORYWEAVER_ADDR"),
			Destination: &addr,
		},
		&cli.IntFlag{
			Name:        "max-body-bytes",
			Usage:       "Maximum accepted request body size",
			Value:       8 << 20,
			Sources:     cli.EnvVars("STORYWEAVER_MAX_BODY_BYTES"),
			Destination: &maxBodyBytes,
		},
	}
	flags = append(flags, pipelineCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			verifier, err := authCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure authentication")
			}

			p, err := pipelineCfg.build(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			httpHandler, err := httpctrl.New(p.UseCases,
				httpctrl.WithVerifier(verifier),
				httpctrl.WithMetrics(p.Metrics),
				httpctrl.WithVersion(version),
				httpctrl.WithMaxBodyBytes(int64(maxBodyBytes)),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, slog.GroupAttrs("auth", authCfg.LogAttrs()...))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logging.Default().Info("Context cancelled, shutting down")
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logging.Default().Info("Server shutdown completed")
			return nil
		},
	}
}
