package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/service/identity"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Auth holds CLI flags for caller authentication
type Auth struct {
	firebaseProjectID string
	noAuthUID         string
}

// Flags returns CLI flags for authentication configuration
func (a *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firebase-project-id",
			Usage:       "Firebase project whose ID tokens are accepted",
			Category:    "Auth",
			Sources:     cli.EnvVars("STORYWEAVER_FIREBASE_PROJECT_ID"),
			Destination: &a.firebaseProjectID,
		},
		&cli.StringFlag{
			Name:        "no-auth",
			Usage:       "Treat every request as this owner ID (development only)",
			Category:    "Auth",
			Sources:     cli.EnvVars("STORYWEAVER_NO_AUTH"),
			Destination: &a.noAuthUID,
		},
	}
}

// LogAttrs returns log attributes for the authentication configuration
func (a *Auth) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("firebase_project_id", a.firebaseProjectID),
		slog.Bool("no_auth", a.noAuthUID != ""),
	}
}

// Configure returns the verifier resolving bearer tokens into owner IDs
func (a *Auth) Configure() (interfaces.IdentityVerifier, error) {
	if a.firebaseProjectID != "" && a.noAuthUID != "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "--firebase-project-id and --no-auth cannot be used together")
	}

	if a.noAuthUID != "" {
		logging.Default().Warn("Authentication disabled, all requests are attributed to a fixed owner", "owner", a.noAuthUID)
		return identity.NewStatic(a.noAuthUID), nil
	}

	if a.firebaseProjectID == "" {
		return nil, goerr.Wrap(ErrMissingRequired, "--firebase-project-id or --no-auth is required")
	}

	verifier, err := identity.NewFirebase(a.firebaseProjectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firebase verifier")
	}
	return verifier, nil
}
