package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/storyweaver/pkg/cli/config"
)

func TestAuth_Configure(t *testing.T) {
	t.Run("no-auth returns fixed owner", func(t *testing.T) {
		verifier, err := config.NewAuthForTest("", "dev-user").Configure()
		gt.NoError(t, err).Required()

		owner, err := verifier.Verify(t.Context(), "anything")
		gt.NoError(t, err)
		gt.Value(t, owner).Equal("dev-user")
	})

	t.Run("firebase project builds verifier", func(t *testing.T) {
		verifier, err := config.NewAuthForTest("my-project", "").Configure()
		gt.NoError(t, err)
		gt.Value(t, verifier).NotNil()
	})

	t.Run("either option is required", func(t *testing.T) {
		_, err := config.NewAuthForTest("", "").Configure()
		gt.Error(t, err).Is(config.ErrMissingRequired)
	})

	t.Run("options are exclusive", func(t *testing.T) {
		_, err := config.NewAuthForTest("my-project", "dev-user").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}
