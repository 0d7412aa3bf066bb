package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/storyweaver/pkg/cli/config"
)

func TestSentry_Configure(t *testing.T) {
	var cfg config.Sentry
	flush, err := cfg.Configure("v0.0.0")
	gt.NoError(t, err).Required()
	flush()

	attrs := cfg.LogAttrs()
	gt.Bool(t, attrs[0].Value.Bool()).False()
}

func TestArchive_Configure(t *testing.T) {
	var cfg config.Archive
	archive, err := cfg.Configure(t.Context())
	gt.NoError(t, err)
	gt.Value(t, archive).Nil()
}
