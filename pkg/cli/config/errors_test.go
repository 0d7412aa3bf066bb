package config_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/storyweaver/pkg/cli/config"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

// Each configuration failure surfaces exactly one sentinel so callers can tell them apart
func TestConfigErrors_ReturnedByConfigure(t *testing.T) {
	sentinels := []error{config.ErrConfigNotFound, config.ErrInvalidConfig, config.ErrMissingRequired}

	tests := []struct {
		name string
		run  func(t *testing.T) error
		want error
	}{
		{
			name: "firestore backend without project",
			run: func(t *testing.T) error {
				_, err := config.NewRepositoryForTest("firestore", "", "", model.EmbeddingDimension).Configure(t.Context())
				return err
			},
			want: config.ErrMissingRequired,
		},
		{
			name: "qdrant backend without endpoint",
			run: func(t *testing.T) error {
				_, err := config.NewRepositoryForTest("qdrant", "", "", model.EmbeddingDimension).Configure(t.Context())
				return err
			},
			want: config.ErrMissingRequired,
		},
		{
			name: "gemini project without location",
			run: func(t *testing.T) error {
				_, err := config.NewGeminiForTest("my-project", "").Configure(t.Context())
				return err
			},
			want: config.ErrMissingRequired,
		},
		{
			name: "neither firebase project nor no-auth",
			run: func(t *testing.T) error {
				_, err := config.NewAuthForTest("", "").Configure()
				return err
			},
			want: config.ErrMissingRequired,
		},
		{
			name: "unknown repository backend",
			run: func(t *testing.T) error {
				_, err := config.NewRepositoryForTest("cassandra", "", "", model.EmbeddingDimension).Configure(t.Context())
				return err
			},
			want: config.ErrInvalidConfig,
		},
		{
			name: "zero generation attempts",
			run: func(t *testing.T) error {
				_, err := config.NewGenerationForTest(0, time.Second, time.Minute, time.Minute, 1).Options()
				return err
			},
			want: config.ErrInvalidConfig,
		},
		{
			name: "missing app config file",
			run: func(t *testing.T) error {
				_, err := config.LoadAppConfiguration(filepath.Join(t.TempDir(), "absent.toml"))
				return err
			},
			want: config.ErrConfigNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(t)
			gt.Error(t, err).Is(tt.want)
			for _, other := range sentinels {
				if other == tt.want {
					continue
				}
				gt.Bool(t, errors.Is(err, other)).False()
			}
		})
	}
}
