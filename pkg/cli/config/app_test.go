package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/storyweaver/pkg/cli/config"
	"github.com/secmon-lab/storyweaver/pkg/usecase"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestLoadAppConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name: "valid configuration",
			content: `
[outline]
instruction = "Summarize the meeting as a briefing."

[analysis]
instruction = "List only decisions."

[search]
default_top_k = 8
max_top_k = 20
`,
		},
		{
			name:    "empty file uses defaults",
			content: "\n",
		},
		{
			name:    "config file not found",
			wantErr: config.ErrConfigNotFound,
		},
		{
			name: "malformed TOML",
			content: `
[search
default_top_k = 3
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "negative top k",
			content: `
[search]
default_top_k = -1
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "default exceeds max",
			content: `
[search]
default_top_k = 30
max_top_k = 10
`,
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.toml")
			if tt.content != "" {
				path = writeConfig(t, tt.content)
			}

			cfg, err := config.LoadAppConfiguration(path)
			if tt.wantErr != nil {
				gt.Error(t, err).Is(tt.wantErr)
				return
			}
			gt.NoError(t, err)
			gt.Value(t, cfg).NotNil()
		})
	}
}

func TestAppConfig_Apply(t *testing.T) {
	cfg := &config.AppConfig{
		Outline: config.PromptConfig{Instruction: "  briefing  "},
		Search:  config.SearchConfig{MaxTopK: 3},
	}

	settings := cfg.Apply(usecase.DefaultSettings())
	gt.Value(t, settings.OutlineInstruction).Equal("briefing")
	gt.Value(t, settings.AnalysisInstruction).Equal("")
	gt.Number(t, settings.MaxTopK).Equal(3)
	// default is clamped to the lowered max
	gt.Number(t, settings.DefaultTopK).Equal(3)
	gt.Number(t, settings.SchemaRepairAttempts).Equal(1)
}

func TestApp_Settings(t *testing.T) {
	t.Run("no path returns defaults", func(t *testing.T) {
		settings, err := config.NewAppForTest("").Settings()
		gt.NoError(t, err)
		gt.Value(t, settings).Equal(usecase.DefaultSettings())
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, "[search]\ndefault_top_k = 7\n")
		settings, err := config.NewAppForTest(path).Settings()
		gt.NoError(t, err)
		gt.Number(t, settings.DefaultTopK).Equal(7)
		gt.Number(t, settings.MaxTopK).Equal(50)
	})
}
