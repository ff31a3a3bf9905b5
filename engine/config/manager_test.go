package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func TestExtractCLIOverrides_EnvironmentVariables(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		verify func(*CLIOverrides)
	}{
		{
			name:   "gemini api key from environment",
			envKey: "GEMINI_API_KEY",
			envVal: "test-gemini-key-from-env",
			verify: func(overrides *CLIOverrides) {
				if overrides.GeminiAPIKey == nil {
					t.Error("GeminiAPIKey should not be nil when environment variable is set")
					return
				}
				if *overrides.GeminiAPIKey != "test-gemini-key-from-env" {
					t.Errorf("GeminiAPIKey = %v, want %v", *overrides.GeminiAPIKey, "test-gemini-key-from-env")
				}
			},
		},
		{
			name:   "openai api key from environment",
			envKey: "OPENAI_API_KEY",
			envVal: "sk-test-key-from-env",
			verify: func(overrides *CLIOverrides) {
				if overrides.OpenAIAPIKey == nil {
					t.Error("OpenAIAPIKey should not be nil when environment variable is set")
					return
				}
				if *overrides.OpenAIAPIKey != "sk-test-key-from-env" {
					t.Errorf("OpenAIAPIKey = %v, want %v", *overrides.OpenAIAPIKey, "sk-test-key-from-env")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVal, hadVal := os.LookupEnv(tt.envKey)
			t.Cleanup(func() {
				if hadVal {
					require.NoError(t, os.Setenv(tt.envKey, oldVal))
				} else {
					require.NoError(t, os.Unsetenv(tt.envKey))
				}
			})
			require.NoError(t, os.Setenv(tt.envKey, tt.envVal))

			var overrides *CLIOverrides
			cmd := &cli.Command{
				Name:  "test",
				Flags: Flags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					overrides = ExtractCLIOverrides(cmd)
					return nil
				},
			}
			require.NoError(t, cmd.Run(context.Background(), []string{"test"}))
			require.NotNil(t, overrides)
			tt.verify(overrides)
		})
	}
}

func TestExtractCLIOverrides_ExplicitFlags(t *testing.T) {
	var overrides *CLIOverrides
	cmd := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			overrides = ExtractCLIOverrides(cmd)
			return nil
		},
	}

	args := []string{"test", "--log-level", "debug", "--avatar-style", "sketch", "--meta-prompting", "--features", "meta", "--features", "http"}
	require.NoError(t, cmd.Run(context.Background(), args))
	require.NotNil(t, overrides)

	require.NotNil(t, overrides.LogLevel)
	require.Equal(t, "debug", *overrides.LogLevel)
	require.NotNil(t, overrides.AvatarStyle)
	require.Equal(t, "sketch", *overrides.AvatarStyle)
	require.NotNil(t, overrides.MetaEnabled)
	require.True(t, *overrides.MetaEnabled)
	require.Equal(t, []string{"meta", "http"}, overrides.Features)

	// Unset flags stay nil so file values can land.
	require.Nil(t, overrides.ServerURL)
	require.Nil(t, overrides.PersonalityActive)
}

func TestConfigManager_MergesFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
avatar:
  style: watercolor
  width: 640
personality:
  active: aria
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	style := "anime"
	cm, err := NewConfigManager(zap.NewNop(), BuildOpts{BuildVersion: "test"}, &CLIOverrides{AvatarStyle: &style}, configPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, cm.Close()) }()

	cfg := cm.GetConfig()
	require.NotNil(t, cfg)
	require.Equal(t, "anime", cfg.Avatar.Style, "CLI override wins over file")
	require.Equal(t, 640, cfg.Avatar.Width, "file value lands when no override")
	require.Equal(t, "aria", cfg.Personality.Active)

	require.Equal(t, cfg.Avatar, cm.GetAvatarConfig())
	require.Equal(t, cfg.Personality, cm.GetPersonalityConfig())
}

func TestConfigManager_MissingFileFallsBackToDefaults(t *testing.T) {
	cm, err := NewConfigManager(zap.NewNop(), BuildOpts{}, &CLIOverrides{}, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	defer func() { require.NoError(t, cm.Close()) }()

	cfg := cm.GetConfig()
	require.NotNil(t, cfg)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestConfigManager_Reload(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("avatar:\n  style: watercolor\n"), 0600))

	cm, err := NewConfigManager(zap.NewNop(), BuildOpts{}, &CLIOverrides{}, configPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, cm.Close()) }()

	changed := make(chan *Config, 1)
	unsubscribe := cm.Subscribe(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	defer unsubscribe()

	require.NoError(t, os.WriteFile(configPath, []byte("avatar:\n  style: sketch\n"), 0600))

	select {
	case cfg := <-changed:
		require.Equal(t, "sketch", cfg.Avatar.Style)
	case <-time.After(3 * time.Second):
		t.Skip("file watcher events unavailable in this environment")
	}
}
