package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/blinktrack/internal/config"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	configPath := filepath.Join(tempDir, "blinktrack.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return configPath
}

func load(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()

	return config.Load(config.WithArgs(args), config.WithDotEnv(""))
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "debug"

[detector]
mode = "presence"
ear_threshold = 0.22
consecutive_frames = 3
glasses_mode = true
adaptive_threshold = false

[health]
check_interval = "30s"
cooldown = "10m"

[database]
path = "/path/to/blinktrack.db"
retention_days = 30

[dashboard]
addr = ":8080"
`)
	t.Setenv("BLINKTRACK_CONFIG", configPath)

	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, config.ModePresence, cfg.Detector.Mode)
	assert.InDelta(t, 0.22, cfg.Detector.EARThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Detector.ConsecutiveFrames)
	assert.True(t, cfg.Detector.GlassesMode)
	assert.False(t, cfg.Detector.AdaptiveThreshold)
	assert.Equal(t, 30*time.Second, cfg.Health.CheckInterval)
	assert.Equal(t, 10*time.Minute, cfg.Health.Cooldown)
	assert.Equal(t, "/path/to/blinktrack.db", cfg.Database.Path)
	assert.Equal(t, 30, cfg.Database.RetentionDays)
	assert.Equal(t, ":8080", cfg.Dashboard.Addr)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BLINKTRACK_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := load(t)
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, config.ModeEAR, cfg.Detector.Mode)
	assert.InDelta(t, 0.25, cfg.Detector.EARThreshold, 1e-9)
	assert.Equal(t, 1, cfg.Detector.ConsecutiveFrames)
	assert.True(t, cfg.Detector.AdaptiveThreshold)
	assert.Equal(t, 3, cfg.Detector.SmoothingWindow)
	assert.Equal(t, 30, cfg.Detector.BaselineWindow)
	assert.Equal(t, 5*time.Minute, cfg.Health.Cooldown)
	assert.Equal(t, 30, cfg.Source.MaxFailedReads)
	assert.Equal(t, 30, cfg.Dashboard.StatusEvery)
	assert.NotEmpty(t, cfg.Database.Path)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("BLINKTRACK_CONFIG", configPath)

	_, err := load(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read configuration")
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, err := config.Load(
		config.WithArgs(nil),
		config.WithDotEnv(""),
		config.WithConfigFile(filepath.Join(t.TempDir(), "missing.toml")),
	)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "invalid"
`)
	t.Setenv("BLINKTRACK_CONFIG", configPath)

	_, err := load(t)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidDetectorSettings(t *testing.T) {
	tests := []struct {
		name string
		toml string
		code errors.ErrorCode
	}{
		{"threshold too high", "[detector]\near_threshold = 1.5\n", errors.ErrInvalidThreshold},
		{"threshold zero", "[detector]\near_threshold = 0.0\n", errors.ErrInvalidThreshold},
		{"frames too many", "[detector]\nconsecutive_frames = 11\n", errors.ErrInvalidConsecutiveFrames},
		{"frames zero", "[detector]\nconsecutive_frames = 0\n", errors.ErrInvalidConsecutiveFrames},
		{"unknown mode", "[detector]\nmode = \"haar\"\n", errors.ErrInvalidMode},
		{"nats without url", "[source]\nkind = \"nats\"\n", errors.ErrMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BLINKTRACK_CONFIG", writeConfig(t, tt.toml))

			_, err := load(t)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), err.Error())
		})
	}
}

func TestLogLevelFlag(t *testing.T) {
	t.Setenv("BLINKTRACK_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := load(t, "--log-level", "debug")
	require.NoError(t, err)
	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestFlagOverridesFileAndEnv(t *testing.T) {
	configPath := writeConfig(t, `
[detector]
consecutive_frames = 2
`)
	t.Setenv("BLINKTRACK_CONFIG", configPath)
	t.Setenv("BLINKTRACK_DETECTOR_EAR_THRESHOLD", "0.2")

	cfg, err := load(t, "--consecutive-frames", "4")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Detector.ConsecutiveFrames)
	assert.InDelta(t, 0.2, cfg.Detector.EARThreshold, 1e-9)
}

func TestDotEnvFile(t *testing.T) {
	t.Setenv("BLINKTRACK_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("BLINKTRACK_DASHBOARD_ADDR=127.0.0.1:9999\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("BLINKTRACK_DASHBOARD_ADDR") })

	cfg, err := config.Load(config.WithArgs(nil), config.WithDotEnv(envPath))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Dashboard.Addr)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())
}
