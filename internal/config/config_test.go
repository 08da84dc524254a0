package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/powerlog/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "powerlog.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func resetArgs(t *testing.T) {
	t.Helper()
	oldArgs := os.Args
	os.Args = []string{"powerlog"}
	t.Cleanup(func() { os.Args = oldArgs })
}

const validConfig = `
bot_token = "${BOT_TOKEN}"
chat_id = "${CHAT_ID}"
log_level = "debug"

[paths]
data_dir = "/tmp/powerlog"

[thresholds]
cpu_load = 90.0
temperature = 70.0
power = 10.0
ram_usage = 85.0
disk_usage = 90.0

[power]
idle_watts = 5.0
cpu_watts = 8.0
`

func TestLoad(t *testing.T) {
	resetArgs(t)
	t.Setenv("POWERLOG_CONFIG", writeConfig(t, validConfig))
	t.Setenv("BOT_TOKEN", "123456:abcdef")
	t.Setenv("CHAT_ID", "987654")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "123456:abcdef", cfg.BotToken)
	assert.Equal(t, "987654", cfg.ChatID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/powerlog", cfg.DataDir)
	assert.InDelta(t, 90.0, cfg.Thresholds["cpu_load"], 0.001)
	assert.InDelta(t, 70.0, cfg.Thresholds["temperature"], 0.001)
	assert.InDelta(t, 10.0, cfg.Thresholds["power"], 0.001)
	assert.InDelta(t, 85.0, cfg.Thresholds["ram_usage"], 0.001)
	assert.InDelta(t, 90.0, cfg.Thresholds["disk_usage"], 0.001)
	assert.InDelta(t, 5.0, cfg.Power.IdleWatts, 0.001)
	assert.InDelta(t, 8.0, cfg.Power.CPUWatts, 0.001)
	assert.InDelta(t, 0.0, cfg.Power.NetworkWattsPerMB, 0.001)
}

func TestLoadLiteralCredentials(t *testing.T) {
	resetArgs(t)
	content := `
bot_token = "literal-token"
chat_id = "42"

[thresholds]
cpu_load = 90.0
temperature = 70.0
power = 10.0
ram_usage = 85.0
disk_usage = 90.0
`
	t.Setenv("POWERLOG_CONFIG", writeConfig(t, content))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "literal-token", cfg.BotToken)
	assert.Equal(t, "42", cfg.ChatID)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, config.DefaultDataDir, cfg.DataDir)
}

func TestLoadMissingThreshold(t *testing.T) {
	resetArgs(t)
	content := `
bot_token = "token"
chat_id = "42"

[thresholds]
temperature = 70.0
power = 10.0
ram_usage = 85.0
disk_usage = 90.0
`
	t.Setenv("POWERLOG_CONFIG", writeConfig(t, content))

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thresholds.cpu_load")
}

func TestLoadUnresolvedEnvVar(t *testing.T) {
	resetArgs(t)
	t.Setenv("POWERLOG_CONFIG", writeConfig(t, validConfig))
	t.Setenv("CHAT_ID", "987654")
	os.Unsetenv("BOT_TOKEN")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_TOKEN")
}

func TestLoadMalformedFile(t *testing.T) {
	resetArgs(t)
	t.Setenv("POWERLOG_CONFIG", writeConfig(t, "this is not valid TOML"))

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	resetArgs(t)
	t.Setenv("POWERLOG_CONFIG", filepath.Join(t.TempDir(), "nope.conf"))

	_, err := config.Load()
	require.Error(t, err)
}

func TestLogLevelFlag(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"powerlog", "--log-level", "error"}
	t.Cleanup(func() { os.Args = oldArgs })

	t.Setenv("POWERLOG_CONFIG", writeConfig(t, validConfig))
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("CHAT_ID", "42")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestInvalidLogLevel(t *testing.T) {
	resetArgs(t)
	content := `
bot_token = "token"
chat_id = "42"
log_level = "loud"

[thresholds]
cpu_load = 90.0
temperature = 70.0
power = 10.0
ram_usage = 85.0
disk_usage = 90.0
`
	t.Setenv("POWERLOG_CONFIG", writeConfig(t, content))

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid log level")
}
