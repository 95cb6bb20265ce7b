package common

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTimestamp(t *testing.T) {
	ts, err := extractTimestamp(`{"timestamp":"2025-01-15T12:00:00.123456789Z","message":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, 123456789, ts.Nanosecond())

	_, err = extractTimestamp(`{"message":"no time"}`)
	assert.Error(t, err)

	_, err = extractTimestamp(`not json`)
	assert.Error(t, err)
}

func TestPruneLogFileByAge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logagent.log")
	old := time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339Nano)
	fresh := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339Nano)

	content := strings.Join([]string{
		`{"timestamp":"` + old + `","message":"old"}`,
		`{"timestamp":"` + fresh + `","message":"fresh"}`,
		`garbage line`,
		``,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, pruneLogFileByAge(path, 24*time.Hour))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, `"old"`)
	assert.Contains(t, out, `"fresh"`)
	assert.Contains(t, out, "garbage line")
}

func TestPruneLogFileByAge_Missing(t *testing.T) {
	assert.Error(t, pruneLogFileByAge(filepath.Join(t.TempDir(), "nope.log"), time.Hour))
}

func TestLogFilePath_UserMode(t *testing.T) {
	if os.Geteuid() == 0 {
		assert.Equal(t, "/var/log/logagent.log", LogFilePath())
		return
	}
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "logagent", "logagent.log"), LogFilePath())
}

func TestNoColor(t *testing.T) {
	t.Setenv("LOGAGENT_NOCOLOR", "1")
	assert.True(t, NoColor())
	t.Setenv("LOGAGENT_NOCOLOR", "")
	assert.False(t, NoColor())
}

func setupConfigDir(t *testing.T, content string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if content == "" {
		return
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logagent"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logagent", "logagent-test.yaml"), []byte(content), 0o644))
}

func TestConfInit(t *testing.T) {
	setupConfigDir(t, "server:\n  port: \"9999\"\nstore:\n  driver: postgres\n")

	var cfg struct {
		Server struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"server"`
	}
	require.NoError(t, ConfInit("logagent-test", &cfg))
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "postgres", viper.GetString("store.driver"))
}

func TestConfInit_EnvOverride(t *testing.T) {
	setupConfigDir(t, "server:\n  port: \"9999\"\n")
	t.Setenv("LOGAGENT_SERVER_PORT", "7000")

	require.NoError(t, ConfInit("logagent-test", nil))
	assert.Equal(t, "7000", viper.GetString("server.port"))
}

func TestConfInit_MissingFileUsesDefaults(t *testing.T) {
	setupConfigDir(t, "")
	viper.SetDefault("server.port", "9989")

	require.NoError(t, ConfInit("logagent-test", nil))
	assert.Equal(t, "9989", viper.GetString("server.port"))
}

func TestConfInit_Malformed(t *testing.T) {
	setupConfigDir(t, "server: [unclosed\n")
	assert.Error(t, ConfInit("logagent-test", nil))
}

func TestStateDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root uses /var/lib/logagent")
	}
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "logagent"), StateDir())
	assert.Equal(t, filepath.Join(dir, "logagent", "logs.db"), DefaultStorePath())
}
