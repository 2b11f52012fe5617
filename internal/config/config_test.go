package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:9001", cfg.Addr())
	assert.Equal(t, "ws://127.0.0.1:9001/", cfg.URL())
	assert.Equal(t, 10*time.Second, cfg.Upgrader().HandshakeTimeout)
}

func TestParseKDLConfig(t *testing.T) {
	input := `// local overrides
server {
    host "0.0.0.0"
    port 9100
    tick-rate 30
    handshake-timeout 2500
    max-clients 8
    reuse-port true
}

project {
    dir "./game"
    viewport 320 200
}

snapshot {
    dir "snaps"
    diff-threshold 0.05
}

status {
    disable true
}

log {
    level "DEBUG"
    format "json"
}
`
	cfg, err := ParseKDLConfig(input)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Server.TickRate)
	assert.Equal(t, 2500*time.Millisecond, cfg.Server.HandshakeTimeout)
	assert.Equal(t, 8, cfg.Server.MaxClients)
	assert.True(t, cfg.Server.ReusePort)
	assert.Equal(t, "ws://127.0.0.1:9100/", cfg.URL())

	assert.Equal(t, "./game", cfg.Project.Dir)
	assert.Equal(t, 320, cfg.Project.ViewportWidth)
	assert.Equal(t, 200, cfg.Project.ViewportHeight)
	assert.Equal(t, 100, cfg.Project.HistoryLimit, "unset values keep defaults")

	assert.Equal(t, "snaps", cfg.Snapshot.Dir)
	assert.InDelta(t, 0.05, cfg.Snapshot.DiffThreshold, 1e-9)
	assert.Empty(t, cfg.Status.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestHandshakeTimeoutZeroDisables(t *testing.T) {
	cfg, err := ParseKDLConfig("server {\n    handshake-timeout 0\n}\n")
	require.NoError(t, err)
	assert.Zero(t, cfg.Server.HandshakeTimeout)
	assert.Negative(t, int64(cfg.Upgrader().HandshakeTimeout))

	cfg, err = ParseKDLConfig("server {\n    port 9005\n}\n")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Server.HandshakeTimeout)
}

func TestParseKDLConfigError(t *testing.T) {
	_, err := ParseKDLConfig(`server { port "`)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port range", func(c *Config) { c.Server.Port = 70000 }},
		{"tick rate", func(c *Config) { c.Server.TickRate = 0 }},
		{"negative handshake", func(c *Config) { c.Server.HandshakeTimeout = -time.Second }},
		{"tiny messages", func(c *Config) { c.Server.MaxMessageSize = 10 }},
		{"viewport", func(c *Config) { c.Project.ViewportWidth = 0 }},
		{"threshold", func(c *Config) { c.Snapshot.DiffThreshold = 1.5 }},
		{"log level", func(c *Config) { c.Log.Level = "chatty" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SCENEBRIDGE_PORT", "9200")
	t.Setenv("SCENEBRIDGE_HANDSHAKE_TIMEOUT", "750ms")
	t.Setenv("SCENEBRIDGE_WRITE_TIMEOUT", "1500")
	t.Setenv("SCENEBRIDGE_REUSE_PORT", "true")
	t.Setenv("SCENEBRIDGE_SNAPSHOT_DIR", "/tmp/snaps")
	t.Setenv("SCENEBRIDGE_DIFF_THRESHOLD", "0.2")
	t.Setenv("SCENEBRIDGE_LOG_LEVEL", "WARN")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Server.HandshakeTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Server.WriteTimeout)
	assert.True(t, cfg.Server.ReusePort)
	assert.Equal(t, "/tmp/snaps", cfg.Snapshot.Dir)
	assert.InDelta(t, 0.2, cfg.Snapshot.DiffThreshold, 1e-9)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestApplyEnvBadValue(t *testing.T) {
	t.Setenv("SCENEBRIDGE_PORT", "nine")
	err := ApplyEnv(DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCENEBRIDGE_PORT")
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFile)
	require.NoError(t, WriteDefaultConfig(path))

	t.Setenv("SCENEBRIDGE_TICK_RATE", "120")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.TickRate)
	assert.Equal(t, 640, cfg.Project.ViewportWidth)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCENEBRIDGE_TEST_ONLY=yes\n"), 0o644))
	t.Setenv("SCENEBRIDGE_TEST_ONLY", "")
	os.Unsetenv("SCENEBRIDGE_TEST_ONLY")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "yes", os.Getenv("SCENEBRIDGE_TEST_ONLY"))
}
