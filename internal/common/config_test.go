package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFiles_DefaultsOnly(t *testing.T) {
	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.ConcurrencyFor("generation"))
	assert.Equal(t, 1, cfg.Queue.ConcurrencyFor("publishing"))
	assert.Equal(t, 200, cfg.Retention.KeepCompleted)
	assert.True(t, cfg.Prober.Enabled)
	assert.Len(t, cfg.Prober.Endpoints, 5)
}

func TestLoadFromFiles_FileOverridesDefaults(t *testing.T) {
	path := writeTempFile(t, "autoforge.toml", `
[server]
port = 9999

[queue]
poll_interval = "250ms"
`)

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Queue.PollIntervalDuration())
	// Untouched sections keep defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	first := writeTempFile(t, "first.toml", "[server]\nport = 7001\n")
	second := writeTempFile(t, "second.toml", "[server]\nport = 7002\n")

	cfg, err := LoadFromFiles(first, second)
	require.NoError(t, err)
	assert.Equal(t, 7002, cfg.Server.Port)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	t.Setenv("AUTOFORGE_PORT", "7500")
	path := writeTempFile(t, "autoforge.toml", "[server]\nport = 7001\n")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 7500, cfg.Server.Port)
}

func TestLoadFromFiles_InvalidPortRejected(t *testing.T) {
	path := writeTempFile(t, "autoforge.toml", "[server]\nport = 99999\n")

	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}

func TestLoadFromFiles_MissingFileErrors(t *testing.T) {
	_, err := LoadFromFiles("/no/such/file.toml")
	assert.Error(t, err)
}

func TestLoadEndpointsFile_ReplacesInlineEndpoints(t *testing.T) {
	endpoints := writeTempFile(t, "endpoints.yaml", `
endpoints:
  - name: ping
    path: /api/health
    method: GET
    critical: true
`)
	path := writeTempFile(t, "autoforge.toml", "[prober]\nendpoints_file = \""+endpoints+"\"\n")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)
	require.Len(t, cfg.Prober.Endpoints, 1)
	assert.Equal(t, "ping", cfg.Prober.Endpoints[0].Name)
	assert.True(t, cfg.Prober.Endpoints[0].Critical)
}

func TestDurationHelpers_FallBackOnGarbage(t *testing.T) {
	q := QueueConfig{PollInterval: "not-a-duration", StalledAfter: "", MonitorInterval: "-5m"}

	assert.Equal(t, 500*time.Millisecond, q.PollIntervalDuration())
	assert.Equal(t, 10*time.Minute, q.StalledAfterDuration())
	assert.Equal(t, 5*time.Minute, q.MonitorIntervalDuration())
}

func TestConcurrencyFor_UnknownQueueDefaultsToOne(t *testing.T) {
	q := QueueConfig{Concurrency: map[string]int{"generation": 5}}

	assert.Equal(t, 5, q.ConcurrencyFor("generation"))
	assert.Equal(t, 1, q.ConcurrencyFor("something-else"))
}

func TestApplyFlagOverrides_ZeroValuesIgnored(t *testing.T) {
	cfg := DefaultConfig()

	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)

	ApplyFlagOverrides(cfg, 9000, "0.0.0.0")
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}
