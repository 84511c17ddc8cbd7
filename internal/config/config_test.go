package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 4444, cfg.Port)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, "linecast.messages", cfg.NATS.Subject)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, cfg, cfg.Sanitize())
}

func TestSanitize(t *testing.T) {
	cfg := Config{
		Port:           70000,
		PollInterval:   -1,
		WriteTimeout:   -1,
		MaxMessageSize: 0,
		LogLevel:       "LOUD",
	}.Sanitize()

	def := Default()
	assert.Equal(t, def.Port, cfg.Port)
	assert.Equal(t, def.PollInterval, cfg.PollInterval)
	assert.Equal(t, def.WriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, def.MaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, def.RateLimit, cfg.RateLimit)
	assert.Equal(t, "info", cfg.LogLevel)

	// zero write timeout means no deadline and is kept
	assert.Equal(t, time.Duration(0), Config{WriteTimeout: 0}.Sanitize().WriteTimeout)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LINECAST_PORT", "5555")
	t.Setenv("LINECAST_POLL_INTERVAL", "250ms")
	t.Setenv("LINECAST_WRITE_TIMEOUT", "3")
	t.Setenv("LINECAST_ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("LINECAST_METRICS", "yes")
	t.Setenv("LINECAST_NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("LINECAST_RATE_LIMIT_BURST", "not-a-number")

	cfg := Default().FromEnv()
	assert.Equal(t, 5555, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, Default().RateLimit.Burst, cfg.RateLimit.Burst, "invalid values fall back")
}

func TestWriteTimeoutZeroMeansNoDeadline(t *testing.T) {
	for _, v := range []string{"0", "0s"} {
		t.Setenv("LINECAST_WRITE_TIMEOUT", v)
		assert.Equal(t, time.Duration(0), Default().FromEnv().Sanitize().WriteTimeout, v)
	}

	t.Setenv("LINECAST_WRITE_TIMEOUT", "-1s")
	assert.Equal(t, Default().WriteTimeout, Default().FromEnv().WriteTimeout)

	path := filepath.Join(t.TempDir(), "linecast.toml")
	require.NoError(t, os.WriteFile(path, []byte("write_timeout_ms = 0\n"), 0o600))
	cfg, err := Default().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Sanitize().WriteTimeout)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linecast.toml")
	err := os.WriteFile(path, []byte(`
port = 6000
poll_interval_ms = 500
console = "0.0.0.0:9090"
metrics = true

[rate_limit]
burst = 10

[nats]
url = "nats://broker:4222"
`), 0o600)
	require.NoError(t, err)

	cfg, err := Default().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "0.0.0.0:9090", cfg.ConsoleAddr)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval, "absent keys keep their value")
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "linecast.messages", cfg.NATS.Subject)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := Default().LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("unknown_key = 1\n"), 0o600))
	_, err = Default().LoadFile(path)
	assert.Error(t, err)
}
