package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derekk024/TelemetryOps/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.IngestPort)
	assert.Equal(t, 8082, cfg.AggregatorPort)
	assert.Equal(t, 8083, cfg.ControlPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.FetchReadTimeout)
	assert.Equal(t, models.DefaultThresholds(), cfg.Thresholds)
	assert.Equal(t, []string{"SAT-001", "SAT-002", "SAT-003", "SAT-004", "SAT-005"}, cfg.Watchlist)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "0.0.0.0:8083", cfg.Addr(cfg.ControlPort))
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
control_port: 9093
poll_interval: 250ms
thresholds:
  latency_p95_ms: 120
  window_s: 60
watchlist: [SAT-100, SAT-200]
log:
  level: debug
`)
	t.Setenv("TELEMETRYOPS_THRESHOLDS_DROP_RATE", "0.2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9093, cfg.ControlPort)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 120.0, cfg.Thresholds.LatencyP95Ms)
	assert.Equal(t, 60, cfg.Thresholds.WindowS)
	assert.Equal(t, 0.2, cfg.Thresholds.DropRate)
	assert.Equal(t, models.DefaultMinLinkQuality, cfg.Thresholds.MinLinkQuality)
	assert.Equal(t, []string{"SAT-100", "SAT-200"}, cfg.Watchlist)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, "{}\n")
	base, err := Load(path)
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"bad port":        func(c *Config) { c.ControlPort = 0 },
		"unknown driver":  func(c *Config) { c.DBDriver = "mysql" },
		"postgres no dsn": func(c *Config) { c.DBDriver = "postgres" },
		"zero interval":   func(c *Config) { c.PollInterval = 0 },
		"zero timeout":    func(c *Config) { c.FetchConnectTimeout = 0 },
		"bad threshold":   func(c *Config) { c.Thresholds.MinLinkQuality = 2 },
		"empty watchlist": func(c *Config) { c.Watchlist = nil },
		"disk percent":    func(c *Config) { c.DiskFullPercent = 0 },
		"no concurrency":  func(c *Config) { c.PollConcurrency = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
