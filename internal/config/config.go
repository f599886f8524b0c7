// Package config loads TelemetryOps settings with Viper from an optional
// YAML file, environment variables and built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/derekk024/TelemetryOps/internal/logging"
	"github.com/derekk024/TelemetryOps/internal/models"
)

// Config holds all runtime configuration.
type Config struct {
	// ── Listeners ────────────────────────────────────────────────────────────
	ServerHost     string `mapstructure:"server_host" yaml:"server_host"`
	IngestPort     int    `mapstructure:"ingest_port" yaml:"ingest_port"`
	AggregatorPort int    `mapstructure:"aggregator_port" yaml:"aggregator_port"`
	ControlPort    int    `mapstructure:"control_port" yaml:"control_port"`
	ServePort      int    `mapstructure:"serve_port" yaml:"serve_port"` // all-in-one

	// ── Sample store ─────────────────────────────────────────────────────────
	DBDriver string `mapstructure:"db_driver" yaml:"db_driver"` // "sqlite" or "postgres"
	DBPath   string `mapstructure:"db_path" yaml:"db_path"`
	DBDSN    string `mapstructure:"db_dsn" yaml:"db_dsn"` // used when db_driver = postgres

	// ── Poll loop ────────────────────────────────────────────────────────────
	AggregatorURL       string            `mapstructure:"aggregator_url" yaml:"aggregator_url"`
	PollInterval        time.Duration     `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollConcurrency     int               `mapstructure:"poll_concurrency" yaml:"poll_concurrency"`
	FetchConnectTimeout time.Duration     `mapstructure:"fetch_connect_timeout" yaml:"fetch_connect_timeout"`
	FetchReadTimeout    time.Duration     `mapstructure:"fetch_read_timeout" yaml:"fetch_read_timeout"`
	FetchWriteTimeout   time.Duration     `mapstructure:"fetch_write_timeout" yaml:"fetch_write_timeout"`
	Thresholds          models.Thresholds `mapstructure:"thresholds" yaml:"thresholds"`
	Watchlist           []string          `mapstructure:"watchlist" yaml:"watchlist"`

	// ── Security ──────────────────────────────────────────────────────────────
	// JWTSecret enables HS256 auth on mutating control routes when set.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	// IngestToken enables "Authorization: Bearer <token>" on POST /telemetry.
	IngestToken string `mapstructure:"ingest_token" yaml:"ingest_token"`

	// DiskFullPercent makes ingest /ready fail once the DB volume is this full.
	DiskFullPercent float64 `mapstructure:"disk_full_percent" yaml:"disk_full_percent"`

	Log logging.Options `mapstructure:"log" yaml:"log"`
}

// Load reads config from path, or from ./config.yaml or
// ~/.telemetryops/config.yaml when path is empty, and falls back to defaults.
// Environment variables with prefix TELEMETRYOPS_ override file values, e.g.
// TELEMETRYOPS_THRESHOLDS_WINDOW_S.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.telemetryops")
	}
	if err := v.ReadInConfig(); err != nil {
		// the file is optional unless named explicitly
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("TELEMETRYOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("ingest_port", 8081)
	v.SetDefault("aggregator_port", 8082)
	v.SetDefault("control_port", 8083)
	v.SetDefault("serve_port", 8080)

	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_path", "data/telemetry.db")
	v.SetDefault("db_dsn", "")

	v.SetDefault("aggregator_url", "http://127.0.0.1:8082")
	v.SetDefault("poll_interval", 5*time.Second)
	v.SetDefault("poll_concurrency", 8)
	v.SetDefault("fetch_connect_timeout", 2*time.Second)
	v.SetDefault("fetch_read_timeout", 2*time.Second)
	v.SetDefault("fetch_write_timeout", 2*time.Second)

	v.SetDefault("thresholds.latency_p95_ms", models.DefaultLatencyP95Ms)
	v.SetDefault("thresholds.drop_rate", models.DefaultDropRate)
	v.SetDefault("thresholds.min_link_quality", models.DefaultMinLinkQuality)
	v.SetDefault("thresholds.window_s", models.DefaultWindowS)
	v.SetDefault("watchlist", []string{"SAT-001", "SAT-002", "SAT-003", "SAT-004", "SAT-005"})

	v.SetDefault("jwt_secret", "")
	v.SetDefault("ingest_token", "")
	v.SetDefault("disk_full_percent", 95.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	for name, port := range map[string]int{
		"ingest_port":     c.IngestPort,
		"aggregator_port": c.AggregatorPort,
		"control_port":    c.ControlPort,
		"serve_port":      c.ServePort,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("config: %s %d out of range", name, port)
		}
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported db_driver %q (use 'sqlite' or 'postgres')", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.DBDSN == "" {
		return fmt.Errorf("config: db_dsn is required when db_driver is postgres")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be > 0")
	}
	if c.PollConcurrency < 1 {
		return fmt.Errorf("config: poll_concurrency must be >= 1")
	}
	if c.FetchConnectTimeout <= 0 || c.FetchReadTimeout <= 0 || c.FetchWriteTimeout <= 0 {
		return fmt.Errorf("config: fetch timeouts must be > 0")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("config: thresholds: %w", err)
	}
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("config: watchlist must be non-empty")
	}
	if c.DiskFullPercent <= 0 || c.DiskFullPercent > 100 {
		return fmt.Errorf("config: disk_full_percent must be in (0,100]")
	}
	return nil
}

// Addr joins ServerHost with port.
func (c *Config) Addr(port int) string {
	return fmt.Sprintf("%s:%d", c.ServerHost, port)
}
