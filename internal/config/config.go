package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the daemon configuration.
const (
	DefaultHTTPPort         = 8080
	DefaultDatabasePath     = "data/homewatch.db"
	DefaultDockerHost       = "unix:///var/run/docker.sock"
	DefaultProbeTimeout     = 5 * time.Second
	DefaultMonitorInterval  = 30 * time.Second
	DefaultDeliveryInterval = 10 * time.Second
	DefaultDeliveryBatch    = 50
	DefaultSendTimeout      = 10 * time.Second
	DefaultRetentionDays    = 30
)

// Duration wraps time.Duration so interval values can be written as "30s",
// "10m" or "24h" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full daemon configuration parsed from config.yaml.
type Config struct {
	// HTTPPort is the port the admin API, WebSocket feed and /metrics
	// endpoint listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	Database  DatabaseConfig  `yaml:"database"`
	Probe     ProbeConfig     `yaml:"probe"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Retention RetentionConfig `yaml:"retention"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProbeConfig selects and tunes the liveness probe backend.
type ProbeConfig struct {
	// Mode is one of: docker | static. "static" swaps the Docker Engine
	// probe for an in-memory fake, useful for demos and tests.
	Mode string `yaml:"mode"`

	// DockerHost is the Docker Engine endpoint, e.g.
	// unix:///var/run/docker.sock or tcp://127.0.0.1:2375.
	DockerHost string `yaml:"docker_host"`

	// Timeout bounds a single probe call.
	Timeout Duration `yaml:"timeout"`
}

// MonitorConfig tunes the monitoring cycle loop.
type MonitorConfig struct {
	// Interval is the delay between monitoring cycles.
	Interval Duration `yaml:"interval"`
}

// DeliveryConfig tunes the notification delivery loop.
type DeliveryConfig struct {
	// Interval is the delay between scans for undelivered events.
	Interval Duration `yaml:"interval"`

	// BatchSize caps how many pending events one scan picks up.
	BatchSize int `yaml:"batch_size"`

	// SendTimeout bounds a single channel send (SMTP or HTTP).
	SendTimeout Duration `yaml:"send_timeout"`
}

// RetentionConfig controls the daily cleanup of old rows.
type RetentionConfig struct {
	// Days is how long monitor points, events and deliveries are kept.
	// Zero or negative disables the sweep.
	Days int `yaml:"days"`
}

// LogConfig controls slog output.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation. A missing file yields the pure defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		HTTPPort: DefaultHTTPPort,
		Database: DatabaseConfig{Path: DefaultDatabasePath},
		Probe: ProbeConfig{
			Mode:       "docker",
			DockerHost: DefaultDockerHost,
			Timeout:    Duration(DefaultProbeTimeout),
		},
		Monitor: MonitorConfig{Interval: Duration(DefaultMonitorInterval)},
		Delivery: DeliveryConfig{
			Interval:    Duration(DefaultDeliveryInterval),
			BatchSize:   DefaultDeliveryBatch,
			SendTimeout: Duration(DefaultSendTimeout),
		},
		Retention: RetentionConfig{Days: DefaultRetentionDays},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d is out of range [1, 65535]", cfg.HTTPPort)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	switch cfg.Probe.Mode {
	case "docker", "static":
	default:
		return fmt.Errorf("probe.mode %q unknown: want docker|static", cfg.Probe.Mode)
	}
	if cfg.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if cfg.Delivery.Interval <= 0 {
		return fmt.Errorf("delivery.interval must be positive")
	}
	if cfg.Delivery.BatchSize <= 0 {
		return fmt.Errorf("delivery.batch_size must be positive")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}
	return nil
}
