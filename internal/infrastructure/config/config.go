package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Logging   LogConfig       `toml:"logging" yaml:"logging"`
	Terminal  TerminalConfig  `toml:"terminal" yaml:"terminal"`
	Stream    StreamConfig    `toml:"stream" yaml:"stream"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `envconfig:"PORT" toml:"port" yaml:"port"`
	Host            string   `envconfig:"HOST" toml:"host" yaml:"host"`
	ShutdownTimeout Duration `envconfig:"SHUTDOWN_TIMEOUT" toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string `envconfig:"CORS_ORIGINS" toml:"allowed_origins" yaml:"allowed_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development" yaml:"development"`
	Format      string `envconfig:"LOG_FORMAT" toml:"format" yaml:"format"`
}

// TerminalConfig holds session spawning and decoding configuration.
type TerminalConfig struct {
	Shell          string   `envconfig:"TERM_SHELL" toml:"shell" yaml:"shell"`
	Args           []string `envconfig:"TERM_ARGS" toml:"args" yaml:"args"`
	Dir            string   `envconfig:"TERM_DIR" toml:"dir" yaml:"dir"`
	TermType       string   `envconfig:"TERM_TYPE" toml:"term_type" yaml:"term_type"`
	ReadBufferSize int      `envconfig:"TERM_READ_BUFFER" toml:"read_buffer_size" yaml:"read_buffer_size"`
	IdleAfter      Duration `envconfig:"TERM_IDLE_AFTER" toml:"idle_after" yaml:"idle_after"`
	GracePeriod    Duration `envconfig:"TERM_GRACE_PERIOD" toml:"grace_period" yaml:"grace_period"`
	MaxParams      int      `envconfig:"TERM_MAX_PARAMS" toml:"max_params" yaml:"max_params"`
	MaxOSCLength   int      `envconfig:"TERM_MAX_OSC" toml:"max_osc_length" yaml:"max_osc_length"`
	SpawnFailures  int      `envconfig:"TERM_SPAWN_FAILURES" toml:"spawn_failures" yaml:"spawn_failures"`
	SpawnCooldown  Duration `envconfig:"TERM_SPAWN_COOLDOWN" toml:"spawn_cooldown" yaml:"spawn_cooldown"`
}

// StreamConfig holds subscriber fan-out configuration.
type StreamConfig struct {
	QueueSize    int      `envconfig:"STREAM_QUEUE_SIZE" toml:"queue_size" yaml:"queue_size"`
	WriteTimeout Duration `envconfig:"STREAM_WRITE_TIMEOUT" toml:"write_timeout" yaml:"write_timeout"`
	PingInterval Duration `envconfig:"STREAM_PING_INTERVAL" toml:"ping_interval" yaml:"ping_interval"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled" yaml:"enabled"`
}

// Duration is a time.Duration that reads "30s"-style strings from the
// environment, TOML, and YAML alike.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Load builds configuration from defaults, then the optional file at path,
// then environment variables. Later sources win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Terminal.Shell == "" {
		errs = append(errs, errors.New("terminal shell is required"))
	}
	if c.Terminal.ReadBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("terminal read buffer must be positive, got %d", c.Terminal.ReadBufferSize))
	}
	if c.Terminal.GracePeriod < 0 || c.Terminal.IdleAfter < 0 {
		errs = append(errs, errors.New("terminal durations must not be negative"))
	}
	if c.Stream.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("stream queue size must be positive, got %d", c.Stream.QueueSize))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("rate limit requires positive requests per second"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ShutdownTimeout: Duration(10 * time.Second),
			AllowedOrigins:  []string{"*"},
		},
		Logging: LogConfig{
			Level: "info",
		},
		Terminal: TerminalConfig{
			Shell:          "/bin/sh",
			TermType:       "xterm-256color",
			ReadBufferSize: 4096,
			IdleAfter:      Duration(30 * time.Second),
			GracePeriod:    Duration(2 * time.Second),
			MaxParams:      32,
			MaxOSCLength:   1 << 20,
			SpawnFailures:  5,
			SpawnCooldown:  Duration(30 * time.Second),
		},
		Stream: StreamConfig{
			QueueSize:    256,
			WriteTimeout: Duration(10 * time.Second),
			PingInterval: Duration(30 * time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
