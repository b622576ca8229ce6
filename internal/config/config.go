// Package config конфигурация сервера: значения по умолчанию, YAML-файл и
// флаги командной строки (в порядке возрастания приоритета).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/codesync/internal/server/session"
	"github.com/iudanet/codesync/internal/transport"
)

// Драйверы хранилища снимков
const (
	StorageNone   = "none"
	StorageSQLite = "sqlite"
)

// ErrInvalidConfig конфигурация не прошла проверку
var ErrInvalidConfig = errors.New("invalid config")

// Config конфигурация сервера
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Session   SessionConfig   `yaml:"session"`
	Transport TransportConfig `yaml:"transport"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// ShowVersion задается только флагом -version
	ShowVersion bool `yaml:"-"`
}

// ServerConfig параметры HTTP-сервера
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig параметры логирования
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// StorageConfig хранилище снимков координаторов
type StorageConfig struct {
	Driver string `yaml:"driver"` // none, sqlite
	DSN    string `yaml:"dsn"`
}

// SessionConfig параметры координаторов
type SessionConfig struct {
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	AwarenessTimeout time.Duration `yaml:"awareness_timeout"`
	AwarenessGrace   time.Duration `yaml:"awareness_grace"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	SendQueue        int           `yaml:"send_queue"`
}

// TransportConfig параметры websocket-соединений
type TransportConfig struct {
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// RateLimitConfig ограничение частоты подключений с одного IP
type RateLimitConfig struct {
	RPS     float64       `yaml:"rps"` // 0 - без ограничения
	Burst   int           `yaml:"burst"`
	MaxIdle time.Duration `yaml:"max_idle"` // время хранения неактивного лимитера
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	sess := session.DefaultConfig()
	tr := transport.DefaultOptions()

	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Driver: StorageNone,
		},
		Session: SessionConfig{
			IdleTimeout:      sess.IdleTimeout,
			SnapshotInterval: sess.SnapshotInterval,
			HandshakeTimeout: sess.HandshakeTimeout,
			AwarenessTimeout: sess.AwarenessTimeout,
			AwarenessGrace:   sess.AwarenessGrace,
			SweepInterval:    sess.SweepInterval,
			SendQueue:        sess.SendQueue,
		},
		Transport: TransportConfig{
			WriteTimeout:   tr.WriteTimeout,
			PongTimeout:    tr.PongTimeout,
			PingInterval:   tr.PingInterval,
			MaxMessageSize: tr.MaxMessageSize,
		},
		RateLimit: RateLimitConfig{
			RPS:     5,
			Burst:   20,
			MaxIdle: 10 * time.Minute,
		},
	}
}

// Load собирает конфигурацию из аргументов командной строки.
// Флаг -config указывает YAML-файл; явно заданные флаги переопределяют файл.
func Load(args []string, output io.Writer) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("codesync-server", flag.ContinueOnError)
	fs.SetOutput(output)

	configPath := fs.String("config", "", "Path to YAML config file")
	flags := Default()
	fs.BoolVar(&flags.ShowVersion, "version", false, "Show version information")
	fs.StringVar(&flags.Server.Address, "addr", flags.Server.Address, "HTTP listen address")
	fs.StringVar(&flags.Log.Level, "log-level", flags.Log.Level, "Log level: debug, info, warn, error")
	fs.StringVar(&flags.Log.Format, "log-format", flags.Log.Format, "Log format: text, json")
	fs.StringVar(&flags.Storage.Driver, "storage", flags.Storage.Driver, "Snapshot storage: none, sqlite")
	fs.StringVar(&flags.Storage.DSN, "dsn", flags.Storage.DSN, "Snapshot storage DSN (sqlite file path)")
	fs.DurationVar(&flags.Session.IdleTimeout, "idle-timeout", flags.Session.IdleTimeout, "Coordinator lifetime after the last replica leaves")
	fs.DurationVar(&flags.Session.SnapshotInterval, "snapshot-interval", flags.Session.SnapshotInterval, "Snapshot period (0 saves only on shutdown)")
	fs.DurationVar(&flags.Session.AwarenessTimeout, "awareness-timeout", flags.Session.AwarenessTimeout, "Presence timeout")
	fs.Float64Var(&flags.RateLimit.RPS, "rate-limit", flags.RateLimit.RPS, "Connections per second per IP (0 disables)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}

	// Переносим только явно заданные флаги
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "version":
			cfg.ShowVersion = flags.ShowVersion
		case "addr":
			cfg.Server.Address = flags.Server.Address
		case "log-level":
			cfg.Log.Level = flags.Log.Level
		case "log-format":
			cfg.Log.Format = flags.Log.Format
		case "storage":
			cfg.Storage.Driver = flags.Storage.Driver
		case "dsn":
			cfg.Storage.DSN = flags.Storage.DSN
		case "idle-timeout":
			cfg.Session.IdleTimeout = flags.Session.IdleTimeout
		case "snapshot-interval":
			cfg.Session.SnapshotInterval = flags.Session.SnapshotInterval
		case "awareness-timeout":
			cfg.Session.AwarenessTimeout = flags.Session.AwarenessTimeout
		case "rate-limit":
			cfg.RateLimit.RPS = flags.RateLimit.RPS
		}
	})

	if cfg.ShowVersion {
		return cfg, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("%w: server address is empty", ErrInvalidConfig)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}

	switch c.Storage.Driver {
	case "", StorageNone:
	case StorageSQLite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: sqlite storage requires dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if c.Session.AwarenessGrace > c.Session.AwarenessTimeout {
		return fmt.Errorf("%w: awareness grace exceeds awareness timeout", ErrInvalidConfig)
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("%w: negative rate limit", ErrInvalidConfig)
	}

	return nil
}

// SessionOptions параметры для session.NewManager
func (c *Config) SessionOptions() session.Config {
	return session.Config{
		IdleTimeout:      c.Session.IdleTimeout,
		SnapshotInterval: c.Session.SnapshotInterval,
		HandshakeTimeout: c.Session.HandshakeTimeout,
		AwarenessTimeout: c.Session.AwarenessTimeout,
		AwarenessGrace:   c.Session.AwarenessGrace,
		SweepInterval:    c.Session.SweepInterval,
		SendQueue:        c.Session.SendQueue,
	}
}

// TransportOptions параметры websocket-соединений
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		WriteTimeout:   c.Transport.WriteTimeout,
		PongTimeout:    c.Transport.PongTimeout,
		PingInterval:   c.Transport.PingInterval,
		MaxMessageSize: c.Transport.MaxMessageSize,
	}
}

// RateLimitEnabled сообщает, нужно ли ограничивать подключения
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimit.RPS > 0
}

// Limit частота для rate.Limiter
func (c *Config) Limit() rate.Limit {
	return rate.Limit(c.RateLimit.RPS)
}

// NewLogger создает логгер по параметрам Log
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
	}
	return level, nil
}
