package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/telhawk-systems/telhawk-bridge/internal/record"
)

const (
	ModeJetStream = "jetstream"
	ModeCore      = "core"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Stream     StreamConfig     `mapstructure:"stream"`
	History    HistoryConfig    `mapstructure:"history"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	DLQ        DLQConfig        `mapstructure:"dlq"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Stats      StatsConfig      `mapstructure:"stats"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Token         string        `mapstructure:"token"`
}

// StreamConfig describes where change events are read from.
type StreamConfig struct {
	// Mode is "jetstream" (durable pull consumer) or "core" (queue group).
	Mode string `mapstructure:"mode"`
	Name string `mapstructure:"name"`
	// Subjects captured by the stream when provisioning.
	Subjects []string `mapstructure:"subjects"`
	// Subject consumed by the workers.
	Subject    string        `mapstructure:"subject"`
	Consumer   string        `mapstructure:"consumer"`
	QueueGroup string        `mapstructure:"queue_group"`
	Workers    int           `mapstructure:"workers"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	MaxMsgs    int64         `mapstructure:"max_msgs"`
	AckWait    time.Duration `mapstructure:"ack_wait"`
}

type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type NormalizerConfig struct {
	KeyCase            string  `mapstructure:"key_case"`
	HighValueThreshold float64 `mapstructure:"high_value_threshold"`
}

type DLQConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Stream  string `mapstructure:"stream"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type StatsConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	// InstanceID defaults to the host name.
	InstanceID string `mapstructure:"instance_id"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configPath, or config.yaml from the working directory or
// /etc/telhawk/bridge, and applies BRIDGE_* environment overrides
// (BRIDGE_STREAM_WORKERS overrides stream.workers).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/telhawk/bridge")
	}

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "telhawk-bridge")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")

	v.SetDefault("stream.mode", ModeJetStream)
	v.SetDefault("stream.name", "CDC_TRANSACTIONS")
	v.SetDefault("stream.subjects", []string{"cdc.>"})
	v.SetDefault("stream.subject", "cdc.transactions")
	v.SetDefault("stream.consumer", "telhawk-bridge")
	v.SetDefault("stream.queue_group", "bridge-workers")
	v.SetDefault("stream.workers", 4)
	v.SetDefault("stream.max_age", "24h")
	v.SetDefault("stream.max_msgs", 1000000)
	v.SetDefault("stream.ack_wait", "30s")

	v.SetDefault("history.capacity", 1000)

	v.SetDefault("normalizer.key_case", "lower")
	v.SetDefault("normalizer.high_value_threshold", 1000.0)

	v.SetDefault("dlq.enabled", false)
	v.SetDefault("dlq.stream", "BRIDGE_DLQ")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("stats.flush_interval", "15s")
	v.SetDefault("stats.instance_id", "")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate rejects settings the bridge cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.History.Capacity < 1 {
		errs = append(errs, fmt.Errorf("history.capacity must be at least 1, got %d", c.History.Capacity))
	}
	if c.Stream.Workers < 1 {
		errs = append(errs, fmt.Errorf("stream.workers must be at least 1, got %d", c.Stream.Workers))
	}
	if c.Stream.Subject == "" {
		errs = append(errs, errors.New("stream.subject is required"))
	}
	switch c.Stream.Mode {
	case ModeJetStream:
		if c.Stream.Name == "" || c.Stream.Consumer == "" {
			errs = append(errs, errors.New("stream.name and stream.consumer are required in jetstream mode"))
		}
	case ModeCore:
		if c.Stream.QueueGroup == "" {
			errs = append(errs, errors.New("stream.queue_group is required in core mode"))
		}
		if c.DLQ.Enabled {
			errs = append(errs, errors.New("dlq requires stream.mode jetstream"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown stream.mode %q (supported: jetstream, core)", c.Stream.Mode))
	}
	if _, err := record.ParseKeyCase(c.Normalizer.KeyCase); err != nil {
		errs = append(errs, fmt.Errorf("normalizer.key_case: %w", err))
	}
	if c.Normalizer.HighValueThreshold < 0 {
		errs = append(errs, errors.New("normalizer.high_value_threshold must not be negative"))
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required when redis is enabled"))
	}

	return errors.Join(errs...)
}

// KeyCase returns the parsed normalizer.key_case.
func (c *Config) KeyCase() record.KeyCase {
	kc, _ := record.ParseKeyCase(c.Normalizer.KeyCase)
	return kc
}
