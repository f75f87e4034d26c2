// Package config loads application configuration from config.yaml with
// environment-variable overrides (dot notation maps to underscores, e.g.
// STREAM_URL).
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Stream  StreamConfig  `mapstructure:"stream"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Assets  []string      `mapstructure:"assets"`
}

type StreamConfig struct {
	URL               string `mapstructure:"url"`
	Reconnect         bool   `mapstructure:"reconnect"`
	ReconnectAttempts int    `mapstructure:"reconnect_attempts"`
	ReconnectDelayMs  int    `mapstructure:"reconnect_delay_ms"`
	Debug             bool   `mapstructure:"debug"`
}

func (s StreamConfig) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectDelayMs) * time.Millisecond
}

type SessionConfig struct {
	Token        string `mapstructure:"token"`
	IsDemo       int    `mapstructure:"is_demo"`
	TournamentID int    `mapstructure:"tournament_id"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`       // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"`      // "json" or "console"
	OutputFile string `mapstructure:"output_file"` // optional log file path
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

// Load reads config.yaml from path (or the working directory when empty)
// and applies environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetDefault("stream.reconnect", true)
	v.SetDefault("stream.reconnect_attempts", 5)
	v.SetDefault("stream.reconnect_delay_ms", 5000)
	v.SetDefault("session.is_demo", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if cfg.Stream.URL == "" {
		return nil, errors.New("config: stream.url is required")
	}
	return &cfg, nil
}
