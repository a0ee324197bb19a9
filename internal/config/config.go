// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var ErrMissingWebhookSecret = errors.New("webhook secret is not configured (set WEBHOOK_SECRET)")

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Log        LogConfig        `mapstructure:"log"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

type ServerConfig struct {
	Port           string `mapstructure:"port"`
	ReadTimeout    int    `mapstructure:"read_timeout"`
	WriteTimeout   int    `mapstructure:"write_timeout"`
	RequestTimeout int    `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	URL            string               `mapstructure:"url"`
	MaxOpenConns   int                  `mapstructure:"max_open_conns"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// ProbeInterval is the store probe period in seconds; zero disables the probe.
	ProbeInterval int `mapstructure:"probe_interval"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

type RedisConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	StatsTTLSeconds int    `mapstructure:"stats_ttl_seconds"`
}

type WebhookConfig struct {
	Secret       string `mapstructure:"secret"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoadConfig reads defaults, then the YAML file at configPath if it exists, then the environment.
// An empty configPath skips the file.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 30)
	v.SetDefault("database.url", "data/app.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.probe_interval", 15)
	v.SetDefault("database.circuit_breaker.max_requests", 3)
	v.SetDefault("database.circuit_breaker.interval", 60)
	v.SetDefault("database.circuit_breaker.timeout", 30)
	v.SetDefault("database.circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("database.circuit_breaker.consecutive_fails", 5)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stats_ttl_seconds", 5)
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.max_body_bytes", 1<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("middleware.rate_limit", 100)
	v.SetDefault("middleware.rate_limit_burst", 1000)
	v.SetDefault("middleware.enable_cors", true)
	v.SetDefault("middleware.allowed_origins", []string{"*"})

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"webhook.secret": "WEBHOOK_SECRET",
		"database.url":   "DATABASE_URL",
		"log.level":      "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate reports configuration the server cannot start without.
func (c *Config) Validate() error {
	if c.Webhook.Secret == "" {
		return ErrMissingWebhookSecret
	}
	return nil
}

// Addr returns the Redis address in host:port form.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
