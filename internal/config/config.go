// Package config loads service configuration with viper.
//
// SOURCES, lowest to highest priority:
//  1. defaults set in Load
//  2. an optional puffing.yaml in the working directory or /etc/puffing
//  3. environment variables (PORT, DB_PATH, EXECUTOR, ...)
//
// Keys use mapstructure tags so nested YAML sections flatten to env names:
// docker.pool_size ↔ DOCKER_POOL_SIZE.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Executor backends.
const (
	BackendLocal  = "local"
	BackendDocker = "docker"
)

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ExecutorConfig struct {
	Backend        string `mapstructure:"executor"`
	MaxOutputBytes int    `mapstructure:"max_output_bytes"`
	MaxDepth       int    `mapstructure:"max_depth"`
}

type DockerConfig struct {
	Image       string        `mapstructure:"image"`
	PoolSize    int           `mapstructure:"pool_size"`
	MemoryLimit int64         `mapstructure:"memory_limit"`
	CPULimit    float64       `mapstructure:"cpu_limit"`
	Grace       time.Duration `mapstructure:"grace"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type RateLimitConfig struct {
	Rate  float64 `mapstructure:"rate_limit"` // requests per second per client IP; 0 disables
	Burst int     `mapstructure:"rate_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"log_level"`
	Format string `mapstructure:"log_format"`
}

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Executor  ExecutorConfig  `mapstructure:",squash"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Auth      AuthConfig      `mapstructure:",squash"`
	RateLimit RateLimitConfig `mapstructure:",squash"`
	Log       LogConfig       `mapstructure:",squash"`
	DBPath    string          `mapstructure:"db_path"`
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 5000)
	v.SetDefault("environment", "production")
	v.SetDefault("shutdown_timeout", 30*time.Second)

	v.SetDefault("executor", BackendLocal)
	v.SetDefault("max_output_bytes", 1<<20)
	v.SetDefault("max_depth", 0)

	v.SetDefault("docker.image", "puffing-runner:latest")
	v.SetDefault("docker.pool_size", 3)
	v.SetDefault("docker.memory_limit", 128*1024*1024)
	v.SetDefault("docker.cpu_limit", 0.5)
	v.SetDefault("docker.grace", 2*time.Second)

	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", time.Hour)

	v.SetDefault("rate_limit", 5.0)
	v.SetDefault("rate_burst", 10)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("db_path", "data/puffing.db")
}

// Load reads configuration from defaults, an optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("puffing")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/puffing")

	// docker.pool_size → DOCKER_POOL_SIZE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Server.Port)
	}
	switch c.Executor.Backend {
	case BackendLocal, BackendDocker:
	default:
		return fmt.Errorf("config: unknown EXECUTOR %q (want %q or %q)", c.Executor.Backend, BackendLocal, BackendDocker)
	}
	if c.Executor.Backend == BackendDocker && c.Docker.PoolSize <= 0 {
		return fmt.Errorf("config: DOCKER_POOL_SIZE must be positive, got %d", c.Docker.PoolSize)
	}
	if c.RateLimit.Rate < 0 {
		return fmt.Errorf("config: RATE_LIMIT must not be negative, got %v", c.RateLimit.Rate)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive, got %s", c.Auth.TokenTTL)
	}
	return nil
}
