package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR" validate:"required"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DSN" validate:"required"`
}

// RedisConfig is optional; with no address the change feed is disabled
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" env:"ADDR"`
	Password string `yaml:"-" env:"PASSWORD"`
	Channel  string `yaml:"channel,omitempty" env:"CHANNEL"`
}

// RabbitMQConfig is optional; with no URL emails are not queued
type RabbitMQConfig struct {
	URL   string `yaml:"-" env:"URL"`
	Queue string `yaml:"queue,omitempty" env:"QUEUE"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"-" env:"JWT_SECRET" validate:"required,min=16"`
	Issuer    string `yaml:"issuer,omitempty" env:"ISSUER"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapidPublicKey" env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `yaml:"-" env:"VAPID_PRIVATE_KEY"`
	Subscriber      string `yaml:"subscriber" env:"SUBSCRIBER"`
	TTL             int    `yaml:"ttl,omitempty" env:"TTL" validate:"min=0"`
}

type GmailConfig struct {
	OAuthClientFile string `yaml:"oauthClientFile,omitempty" env:"OAUTH_CLIENT_FILE"`
	RefreshToken    string `yaml:"-" env:"REFRESH_TOKEN"`
	Sender          string `yaml:"sender,omitempty" env:"SENDER" validate:"omitempty,email"`
}

type ReminderConfig struct {
	LeadTime time.Duration `yaml:"leadTime" env:"LEAD_TIME" validate:"min=0"`
}

// Config represents the application configuration. Non-secret settings come
// from the YAML file; secrets are overlaid from the environment.
type Config struct {
	Timezone  string         `yaml:"timezone" env:"TIMEZONE" validate:"required"`
	BaseURL   string         `yaml:"baseURL" env:"BASE_URL" validate:"required,url"`
	Capacity  int            `yaml:"defaultCapacity" validate:"min=1"`
	Server    ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Database  DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	Redis     RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	RabbitMQ  RabbitMQConfig `yaml:"rabbitmq" envPrefix:"RABBITMQ_"`
	Auth      AuthConfig     `yaml:"auth" envPrefix:"AUTH_"`
	Push      PushConfig     `yaml:"push" envPrefix:"PUSH_"`
	Gmail     GmailConfig    `yaml:"gmail" envPrefix:"GMAIL_"`
	Reminders ReminderConfig `yaml:"reminders" envPrefix:"REMINDERS_"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads the configuration for env from <env>_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads the configuration from a specific path, applies
// defaults, overlays the environment and validates the result
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// A missing .env file is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "SHIFTS_"}); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return fmt.Errorf("failed to read environment: %w", aggErr.Errors[0])
		}
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/London"
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = 6
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Reminders.LeadTime == 0 {
		cfg.Reminders.LeadTime = 24 * time.Hour
	}
	if cfg.Push.TTL == 0 {
		cfg.Push.TTL = 86400
	}
}

// Validate validates the configuration struct and checks the timezone resolves
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	if (cfg.Push.VAPIDPublicKey == "") != (cfg.Push.VAPIDPrivateKey == "") {
		return fmt.Errorf("config validation failed: both VAPID keys must be set together")
	}

	return nil
}

// Location returns the configured timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PushEnabled reports whether web push delivery is configured
func (c *Config) PushEnabled() bool {
	return c.Push.VAPIDPublicKey != "" && c.Push.VAPIDPrivateKey != ""
}

// findConfigFile searches for <env>_config.yaml in current directory and home directory
func findConfigFile(env string) (string, error) {
	configFileName := fmt.Sprintf("%s_config.yaml", env)

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", configFileName)
}
