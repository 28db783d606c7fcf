package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	AuthNone  = "none"
	AuthDev   = "dev"
	AuthToken = "token"
)

type Config struct {
	Addr       string           `yaml:"addr"`
	Auth       AuthConfig       `yaml:"auth"`
	EventsDB   string           `yaml:"eventsDb"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	Log        LogConfig        `yaml:"log"`
	Pagination PaginationConfig `yaml:"pagination"`
}

type AuthConfig struct {
	// Mode is none|dev|token.
	Mode       string        `yaml:"mode"`
	SecretFile string        `yaml:"secretFile"`
	TokenTTL   time.Duration `yaml:"tokenTTL"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PaginationConfig struct {
	DefaultLimit uint64 `yaml:"defaultLimit"`
	MaxLimit     uint64 `yaml:"maxLimit"`
}

func Default() Config {
	return Config{
		Addr: "127.0.0.1:3340",
		Auth: AuthConfig{
			Mode:     AuthDev,
			TokenTTL: 30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     30,
			Burst:   60,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Pagination: PaginationConfig{
			DefaultLimit: 50,
			MaxLimit:     500,
		},
	}
}

// Load layers defaults, the optional YAML file at path, then TODO_* env vars.
func Load(path string) (Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := env("TODO_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := env("TODO_AUTH_MODE"); v != "" {
		cfg.Auth.Mode = v
	}
	if v := env("TODO_SECRET_FILE"); v != "" {
		cfg.Auth.SecretFile = v
	}
	if v := env("TODO_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: TODO_TOKEN_TTL: %w", err)
		}
		cfg.Auth.TokenTTL = d
	}
	if v := env("TODO_EVENTS_DB"); v != "" {
		cfg.EventsDB = v
	}
	if v := env("TODO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("TODO_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := env("TODO_RATE_LIMIT_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: TODO_RATE_LIMIT_ENABLED: %w", err)
		}
		cfg.RateLimit.Enabled = b
	}
	if v := env("TODO_RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: TODO_RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimit.RPS = f
	}
	if v := env("TODO_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: TODO_RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimit.Burst = n
	}
	return nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

// Validate normalises the config in place and reports the first invalid setting.
func (c *Config) Validate() error {
	c.Addr = strings.TrimSpace(c.Addr)
	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	c.Auth.SecretFile = strings.TrimSpace(c.Auth.SecretFile)
	c.EventsDB = strings.TrimSpace(c.EventsDB)

	if c.Addr == "" {
		return errors.New("config: addr is empty")
	}
	switch c.Auth.Mode {
	case AuthNone, AuthDev, AuthToken:
	default:
		return fmt.Errorf("config: invalid auth mode %q (expected none|dev|token)", c.Auth.Mode)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: auth.tokenTTL must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("config: rateLimit.rps and rateLimit.burst must be positive when enabled")
	}
	if c.Pagination.DefaultLimit == 0 || c.Pagination.MaxLimit == 0 {
		return errors.New("config: pagination limits must be positive")
	}
	if c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		return errors.New("config: pagination.defaultLimit exceeds pagination.maxLimit")
	}
	return nil
}

// DefaultSecretFile is where token signing keys live when none is configured.
func DefaultSecretFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "todo", "secret.key"), nil
}
