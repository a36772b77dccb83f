// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"salesops-console/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type BillingConfig struct {
	// The billing backend exposes two bases: app-scoped and manager-scoped
	// RPCs. The public settlement stream hangs off ManagerURL.
	AppURL     string        `yaml:"app_url"`
	ManagerURL string        `yaml:"manager_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// TokenKey is where the auth service persists the operator bearer token.
	TokenKey string `yaml:"token_key"`
}

type NotifyConfig struct {
	TelegramToken string `yaml:"telegram_token"`
	ChatID        int64  `yaml:"chat_id"`
}

type SecurityConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	// OperatorKey is exchanged for an operator session at /auth/session.
	OperatorKey string `yaml:"operator_key"`
}

type PackageConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Price      int64  `yaml:"price"`
	DurationMs int64  `yaml:"duration_ms"`
}

type CatalogConfig struct {
	Packages  []PackageConfig `yaml:"packages"`
	Durations []int           `yaml:"durations"` // months
}

type Config struct {
	Log      LogConfig         `yaml:"log"`
	Server   ServerConfig      `yaml:"server"`
	Billing  BillingConfig     `yaml:"billing"`
	Database DatabaseConfig    `yaml:"database"`
	Redis    RedisConfig       `yaml:"redis"`
	Notify   NotifyConfig      `yaml:"notify"`
	Security SecurityConfig    `yaml:"security"`
	Bank     model.BankAccount `yaml:"bank"`
	Catalog  CatalogConfig     `yaml:"catalog"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Billing.Timeout <= 0 {
		cfg.Billing.Timeout = 15 * time.Second
	}
	if cfg.Redis.TokenKey == "" {
		cfg.Redis.TokenKey = "auth_token"
	}
	if cfg.Security.SessionTTL <= 0 {
		cfg.Security.SessionTTL = 30 * time.Minute
	}
	if len(cfg.Catalog.Durations) == 0 {
		cfg.Catalog.Durations = []int{1, 2, 3, 4, 5, 6, 9, 12, 15, 18, 21, 24, 30, 36}
	}

	// Minimal validation
	if cfg.Billing.AppURL == "" || cfg.Billing.ManagerURL == "" {
		return nil, errors.New("billing.app_url and billing.manager_url are required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if len(cfg.Catalog.Packages) == 0 {
		return nil, errors.New("catalog.packages is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// Packages materializes the catalog entries, validating each one.
func (c *Config) Packages() ([]*model.ServicePackage, error) {
	out := make([]*model.ServicePackage, 0, len(c.Catalog.Packages))
	for _, p := range c.Catalog.Packages {
		pkg, err := model.NewServicePackage(p.ID, p.Name, p.Price, p.DurationMs)
		if err != nil {
			return nil, fmt.Errorf("catalog package %q: %w", p.ID, err)
		}
		out = append(out, pkg)
	}
	return out, nil
}

// Durations materializes the selectable terms.
func (c *Config) Durations() []model.DurationOption {
	out := make([]model.DurationOption, 0, len(c.Catalog.Durations))
	for _, m := range c.Catalog.Durations {
		out = append(out, model.DurationOption{Months: m, Label: fmt.Sprintf("%d months", m)})
	}
	return out
}
