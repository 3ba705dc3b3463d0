// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type APIConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"` // Supabase project JWT secret (HS256)
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// LambdaConfig locates the remote execution API that runs enrichment jobs.
type LambdaConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"` // per-request HTTP timeout
}

// TellerConfig holds bank-sync credentials. CertFile/KeyFile are the
// client-certificate pair Teller issues per application.
type TellerConfig struct {
	CertFile    string `yaml:"cert_file"`
	KeyFile     string `yaml:"key_file"`
	Environment string `yaml:"environment"` // sandbox | development | production
}

type EnrichConfig struct {
	Workers       int    `yaml:"workers"`         // batch submission workers
	PromptBudget  int    `yaml:"prompt_budget"`   // max prompt tokens per submission
	TokenEncoding string `yaml:"token_encoding"`  // tiktoken encoding name
	DailySyncHour int    `yaml:"daily_sync_hour"` // hour-of-day for account sync sweep
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Lambda   LambdaConfig   `yaml:"lambda"`
	Teller   TellerConfig   `yaml:"teller"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Security SecurityConfig `yaml:"security"`

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
	if cfg.API.Port == 0 {
		cfg.API.Port = 3002
	}
	if cfg.Lambda.Timeout <= 0 {
		cfg.Lambda.Timeout = 30 * time.Second
	}
	if cfg.Enrich.Workers <= 0 {
		cfg.Enrich.Workers = 4
	}
	if cfg.Enrich.PromptBudget <= 0 {
		cfg.Enrich.PromptBudget = 8000
	}
	if cfg.Enrich.TokenEncoding == "" {
		cfg.Enrich.TokenEncoding = "cl100k_base"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// env overrides for secrets
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("LAMBDA_ENDPOINT"); v != "" {
		cfg.Lambda.Endpoint = v
	}
	if v := os.Getenv("LAMBDA_API_KEY"); v != "" {
		cfg.Lambda.APIKey = v
	}
	if v := os.Getenv("SUPABASE_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Lambda.Endpoint == "" {
		return nil, errors.New("lambda.endpoint is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
