package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config represents configuration loaded from YAML.
type Config struct {
	Port          string      `yaml:"port"`
	LogLevel      string      `yaml:"logLevel"`
	PublicBaseURL string      `yaml:"publicBaseURL"`
	JWTSecret     string      `yaml:"jwtSecret"`
	JWTIssuer     string      `yaml:"jwtIssuer"`
	EmailDomains  []string    `yaml:"emailDomains"`
	MaxBodyBytes  int64       `yaml:"maxBodyBytes"`
	Store         StoreConfig `yaml:"store"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver        string `yaml:"driver"`
	DatabaseURL   string `yaml:"databaseURL"`
	MaxConns      int32  `yaml:"maxConns"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisPrefix   string `yaml:"redisPrefix"`
}

// Defaults returns the configuration used when neither file nor environment
// sets a value.
func Defaults() Config {
	return Config{
		Port:          "8080",
		LogLevel:      "info",
		PublicBaseURL: "http://localhost:8080",
		JWTIssuer:     "signflow",
		EmailDomains:  []string{"gmail.com"},
		MaxBodyBytes:  8 << 20,
		Store: StoreConfig{
			Driver:      StoreMemory,
			MaxConns:    10,
			RedisPrefix: "signflow",
		},
	}
}

// Load reads config from path, applies environment overrides and validates
// the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// Override with environment variables
	if v := os.Getenv("SIGNFLOW_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("SIGNFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SIGNFLOW_PUBLIC_URL"); v != "" {
		cfg.PublicBaseURL = v
	}
	if v := os.Getenv("SIGNFLOW_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("SIGNFLOW_EMAIL_DOMAINS"); v != "" {
		cfg.EmailDomains = splitList(v)
	}
	if v := os.Getenv("SIGNFLOW_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("SIGNFLOW_STORE"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")

	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or SIGNFLOW_PORT)")
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return fmt.Errorf("config: port must be numeric, got %q", cfg.Port)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set in config.yaml or SIGNFLOW_JWT_SECRET)")
	}
	u, err := url.Parse(cfg.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: publicBaseURL must be an absolute URL, got %q", cfg.PublicBaseURL)
	}
	if cfg.MaxBodyBytes <= 0 {
		return errors.New("config: maxBodyBytes must be > 0")
	}
	switch cfg.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if cfg.Store.DatabaseURL == "" {
			return errors.New("config: store.databaseURL is required for the postgres store (or DATABASE_URL)")
		}
		if cfg.Store.MaxConns < 0 {
			return errors.New("config: store.maxConns must be >= 0")
		}
	case StoreRedis:
		if cfg.Store.RedisAddr == "" {
			return errors.New("config: store.redisAddr is required for the redis store (or REDIS_ADDR)")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q (want memory, postgres or redis)", cfg.Store.Driver)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
