package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadOptions represents options for loading configuration
type LoadOptions struct {
	Path string
	// EnvFiles are loaded into the process environment before overrides
	// are applied; missing files are ignored. Defaults to ".env".
	EnvFiles []string
}

// Load builds the configuration from defaults, an optional file and the
// environment, in that order of precedence.
func Load(opts ...LoadOptions) (*Config, error) {
	cfg := Default()

	var options LoadOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.Path != "" {
		if err := loadFromFile(cfg, options.Path); err != nil {
			return nil, err
		}
	}

	envFiles := options.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	loadEnvFiles(envFiles)

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}

// loadEnvFiles never overrides variables already set in the environment.
func loadEnvFiles(paths []string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

func loadFromEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return NewConfigError("PORT", "must be an integer")
		}
		cfg.Server.Port = p
	}

	if host := os.Getenv("RABBITMQ_HOST"); host != "" {
		cfg.Broker.Host = host
	}
	if port := os.Getenv("RABBITMQ_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return NewConfigError("RABBITMQ_PORT", "must be an integer")
		}
		cfg.Broker.Port = p
	}
	if user := os.Getenv("RABBITMQ_USER"); user != "" {
		cfg.Broker.User = user
	}
	if pass := os.Getenv("RABBITMQ_PASS"); pass != "" {
		cfg.Broker.Password = pass
	}
	if vhost := os.Getenv("RABBITMQ_VHOST"); vhost != "" {
		cfg.Broker.VHost = vhost
	}

	if backend := os.Getenv("STORE_BACKEND"); backend != "" {
		cfg.Store.Backend = strings.ToLower(backend)
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Store.RedisURL = redisURL
	}
	if maxMessages := os.Getenv("STORE_MAX_MESSAGES"); maxMessages != "" {
		n, err := strconv.ParseInt(maxMessages, 10, 64)
		if err != nil {
			return NewConfigError("STORE_MAX_MESSAGES", "must be an integer")
		}
		cfg.Store.MaxMessages = n
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field '%s': %s", e.Field, e.Message)
}
