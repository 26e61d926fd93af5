package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/HMasataka/sensorlink/logging"
)

const DefaultQueue = "userNotification"

// Config represents the application configuration
type Config struct {
	Server  ServerConfig   `json:"server" yaml:"server"`
	Broker  BrokerConfig   `json:"broker" yaml:"broker"`
	Store   StoreConfig    `json:"store" yaml:"store"`
	Logging logging.Config `json:"logging" yaml:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// BrokerConfig holds the RabbitMQ connection settings
type BrokerConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	VHost    string `json:"vhost" yaml:"vhost"`
	Queue    string `json:"queue" yaml:"queue"`
}

// StoreConfig selects the message repository
type StoreConfig struct {
	Backend     string `json:"backend" yaml:"backend"`
	RedisURL    string `json:"redis_url" yaml:"redis_url"`
	RedisKey    string `json:"redis_key" yaml:"redis_key"`
	MaxMessages int64  `json:"max_messages" yaml:"max_messages"`
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Broker: BrokerConfig{
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
			VHost:    "/",
			Queue:    DefaultQueue,
		},
		Store: StoreConfig{
			Backend:  StoreMemory,
			RedisURL: "redis://localhost:6379/0",
			RedisKey: "sensorlink:messages",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL builds the AMQP URI. The vhost is path-escaped so the default "/"
// becomes "%2F".
func (b BrokerConfig) URL() string {
	u := url.URL{
		Scheme:  "amqp",
		User:    url.UserPassword(b.User, b.Password),
		Host:    net.JoinHostPort(b.Host, strconv.Itoa(b.Port)),
		Path:    "/" + b.VHost,
		RawPath: "/" + url.PathEscape(b.VHost),
	}
	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Server.ReadTimeout < 0 {
		return NewConfigError("server.read_timeout", "timeout cannot be negative")
	}

	if c.Server.WriteTimeout < 0 {
		return NewConfigError("server.write_timeout", "timeout cannot be negative")
	}

	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		return NewConfigError("broker.port", "invalid port number")
	}

	if c.Broker.Host == "" {
		return NewConfigError("broker.host", "host is required")
	}

	if c.Broker.Queue == "" {
		return NewConfigError("broker.queue", "queue name is required")
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return NewConfigError("store.redis_url", "required for the redis backend")
		}
	default:
		return NewConfigError("store.backend", fmt.Sprintf("unknown backend %q", c.Store.Backend))
	}

	if c.Store.MaxMessages < 0 {
		return NewConfigError("store.max_messages", "cannot be negative")
	}

	return nil
}
