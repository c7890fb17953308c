package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Storage
	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Sessions
	SessionSecret    string
	SessionTTL       time.Duration
	SigninRateLimit  int
	SigninRateWindow time.Duration

	// Orders
	OrderTTL      time.Duration
	SweepInterval time.Duration

	// Payment gateway
	GatewayURL      string
	GatewayKey      string
	GatewayHMACKey  string
	GatewayTimeout  time.Duration
	GatewayCurrency string

	// Relay
	UpstreamURL string
	RelayPort   string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first, and CONFIG_FILE may name a YAML file
// whose values act as defaults under the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	l := &loader{file: map[string]string{}}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := l.readFile(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		// Server
		Port:        l.getEnv("PORT", "8090"),
		Environment: l.getEnv("ENVIRONMENT", "development"),

		// Storage
		DatabaseDriver: l.getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    l.getEnv("DATABASE_URL", "ticket-market.db"),
		RedisURL:       l.getEnv("REDIS_URL", ""),

		// PubNub
		PubNubPublishKey:   l.getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: l.getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    l.getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       l.getEnv("PUBNUB_USER_ID", "ticket-market"),

		// Sessions
		SessionSecret:    l.getEnv("SESSION_SECRET", ""),
		SessionTTL:       l.getEnvAsDuration("SESSION_TTL", "24h"),
		SigninRateLimit:  l.getEnvAsInt("SIGNIN_RATE_LIMIT", 5),
		SigninRateWindow: l.getEnvAsDuration("SIGNIN_RATE_WINDOW", "1m"),

		// Orders
		OrderTTL:      l.getEnvAsDuration("ORDER_TTL", "900s"),
		SweepInterval: l.getEnvAsDuration("SWEEP_INTERVAL", "5s"),

		// Payment gateway
		GatewayURL:      l.getEnv("GATEWAY_URL", ""),
		GatewayKey:      l.getEnv("GATEWAY_KEY", ""),
		GatewayHMACKey:  l.getEnv("GATEWAY_HMAC_KEY", ""),
		GatewayTimeout:  l.getEnvAsDuration("GATEWAY_TIMEOUT", "10s"),
		GatewayCurrency: l.getEnv("GATEWAY_CURRENCY", "usd"),

		// Relay
		UpstreamURL: l.getEnv("UPSTREAM_URL", "http://localhost:8090"),
		RelayPort:   l.getEnv("RELAY_PORT", "3000"),

		// Monitoring
		EnableMetrics: l.getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   l.getEnv("METRICS_PORT", "9090"),
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks the settings a server cannot start without.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.IsProduction() && len(c.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 bytes in production")
	}
	if c.OrderTTL <= 0 {
		return errors.New("ORDER_TTL must be positive")
	}
	return nil
}

type loader struct {
	file map[string]string
}

// readFile loads a flat YAML mapping. Keys are matched case-insensitively
// against the environment variable names.
func (l *loader) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	for k, v := range raw {
		l.file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return nil
}

func (l *loader) getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := l.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (l *loader) getEnvAsInt(key string, defaultValue int) int {
	valueStr := l.getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func (l *loader) getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := l.getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func (l *loader) getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := l.getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
