package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"empathos.app/relay/core/db"
)

type Config struct {
	OTel          OTelConfig
	LLM           LLMConfig
	Drafting      DraftingConfig
	SessionStore  SessionStoreConfig
	Env           string
	Port          string
	DefaultLocale string
	DB            db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64 // Fraction of root traces kept; 1 keeps every drafting request
}

type LLMConfig struct {
	Provider    string // "openai" or "anthropic"
	APIKey      string // Optional: server-side credential used when the operator supplies none
	BaseURL     string // Optional: for custom endpoints
	Model       string
	MaxTokens   int
	Temperature float64
}

// DraftingConfig holds the workflow knobs operators cannot change per session.
type DraftingConfig struct {
	DefaultMode string // "simple" or "advanced"
	WordCeiling int    // Soft reply length ceiling; exceeding it only warns
	DevLog      bool   // Keep a per-session log of every completion exchange
}

type SessionStoreConfig struct {
	Backend  string // "memory" or "redis"
	RedisURL string
	TTL      time.Duration
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeCLI    ServiceType = "cli"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the HTTP server
//   - .env.cli for the command line tool
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("RELAY_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:           getEnv("RELAY_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 4),
			MinConns: getEnvInt32("DB_MIN_CONNS", 1),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "empathos-relay"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", "openai"),
			APIKey:      getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", "")),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			Model:       getEnv("LLM_MODEL", "gpt-4.1"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 650),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.9),
		},
		Drafting: DraftingConfig{
			DefaultMode: getEnv("DEFAULT_MODE", "simple"),
			WordCeiling: getEnvInt("WORD_CEILING", 250),
			DevLog:      getEnvBool("DEV_LOG", true),
		},
		SessionStore: SessionStoreConfig{
			Backend:  getEnv("SESSION_STORE", "memory"),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
			TTL:      getEnvDuration("SESSION_TTL", 12*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or anthropic, got %q", c.LLM.Provider)
	}

	switch c.Drafting.DefaultMode {
	case "simple", "advanced":
	default:
		return fmt.Errorf("DEFAULT_MODE must be simple or advanced, got %q", c.Drafting.DefaultMode)
	}

	if c.Drafting.WordCeiling <= 0 {
		return fmt.Errorf("WORD_CEILING must be positive")
	}

	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1, got %v", c.OTel.SampleRatio)
	}

	switch c.SessionStore.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis, got %q", c.SessionStore.Backend)
	}

	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// HasServerKey reports whether operators may omit their own credential.
func (c LLMConfig) HasServerKey() bool {
	return c.APIKey != ""
}

func (c SessionStoreConfig) UsesRedis() bool {
	return c.Backend == "redis"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
