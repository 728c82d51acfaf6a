// Package config provides environment configuration for the API server.
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
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	WhatsApp  WhatsAppConfig
	LLM       LLMConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// DatabaseConfig configures Postgres. An empty DSN selects the in-memory
// store.
type DatabaseConfig struct {
	DSN      string
	MaxConns int
}

// RedisConfig configures webhook deduplication. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	DedupTTL time.Duration
}

type NATSConfig struct {
	Enabled  bool
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	AppSecret     string
	APIBaseURL    string
	Timeout       time.Duration
	AutoReply     bool
	MarkAsRead    bool
}

// LLMConfig selects the reply generator. An empty Provider keeps the
// keyword heuristics.
type LLMConfig struct {
	Provider        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	BaseURL         string
	Model           string
	MaxTokens       int
	Temperature     float64
	Timeout         time.Duration
}

// JWTConfig configures API authentication. AdminScope, when set, is
// required on analytics routes.
type JWTConfig struct {
	Secret     string
	AdminScope string
}

type RateLimitConfig struct {
	Requests        int
	Window          time.Duration
	WebhookRequests int
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
	Insecure bool
}

// Load reads configuration from environment variables, after loading a
// .env file when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getIntEnv("PORT", 8080),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			CORSOrigins:  getListEnv("CORS_ORIGINS"),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			DedupTTL: getDurationEnv("REDIS_DEDUP_TTL", 24*time.Hour),
		},
		NATS: NATSConfig{
			Enabled:  getBoolEnv("NATS_ENABLED", false),
			URL:      getEnv("NATS_URL", "nats://localhost:4222"),
			CAFile:   getEnv("NATS_CA_FILE", ""),
			CertFile: getEnv("NATS_CERT_FILE", ""),
			KeyFile:  getEnv("NATS_KEY_FILE", ""),
			Token:    getEnv("NATS_TOKEN", ""),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			VerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
			AppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
			APIBaseURL:    getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v18.0"),
			Timeout:       getDurationEnv("WHATSAPP_TIMEOUT", 30*time.Second),
			AutoReply:     getBoolEnv("WHATSAPP_AUTO_REPLY", true),
			MarkAsRead:    getBoolEnv("WHATSAPP_MARK_AS_READ", false),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(getEnv("LLM_PROVIDER", "")),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			Model:           getEnv("LLM_MODEL", ""),
			MaxTokens:       getIntEnv("LLM_MAX_TOKENS", 500),
			Temperature:     getFloatEnv("LLM_TEMPERATURE", 0.7),
			Timeout:         getDurationEnv("LLM_TIMEOUT", 30*time.Second),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			AdminScope: getEnv("JWT_ADMIN_SCOPE", ""),
		},
		RateLimit: RateLimitConfig{
			Requests:        getIntEnv("RATE_LIMIT_REQUESTS", 60),
			Window:          getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			WebhookRequests: getIntEnv("RATE_LIMIT_WEBHOOK_REQUESTS", 600),
		},
		Tracing: TracingConfig{
			Enabled:  getBoolEnv("TRACING_ENABLED", false),
			Endpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
			Insecure: getBoolEnv("TRACING_INSECURE", true),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LLMAPIKey returns the key of the configured provider.
func (c *Config) LLMAPIKey() string {
	switch c.LLM.Provider {
	case "openai":
		return c.LLM.OpenAIAPIKey
	case "anthropic":
		return c.LLM.AnthropicAPIKey
	}
	return ""
}

func (c *Config) validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Server.Port))
	}
	switch c.LLM.Provider {
	case "":
	case "openai", "anthropic":
		if c.LLMAPIKey() == "" {
			errs = append(errs, fmt.Errorf("LLM provider %s requires an API key", c.LLM.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider))
	}
	if c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping empty items.
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
