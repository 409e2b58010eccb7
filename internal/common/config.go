package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	DocProcessor DocProcessorConfig
	Providers    ProvidersConfig
	Storage      StorageConfig
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DocProcessorConfig points at the OCR/PDF collaborator service.
type DocProcessorConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ProvidersConfig holds language-model provider credentials and defaults.
type ProvidersConfig struct {
	Default        string
	OpenAIKey      string
	OpenAIModel    string
	AnthropicKey   string
	AnthropicModel string
	Timeout        time.Duration
	// TwoStepImages routes images through the OCR service first and escalates
	// to vision only on low confidence, instead of calling vision directly.
	TwoStepImages bool
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	Root string
	// CacheDriver selects the cache store backend: "postgres" or "sqlite".
	CacheDriver string
	SQLitePath  string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			RequestTimeout:  getEnvAsDuration("HTTP_REQUEST_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		DocProcessor: DocProcessorConfig{
			BaseURL: getEnv("DOC_PROCESSOR_URL", "http://localhost:8000"),
			Timeout: getEnvAsDuration("DOC_PROCESSOR_TIMEOUT", 60*time.Second),
		},
		Providers: ProvidersConfig{
			Default:        getEnv("LLM_PROVIDER", "openai"),
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
			TwoStepImages:  getEnvAsBool("EXTRACT_TWO_STEP_IMAGES", false),
		},
		Storage: StorageConfig{
			Root:        getEnv("STORAGE_ROOT", "./data/uploads"),
			CacheDriver: getEnv("CACHE_DRIVER", "postgres"),
			SQLitePath:  getEnv("CACHE_SQLITE_PATH", "./data/cache.db"),
		},
	}
}

// Validate checks the loaded configuration before startup.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.DocProcessor.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "DOC_PROCESSOR_URL is required", ErrInvalidInput)
	}
	if c.Providers.OpenAIKey == "" && c.Providers.AnthropicKey == "" {
		return NewAppError("CONFIG_ERROR", "at least one provider API key is required", ErrProviderConfig)
	}
	switch c.Storage.CacheDriver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "CACHE_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
