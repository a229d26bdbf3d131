// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
)

type Config struct {
	// HTTP server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage
	StoreBackend  string
	MongoURI      string
	MongoDatabase string
	SQLiteDBPath  string

	// Command interpreter
	GeminiAPIKey        string
	GeminiModel         string
	InterpretTimeout    time.Duration
	CompletionMaxTokens int
	Categories          []string
	FallbackCategory    string
	Timezone            string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Transaction events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Exports and analytics
	GCSBucket       string
	BigQueryProject string
	BigQueryDataset string
	ExportWorkers   int
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		StoreBackend:  getEnv("STORE_BACKEND", BackendMongo),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "dompet"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/dompet.db"),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		InterpretTimeout:    getEnvDuration("INTERPRET_TIMEOUT", 8*time.Second),
		CompletionMaxTokens: getEnvInt("COMPLETION_MAX_TOKENS", 500),
		Categories:          getEnvList("CATEGORIES", nil),
		FallbackCategory:    getEnv("FALLBACK_CATEGORY", "Other"),
		Timezone:            getEnv("TZ_NAME", "UTC"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 7*24*time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "dompet"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transactions_mirror"),

		GCSBucket:       getEnv("GCS_BUCKET", ""),
		BigQueryProject: getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "dompet"),
		ExportWorkers:   getEnvInt("EXPORT_WORKERS", 2),
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the settings every binary needs. Binary-specific
// requirements (JWT secret, BigQuery project) are checked by RequireAPI and
// RequireWorker.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, "MONGO_URI cannot be empty when using mongo backend")
		}
		if c.MongoDatabase == "" {
			errs = append(errs, "MONGO_DATABASE cannot be empty when using mongo backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid store backend '%s': must be one of %v",
			c.StoreBackend, []string{BackendMemory, BackendMongo, BackendSQLite}))
	}

	if c.InterpretTimeout <= 0 || c.InterpretTimeout > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid interpret timeout %v: must be between 0 and 1 minute", c.InterpretTimeout))
	}
	if c.CompletionMaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("invalid completion max tokens %d: must be at least 1", c.CompletionMaxTokens))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportWorkers < 1 || c.ExportWorkers > 32 {
		errs = append(errs, fmt.Sprintf("invalid export workers %d: must be between 1 and 32", c.ExportWorkers))
	}

	return joinErrors(errs)
}

// RequireAPI checks what the HTTP API needs on top of Validate.
func (c *Config) RequireAPI() error {
	var errs []string
	if len(c.JWTSecret) < 16 {
		errs = append(errs, "JWT_SECRET must be at least 16 characters")
	}
	if c.TokenTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}
	return joinErrors(errs)
}

// RequireWorker checks what the analytics mirror worker needs.
func (c *Config) RequireWorker() error {
	var errs []string
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP_URL is required for the worker")
	}
	if c.BigQueryProject == "" {
		errs = append(errs, "BIGQUERY_PROJECT is required for the worker")
	}
	if c.BigQueryDataset == "" {
		errs = append(errs, "BIGQUERY_DATASET is required for the worker")
	}
	return joinErrors(errs)
}

func joinErrors(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
