// Package config loads application configuration from the environment, with
// .env files supported for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Gemini        GeminiConfig
	Processing    ProcessingConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
}

type StorageConfig struct {
	LocalPath     string
	SigningSecret string
	PresignTTL    time.Duration
	RetainOutputs time.Duration
}

// GeminiConfig configures the optional AI summarizer. An empty APIKey
// disables summarization entirely rather than failing startup.
type GeminiConfig struct {
	APIKey            string
	Model             string
	MaxTopics         int
	BodyMaxChars      int
	RequestsPerSecond float64
}

type ProcessingConfig struct {
	DefaultMinBudgetM float64
	SummaryTimeBudget time.Duration
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
			AllowedOrigins:     []string{getEnv("CORS_ALLOWED_ORIGIN", "*")},
		},
		Storage: StorageConfig{
			LocalPath:     getEnv("STORAGE_LOCAL_PATH", "./data"),
			SigningSecret: getEnv("STORAGE_SIGNING_SECRET", ""),
			PresignTTL:    getEnvAsDuration("STORAGE_PRESIGN_TTL", 15*time.Minute),
			RetainOutputs: getEnvAsDuration("STORAGE_RETAIN_OUTPUTS", 24*time.Hour),
		},
		Gemini: GeminiConfig{
			APIKey:            getEnv("GEMINI_API_KEY", ""),
			Model:             getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			MaxTopics:         getEnvAsInt("GEMINI_MAX_TOPICS", 25),
			BodyMaxChars:      getEnvAsInt("GEMINI_BODY_MAX_CHARS", 6000),
			RequestsPerSecond: getEnvAsFloat("GEMINI_REQUESTS_PER_SECOND", 1),
		},
		Processing: ProcessingConfig{
			DefaultMinBudgetM: getEnvAsFloat("DEFAULT_MIN_BUDGET_M", 0),
			SummaryTimeBudget: getEnvAsDuration("SUMMARY_TIME_BUDGET", 2*time.Minute),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
