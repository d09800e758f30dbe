package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dalfonso89/currency-converter/internal/models"

	"github.com/joho/godotenv"
)

const (
	// APIKeyVariable names the environment variable holding the provider key.
	APIKeyVariable = "EXCHANGERATE_API_KEY"

	defaultCacheDirName = ".currency-converter"
	defaultCacheFile    = "cache.db"
)

// Config holds all configuration for the application
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// exchangerate-api.com
	APIKey      string
	APIBaseURL  string
	APIVersion  string
	HTTPTimeout time.Duration // zero keeps the transport default

	// Persistent cache
	CacheDir  string
	CacheFile string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitBurst    int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8081"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		APIKey:      os.Getenv(APIKeyVariable),
		APIBaseURL:  getEnv("EXCHANGERATE_API_BASE_URL", "https://v6.exchangerate-api.com"),
		APIVersion:  getEnv("EXCHANGERATE_API_VERSION", "v6"),
		HTTPTimeout: time.Duration(atoiOr(getEnv("HTTP_TIMEOUT_SECONDS", "0"), 0)) * time.Second,

		CacheDir:  getEnv("CACHE_DIR", defaultCacheDir()),
		CacheFile: getEnv("CACHE_FILE", defaultCacheFile),

		RateLimitEnabled:  getEnv("RATE_LIMIT_ENABLED", "true") == "true",
		RateLimitRequests: atoiOr(getEnv("RATE_LIMIT_REQUESTS", "100"), 100),
		RateLimitWindow:   time.Duration(atoiOr(getEnv("RATE_LIMIT_WINDOW_SECONDS", "60"), 60)) * time.Second,
		RateLimitBurst:    atoiOr(getEnv("RATE_LIMIT_BURST", "10"), 10),
	}, nil
}

// CachePath is the location of the SQLite cache file.
func (configuration *Config) CachePath() string {
	return filepath.Join(configuration.CacheDir, configuration.CacheFile)
}

// RequireAPIKey fails when no key was configured. An invalid key is only
// detected by the provider.
func (configuration *Config) RequireAPIKey() (string, error) {
	if configuration.APIKey == "" {
		return "", models.NewMissingAPIKeyError(APIKeyVariable)
	}
	return configuration.APIKey, nil
}

// defaultCacheDir is a hidden directory in the user's home, or in the
// working directory when the home cannot be resolved.
func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return defaultCacheDirName
	}
	return filepath.Join(home, defaultCacheDirName)
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func atoiOr(s string, fallback int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return i
}
