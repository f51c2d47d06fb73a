package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"ai-persona-chat/pkg/logger"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string `toml:"port"`
		Env     string `toml:"env"`
		Timeout time.Duration
		BaseURL string `toml:"base_url"`
	} `toml:"server"`

	// Database configuration
	Database struct {
		Host     string `toml:"host"`
		Port     string `toml:"port"`
		User     string `toml:"user"`
		Password string `toml:"password"`
		Name     string `toml:"name"`
		SSLMode  string `toml:"ssl_mode"`
	} `toml:"database"`

	// JWT configuration
	JWT struct {
		Secret string `toml:"secret"`
		Expiry time.Duration
	} `toml:"jwt"`

	// LLM upstream
	LLM struct {
		BaseURL   string `toml:"base_url"`
		APIKey    string `toml:"api_key"`
		Model     string `toml:"model"`
		MaxTokens int    `toml:"max_tokens"`
		Timeout   time.Duration
	} `toml:"llm"`

	// Upload handling
	Uploads struct {
		Dir          string `toml:"dir"`
		MaxThumbSize int64  `toml:"max_thumb_size"`
	} `toml:"uploads"`

	// Redis (history cache + broadcast bus)
	Redis struct {
		Addr       string `toml:"addr"`
		Password   string `toml:"password"`
		DB         int    `toml:"db"`
		HistoryTTL time.Duration
	} `toml:"redis"`

	// Security configuration
	Security struct {
		RateLimit      float64  `toml:"rate_limit"`
		RateLimitBurst int      `toml:"rate_limit_burst"`
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"security"`

	// Logging configuration
	Logging struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"logging"`

	// Cache settings (in-process character cache)
	Cache struct {
		TTL         time.Duration
		MaxSize     int `toml:"max_size"`
		PurgeWindow time.Duration
	} `toml:"cache"`

	// OpenAPI schema used for request validation (skipped when missing)
	OpenAPISchema string `toml:"openapi_schema"`
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables,
// optionally overridden by a TOML file named in CONFIG_FILE.
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "4000")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "persona_chat")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")

		// JWT config. Sessions live for a week and are refreshed on /auth/me.
		instance.JWT.Secret = getEnvString("JWT_SECRET", "dev-secret")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 7*24*time.Hour)

		// LLM upstream
		instance.LLM.BaseURL = getEnvString("ANTHROPIC_BASE_URL", "https://api.anthropic.com")
		instance.LLM.APIKey = getEnvString("ANTHROPIC_API_KEY", "")
		instance.LLM.Model = getEnvString("LLM_MODEL", "claude-3-5-sonnet-20240620")
		instance.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", 512)
		instance.LLM.Timeout = getEnvDuration("LLM_TIMEOUT", 30*time.Second)

		// Uploads
		instance.Uploads.Dir = getEnvString("UPLOAD_DIR", "uploads")
		instance.Uploads.MaxThumbSize = getEnvInt64("MAX_THUMB_SIZE", 2<<20) // 2MB

		// Redis
		instance.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)
		instance.Redis.HistoryTTL = getEnvDuration("HISTORY_CACHE_TTL", time.Minute)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Cache settings
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

		instance.OpenAPISchema = getEnvString("OPENAPI_SCHEMA", "api/openapi.yaml")

		// TOML file override, if present
		if path := getEnvString("CONFIG_FILE", ""); path != "" {
			if _, err := os.Stat(path); err == nil {
				// Decode over the env-derived values; file wins per key
				if _, err := toml.DecodeFile(path, instance); err != nil {
					logger.GetGlobal().Warn("Failed to decode config file",
						"path", path,
						"error", err.Error(),
					)
				}
			}
		}
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
