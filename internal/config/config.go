package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Admin session tokens
	JWTSecret  string
	SessionTTL time.Duration
	BcryptCost int

	// Public API request throttling (per IP + route)
	RateLimitReqs   int
	RateLimitWindow int

	// Login throttling (per client IP)
	LoginMaxAttempts   int
	LoginWindow        time.Duration
	LoginSweepInterval time.Duration

	// HubSpot CMS
	HubSpotAccessToken string
	HubSpotAPIURL      string
	HubSpotRPM         int
	BlogCacheTTL       time.Duration

	// Audit trail (optional, MongoDB)
	MongoURI string
	DBName   string

	// Telemetry
	OTLPEndpoint   string
	OTELSampleRate float64

	// Seed
	SeedAdminUsername string
	SeedAdminPassword string
	SeedAdminEmail    string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),
		BcryptCost: getEnvInt("BCRYPT_COST", 10),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		LoginMaxAttempts:   getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:        getEnvDuration("LOGIN_WINDOW", 15*time.Minute),
		LoginSweepInterval: getEnvDuration("LOGIN_SWEEP_INTERVAL", 30*time.Minute),

		HubSpotAccessToken: getEnv("HUBSPOT_ACCESS_TOKEN", ""),
		HubSpotAPIURL:      getEnv("HUBSPOT_API_URL", "https://api.hubapi.com/cms/v3/blogs/posts"),
		HubSpotRPM:         getEnvInt("HUBSPOT_RPM", 100),
		BlogCacheTTL:       getEnvDuration("BLOG_CACHE_TTL", time.Hour),

		MongoURI: getEnv("MONGO_URI", ""),
		DBName:   getEnv("DB_NAME", "altotrafico"),

		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRate: getEnvFloat64("OTEL_SAMPLE_RATIO", 0.1),

		SeedAdminUsername: getEnv("SEED_ADMIN_USERNAME", "admin"),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@altotrafico.ai"),
	}

	// Validate required fields
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET is required and must be at least 32 characters - set it in .env file")
	}

	return cfg, nil
}

// IsRelease reports whether gin runs in release mode; cookies are Secure only then.
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
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
