package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Remote clinic API
	ClinicAPIBaseURL string
	ClinicAPIToken   string
	ClinicAPITimeout time.Duration

	// Session storage
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	SessionSecret     string
	SessionTTL        time.Duration
	SessionCookieName string
	SecureCookies     bool

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitPerSecond int

	// Audit trail (optional)
	DatabaseURL string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Medical report links
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ReportURLExpiry     time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ClinicAPIBaseURL: getEnv("CLINIC_API_BASE_URL", "http://localhost:3001/api"),
		ClinicAPIToken:   getEnv("CLINIC_API_TOKEN", ""),
		ClinicAPITimeout: getEnvAsDuration("CLINIC_API_TIMEOUT", 15*time.Second),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionTTL:        getEnvAsDuration("SESSION_TTL", 12*time.Hour),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "curasync_session"),
		SecureCookies:     getEnvAsBool("SECURE_COOKIES", env == "production"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerSecond: getEnvAsInt("RATE_LIMIT_PER_SECOND", 20),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "CuraSync"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ReportURLExpiry:     getEnvAsDuration("REPORT_URL_EXPIRY", 15*time.Minute),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
