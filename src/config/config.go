package config

import (
	cryptoRand "crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/khabaroff/apikey-rotator/src/models"
)

// Config holds application configuration
type Config struct {
	Port           int
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string // empty = any origin

	// State store
	StoreBackend models.StoreBackend
	StorePath    string // file document or sqlite database
	DatabaseURL  string
	RedisURL     string
	RedisKey     string
	StoreTimeout time.Duration

	// Seed file applied at startup
	KeysFile string

	// Encryption at rest
	EncryptionKey         string // 64 hex chars = 32 bytes AES-256 key; empty = disabled
	AllowPlaintextMigrate bool   // accept an unencrypted pool document once, it is sealed on the next save

	// Admin API
	JWTSecret     string
	AdminUsername string
	AdminPassword string

	// Throttling of the key endpoints, per client IP
	RateLimitPerMinute int
	RateLimitBurst     int

	// HMAC signatures on confirm/failure requests
	RequestSigningSecret   string
	EnableRequestSignature bool
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port:           getEnvInt("PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),

		StoreBackend: models.StoreBackend(strings.ToLower(getEnv("STORE_BACKEND", string(models.StoreFile)))),
		StorePath:    getEnv("STORE_PATH", "data/keys.json"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisKey:     getEnv("REDIS_KEY", "keyrotator:pool"),
		StoreTimeout: time.Duration(getEnvInt("STORE_TIMEOUT_MS", 5000)) * time.Millisecond,

		KeysFile: getEnv("KEYS_FILE", "keys.yaml"),

		EncryptionKey:         getEnv("ENCRYPTION_KEY", ""),
		AllowPlaintextMigrate: getEnvBool("ENCRYPTION_MIGRATE_PLAINTEXT", false),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 30),

		RequestSigningSecret:   getEnv("REQUEST_SIGNING_SECRET", ""),
		EnableRequestSignature: getEnvBool("ENABLE_REQUEST_SIGNATURE", false),
	}

	// Generate JWT secret if not provided
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = generateRandomSecret(32)
	}

	return cfg
}

// Validate checks the combinations Load cannot default away
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if !c.StoreBackend.Valid() {
		return fmt.Errorf("unsupported STORE_BACKEND: %q", c.StoreBackend)
	}
	if c.StoreBackend == models.StorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}
	if c.StoreBackend == models.StoreRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis backend")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT_MS must be positive")
	}
	if c.EnableRequestSignature && c.RequestSigningSecret == "" {
		return fmt.Errorf("REQUEST_SIGNING_SECRET is required when ENABLE_REQUEST_SIGNATURE is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
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

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// splitList parses a comma separated list, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// generateRandomSecret generates a cryptographically secure random secret for JWT signing
func generateRandomSecret(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	if _, err := cryptoRand.Read(result); err != nil {
		panic("failed to generate random secret: " + err.Error())
	}
	for i := range result {
		result[i] = charset[result[i]%byte(len(charset))]
	}
	return string(result)
}
