package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/uitrace/gateway/internal/gateway/service"
)

type Config struct {
	Env       string // Environment (development, staging, production) (default: development)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	Port                int           // HTTP server port (default: 8080)
	AllowedOrigin       string        // Origin accepted for WebSocket upgrades (default: *)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	Issuer        string        // Issuer claim for minted tokens
	AccessSecret  string        // Required outside development: HS256 secret for access tokens
	RefreshSecret string        // Required outside development: HS256 secret for refresh tokens
	AccessTTL     time.Duration // Access token lifetime (default: 30 days)
	RefreshTTL    time.Duration // Refresh token lifetime (default: 60 days)

	DatabaseFile string // Path to SQLite extension registry (default: ./gateway.db)

	// Bootstrap key for a single extension, letting a fresh deployment
	// verify signed requests before anything is registered. The PEM
	// usually arrives through an env var with literal \n sequences.
	ExtensionID        string
	ExtensionPublicKey string

	SkipSignature bool // Development only: accept unsigned requests
	SkipAuthn     bool // Development only: accept tokenless requests
}

func LoadConfig() Config {
	cfg := Config{
		Env:       getEnvOrDefault("ENV", "development"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		Port:                getEnvIntOrDefault("PORT", 8080),
		AllowedOrigin:       getEnvOrDefault("ALLOWED_ORIGIN", "*"),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		Issuer:        getEnvOrDefault("GATEWAY_ISSUER", "extension-gateway"),
		AccessSecret:  os.Getenv("JWT_SECRET"),
		RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		AccessTTL:     getEnvDurationOrDefault("ACCESS_TOKEN_TTL", service.DefaultAccessTokenTTL),
		RefreshTTL:    getEnvDurationOrDefault("REFRESH_TOKEN_TTL", service.DefaultRefreshTokenTTL),

		DatabaseFile: getEnvOrDefault("GATEWAY_DATABASE_FILE", "gateway.db"),

		ExtensionID:        os.Getenv("EXTENSION_ID"),
		ExtensionPublicKey: strings.ReplaceAll(os.Getenv("EXTENSION_PUBLIC_KEY"), `\n`, "\n"),

		SkipSignature: getEnvBoolOrDefault("SKIP_SIGNATURE_VERIFICATION", false),
		SkipAuthn:     getEnvBoolOrDefault("SKIP_TOKEN_VALIDATION", false),
	}

	return cfg
}

// Validate rejects configurations that would weaken the credential
// chain. Dev bypasses are confined to the development environment so a
// copied .env can't silently disable auth in production.
func (cfg Config) Validate() error {
	dev := cfg.Env == "development"

	if !dev {
		if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
			return errors.New("JWT_SECRET and JWT_REFRESH_SECRET are required outside development")
		}
		if cfg.SkipSignature || cfg.SkipAuthn {
			return errors.New("auth bypasses are only permitted in development")
		}
	}

	if cfg.AccessSecret != "" && cfg.AccessSecret == cfg.RefreshSecret {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if cfg.RefreshTTL <= cfg.AccessTTL {
		return fmt.Errorf("refresh TTL (%s) must exceed access TTL (%s)", cfg.RefreshTTL, cfg.AccessTTL)
	}

	if cfg.ExtensionID != "" && cfg.ExtensionPublicKey == "" {
		return errors.New("EXTENSION_PUBLIC_KEY is required when EXTENSION_ID is set")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer days, matching how the lifetimes are
	// usually quoted in deployment notes
	if days, err := strconv.Atoi(value); err == nil {
		return time.Duration(days) * 24 * time.Hour
	}

	return defaultValue
}
