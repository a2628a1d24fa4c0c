package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port            string
	DatabaseURL     string
	JWTSecret       string
	JWTIssuer       string
	SuperAdminEmail string
	CORSOrigins     []string
	LogLevel        string
	MigrateOnStart  bool

	InviteSuccessDisplay time.Duration
	InviteRatePerMinute  int

	SessionCacheSize int
	SessionTTL       time.Duration
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:            fallback(os.Getenv("PORT"), "8080"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:       strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		SuperAdminEmail: strings.ToLower(strings.TrimSpace(os.Getenv("SUPER_ADMIN_EMAIL"))),
		CORSOrigins:     parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		LogLevel:        fallback(os.Getenv("LOG_LEVEL"), "info"),
		MigrateOnStart:  parseBool(os.Getenv("MIGRATE_ON_START")),

		InviteSuccessDisplay: time.Duration(positiveInt(os.Getenv("INVITE_SUCCESS_DISPLAY_MS"), 2500)) * time.Millisecond,
		InviteRatePerMinute:  positiveInt(os.Getenv("INVITE_RATE_PER_MINUTE"), 10),

		SessionCacheSize: positiveInt(os.Getenv("SESSION_CACHE_SIZE"), 256),
		SessionTTL:       time.Duration(positiveInt(os.Getenv("SESSION_TTL_MINUTES"), 60)) * time.Minute,
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.SuperAdminEmail == "" {
		missing = append(missing, "SUPER_ADMIN_EMAIL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if !strings.Contains(cfg.SuperAdminEmail, "@") {
		return Config{}, errors.New("SUPER_ADMIN_EMAIL must be an email address")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(value string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
