package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthModePassword = "password"
	AuthModeGoogle   = "google"

	devSecretKey = "chave-padrao-desenvolvimento"
)

type Config struct {
	Env        string
	ServerPort int
	SecretKey  string
	SessionTTL time.Duration
	// SecureCookies marks the session cookie Secure (HTTPS only).
	SecureCookies bool
	AuthMode      string
	Database      DatabaseConfig
	Google        GoogleConfig
	Calendar      CalendarConfig
	Log           LogConfig
}

// DatabaseConfig selects the backing store. An empty URL means the
// embedded SQLite file at SQLitePath.
type DatabaseConfig struct {
	URL        string
	SQLitePath string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type CalendarConfig struct {
	TimeZone string
	Timeout  time.Duration
	// Endpoint overrides the Calendar API base URL. Empty uses Google's.
	Endpoint string
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadConfig() Config {
	env := getEnv("ENV", "")
	if env == "dev" {
		godotenv.Load()
	}

	secret := getEnv("SECRET_KEY", "")
	if secret == "" && env == "dev" {
		secret = devSecretKey
	}

	return Config{
		Env:           env,
		ServerPort:    getEnvInt("SERVER_PORT", 8080),
		SecretKey:     secret,
		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
		SecureCookies: strings.EqualFold(getEnv("COOKIE_SECURE", "false"), "true"),
		AuthMode:      strings.ToLower(getEnv("AUTH_MODE", AuthModePassword)),
		Database: DatabaseConfig{
			URL:        NormalizeDatabaseURL(getEnv("DATABASE_URL", "")),
			SQLitePath: getEnv("SQLITE_PATH", "keka_recall.db"),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/google/callback"),
		},
		Calendar: CalendarConfig{
			TimeZone: getEnv("CALENDAR_TIMEZONE", "America/Sao_Paulo"),
			Timeout:  getEnvDuration("CALENDAR_TIMEOUT", 10*time.Second),
			Endpoint: getEnv("CALENDAR_ENDPOINT", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Validate reports configuration that would prevent the server from running.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("SECRET_KEY is required")
	}
	switch c.AuthMode {
	case AuthModePassword:
	case AuthModeGoogle:
		if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
			return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required in google auth mode")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	return nil
}

// UsesSQLite reports whether the embedded file-backed store is selected.
func (c DatabaseConfig) UsesSQLite() bool {
	return strings.TrimSpace(c.URL) == ""
}

// NormalizeDatabaseURL rewrites postgresql:// URLs to the postgres://
// scheme expected by the driver and the migrator.
func NormalizeDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "postgresql://") {
		return "postgres://" + strings.TrimPrefix(raw, "postgresql://")
	}
	return raw
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil || value <= 0 {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
