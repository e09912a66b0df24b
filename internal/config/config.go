package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port           string
	TrustedProxies []string
	RateLimitRPM   int

	// Backend REST API
	APIBaseURL       string
	APITimeout       time.Duration
	TokenRefreshSkew time.Duration

	// Sessions
	SessionStore      string
	SQLiteDBPath      string
	SessionCookieName string
	SessionTTL        time.Duration
	SessionCacheSize  int
	CookieSecure      bool

	// Caching
	CategoryCacheTTL time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	CleanupSchedule   string
	ActivityRetention time.Duration
	SheetsSyncBatch   int

	// Google Sheets audit export
	SheetsAuditEnabled    bool
	GoogleSpreadsheetID   string
	GoogleAuditSheetName  string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleServiceAccount  string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:5000/api"),
		APITimeout:       getEnvDuration("API_TIMEOUT", 10*time.Second),
		TokenRefreshSkew: getEnvDuration("TOKEN_REFRESH_SKEW", time.Minute),

		SessionStore:      getEnv("SESSION_STORE", "sqlite"),
		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./data/expenso.db"),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "expenso_sid"),
		SessionTTL:        getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		SessionCacheSize:  getEnvInt("SESSION_CACHE_SIZE", 1000),
		CookieSecure:      getEnvBool("COOKIE_SECURE", false),

		CategoryCacheTTL: getEnvDuration("CATEGORY_CACHE_TTL", 15*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenso"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_activity"),

		CleanupSchedule:   getEnv("CLEANUP_SCHEDULE", "@every 1h"),
		ActivityRetention: getEnvDuration("ACTIVITY_RETENTION", 90*24*time.Hour),
		SheetsSyncBatch:   getEnvInt("SHEETS_SYNC_BATCH", 50),

		SheetsAuditEnabled:    getEnvBool("SHEETS_AUDIT_ENABLED", false),
		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleAuditSheetName:  getEnv("GOOGLE_AUDIT_SHEET_NAME", "Activity"),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleServiceAccount:  getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': must be an absolute http(s) URL", c.APIBaseURL))
	}
	if c.APITimeout < 100*time.Millisecond || c.APITimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be between 100ms and 2m", c.APITimeout))
	}
	if c.TokenRefreshSkew < 0 {
		errors = append(errors, "token refresh skew cannot be negative")
	}

	switch c.SessionStore {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite session store")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid session store '%s': must be one of [memory sqlite]", c.SessionStore))
	}

	if c.SessionCookieName == "" || strings.ContainsAny(c.SessionCookieName, " ;,=") {
		errors = append(errors, fmt.Sprintf("invalid session cookie name '%s'", c.SessionCookieName))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid session cache size %d: must be at least 1", c.SessionCacheSize))
	}
	if c.CategoryCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid category cache TTL %v: must be at least 1 second", c.CategoryCacheTTL))
	}
	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}
	for _, p := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be an IP or CIDR", p))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.CleanupSchedule == "" {
		errors = append(errors, "cleanup schedule cannot be empty")
	}
	if c.SheetsSyncBatch < 1 || c.SheetsSyncBatch > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sheets sync batch %d: must be between 1 and 1000", c.SheetsSyncBatch))
	}

	if c.SheetsAuditEnabled {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when sheets audit is enabled")
		}
		if c.GoogleAuditSheetName == "" {
			errors = append(errors, "Google audit sheet name is required when sheets audit is enabled")
		}
		hasOAuth := c.GoogleOAuthClientFile != "" && c.GoogleOAuthTokenFile != ""
		if !hasOAuth && c.GoogleServiceAccount == "" {
			errors = append(errors, "sheets audit needs GOOGLE_OAUTH_CLIENT_FILE and GOOGLE_OAUTH_TOKEN_FILE, or GOOGLE_SERVICE_ACCOUNT_FILE")
		}
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ParseLogLevel maps debug/info/warn/error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
