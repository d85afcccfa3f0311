package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Reddit API credentials
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	// Communities to poll for finance discussions
	Communities []string

	// Rate limiting
	RequestsPerMinute int
	RateLimitRetries  int
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	// Persistence
	DatabasePath string

	// Ticker universe
	FinnhubAPIKey   string
	FinnhubExchange string

	// Symbol cache staleness threshold
	SymbolCacheTTLHours int

	// Collection defaults
	MinPostScore    int
	MinQualityScore float64
	PostsPerSync    int

	// Sync behavior
	SyncTimeoutMinutes   int
	SyncFreshnessHours   int
	SyncErrorRateLimit   float64
	FinanceSyncSchedule  string
	TrendingSyncSchedule string

	// Snapshot archive (Azure Blob Storage)
	StorageAccount   string
	StorageContainer string

	// Alerting
	TeamsWebhookURL string
	AlertEmail      string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "stockpulse-ingest/1.0"),

		Communities: getSliceEnv("COMMUNITIES", []string{
			"wallstreetbets",
			"stocks",
			"investing",
			"StockMarket",
			"options",
			"SecurityAnalysis",
		}),

		RequestsPerMinute: getIntEnv("RATE_LIMIT_RPM", 60),
		RateLimitRetries:  getIntEnv("RATE_LIMIT_RETRIES", 5),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getIntEnv("REDIS_DB", 0),

		DatabasePath: getEnv("DATABASE_PATH", "stockpulse.db"),

		FinnhubAPIKey:   getEnv("FINNHUB_API_KEY", ""),
		FinnhubExchange: getEnv("FINNHUB_EXCHANGE", "US"),

		SymbolCacheTTLHours: getIntEnv("SYMBOL_CACHE_TTL_HOURS", 24),

		MinPostScore:    getIntEnv("MIN_POST_SCORE", 10),
		MinQualityScore: getFloatEnv("MIN_QUALITY_SCORE", 0.3),
		PostsPerSync:    getIntEnv("POSTS_PER_SYNC", 25),

		SyncTimeoutMinutes:   getIntEnv("SYNC_TIMEOUT_MINUTES", 10),
		SyncFreshnessHours:   getIntEnv("SYNC_FRESHNESS_HOURS", 6),
		SyncErrorRateLimit:   getFloatEnv("SYNC_ERROR_RATE_LIMIT", 0.2),
		FinanceSyncSchedule:  getEnv("FINANCE_SYNC_SCHEDULE", "0 0 */2 * * *"),
		TrendingSyncSchedule: getEnv("TRENDING_SYNC_SCHEDULE", "0 30 */4 * * *"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "collection-snapshots"),

		TeamsWebhookURL: getEnv("TEAMS_WEBHOOK_URL", ""),
		AlertEmail:      getEnv("ALERT_EMAIL", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getIntEnv("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.RedditClientID == "" || c.RedditClientSecret == "" {
		return fmt.Errorf("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are required")
	}

	if len(c.Communities) == 0 {
		return fmt.Errorf("COMMUNITIES must contain at least one community")
	}

	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}

	if c.SymbolCacheTTLHours <= 0 {
		return fmt.Errorf("SYMBOL_CACHE_TTL_HOURS must be positive")
	}

	if c.AlertEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when ALERT_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
