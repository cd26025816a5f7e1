package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the application configuration.
type Config struct {
	AppEnv    string
	Debug     bool
	LogLevel  string
	Version   string
	BotToken  string
	OwnerID   int64
	SentryDSN string

	MongoDBURI      string
	MongoDBDatabase string

	Port            string
	ChannelURL      string
	GroupURL        string
	DefaultLanguage string

	CacheMaxPerChat      int
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
	TrackingWindow       time.Duration
	EditSessionTTL       time.Duration
	EditSessionMax       int

	UpdatesPerSecond   int
	BroadcastPerSecond int
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on environment variables")
	}

	ownerID, err := getInt64("OWNER_ID", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Debug:           IsTruthy(getEnv("DEBUG", "false")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Version:         getEnv("VERSION", "dev"),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		OwnerID:         ownerID,
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", "susninja"),
		Port:            getEnv("PORT", "10000"),
		ChannelURL:      getEnv("CHANNEL_URL", "https://t.me/WorkGlows"),
		GroupURL:        getEnv("GROUP_URL", "https://t.me/SoulMeetsHQ"),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"CACHE_MAX_PER_CHAT", 1000, &cfg.CacheMaxPerChat},
		{"EDIT_SESSION_MAX", 10000, &cfg.EditSessionMax},
		{"UPDATES_PER_SECOND", 20, &cfg.UpdatesPerSecond},
		{"BROADCAST_PER_SECOND", 25, &cfg.BroadcastPerSecond},
	}
	for _, v := range ints {
		if *v.dest, err = getInt(v.key, v.def); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"CACHE_TTL", time.Hour, &cfg.CacheTTL},
		{"CACHE_CLEANUP_INTERVAL", 5 * time.Minute, &cfg.CacheCleanupInterval},
		{"TRACKING_WINDOW", 2 * time.Hour, &cfg.TrackingWindow},
		{"EDIT_SESSION_TTL", 24 * time.Hour, &cfg.EditSessionTTL},
	}
	for _, v := range durations {
		if *v.dest, err = getDuration(v.key, v.def); err != nil {
			return nil, err
		}
	}

	// Basic validation for essential variables
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.OwnerID == 0 {
		log.Warn().Msg("OWNER_ID is not set. Broadcast is disabled.")
	}
	if cfg.SentryDSN == "" {
		log.Warn().Msg("SENTRY_DSN is not set. Error tracking disabled.")
	}
	if cfg.MongoDBURI == "" {
		log.Warn().Msg("MONGODB_URI is not set. Audience is kept in memory only.")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// getDuration accepts Go duration strings ("90s", "1h") or bare integers as seconds.
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// IsTruthy reports whether an environment variable string should be considered true.
// Accepted values (case-insensitive): "1", "true", "yes", "y", "on".
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
