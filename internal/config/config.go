// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	LogFile          string
	AllowedUsers     []int64

	// MTProto credentials for monitored accounts.
	TelegramAPIID   int
	TelegramAPIHash string
	SessionDir      string
	AccountsFile    string

	MetricsAddr          string
	DuplicateWindowHours int
	FeedPollMinutes      int
	DispatchPerSecond    int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	apiID, err := envInt("TELEGRAM_API_ID", 0)
	if err != nil {
		return nil, err
	}
	window, err := envInt("DUPLICATE_WINDOW_HOURS", 24)
	if err != nil {
		return nil, err
	}
	poll, err := envInt("FEED_POLL_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	perSecond, err := envInt("DISPATCH_PER_SECOND", 20)
	if err != nil {
		return nil, err
	}

	return &Config{
		TelegramBotToken:     token,
		DatabasePath:         envOrDefault("DATABASE_PATH", "./data/bot.db"),
		LogLevel:             envOrDefault("LOG_LEVEL", "info"),
		LogFile:              os.Getenv("LOG_FILE"),
		AllowedUsers:         allowedUsers,
		TelegramAPIID:        apiID,
		TelegramAPIHash:      os.Getenv("TELEGRAM_API_HASH"),
		SessionDir:           envOrDefault("SESSION_DIR", "./data/sessions"),
		AccountsFile:         envOrDefault("ACCOUNTS_FILE", "./data/accounts.yaml"),
		MetricsAddr:          os.Getenv("METRICS_ADDR"),
		DuplicateWindowHours: window,
		FeedPollMinutes:      poll,
		DispatchPerSecond:    perSecond,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}

// HasMTProto reports whether account listeners can be started.
func (c *Config) HasMTProto() bool {
	return c.TelegramAPIID != 0 && c.TelegramAPIHash != ""
}

// DuplicateWindow returns the duplicate suppression window.
func (c *Config) DuplicateWindow() time.Duration {
	return time.Duration(c.DuplicateWindowHours) * time.Hour
}

// FeedPollInterval returns how often feed sources are polled.
func (c *Config) FeedPollInterval() time.Duration {
	return time.Duration(c.FeedPollMinutes) * time.Minute
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, v)
	}
	return v, nil
}
