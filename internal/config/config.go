package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Cron trigger
	CronSecret string

	// Source
	SourceBaseURL       string
	SourceSeriesListURL string
	SourceFeedURL       string
	SourceTimeout       time.Duration
	SourceRequestDelay  time.Duration
	SourceMaxBodySize   int64

	// Pipeline
	FreshnessWindow time.Duration
	ScrapeInterval  time.Duration
	RepairInterval  time.Duration

	// Email channel
	ResendAPIKey string
	FromEmail    string

	// Rate Limit
	RateLimitUnsubscribe int

	// Server
	ServerPort string
	BaseURL    string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.CronSecret = os.Getenv("CRON_SECRET")
	if cfg.CronSecret == "" {
		missing = append(missing, "CRON_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SourceBaseURL = getEnvString("SOURCE_BASE_URL", "https://comick.io")
	// 購読可能タイトル一覧のURL。未設定のままFetchSubscribableTitlesを呼ぶと
	// SourceMisconfiguredとなる。
	cfg.SourceSeriesListURL = getEnvString("SOURCE_SERIES_LIST_URL", "")
	// 設定するとスクレイパーの代わりにRSS/Atomフィードをソースとして使う。
	cfg.SourceFeedURL = getEnvString("SOURCE_FEED_URL", "")
	cfg.SourceTimeout = getEnvDuration("SOURCE_TIMEOUT", 30*time.Second)
	cfg.SourceRequestDelay = getEnvDuration("SOURCE_REQUEST_DELAY", 2*time.Second)
	cfg.SourceMaxBodySize = getEnvInt64("SOURCE_MAX_BODY_SIZE", 5242880)
	cfg.FreshnessWindow = getEnvDuration("FRESHNESS_WINDOW", 10*time.Minute)
	cfg.ScrapeInterval = getEnvDuration("SCRAPE_INTERVAL", 5*time.Minute)
	cfg.RepairInterval = getEnvDuration("REPAIR_INTERVAL", 24*time.Hour)
	cfg.ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	cfg.FromEmail = getEnvString("FROM_EMAIL", "notifications@shinkan.example")
	cfg.RateLimitUnsubscribe = getEnvInt("RATE_LIMIT_UNSUBSCRIBE", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
