package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	OpenAIAPIKey    string
	OpenAIModel     string
	BaseURL         string
	AllowedOrigins  []string
	ShareSecret     string
	ShareTTL        time.Duration
	DataDir         string
	MaxFiles        int
	MaxFileBytes    int64
	MaxTotalBytes   int64
	QuestionCount   int
	StoreExpiryDays int
	PollInterval    time.Duration
	AttachPollLimit int
	RunPollLimit    int
	DebugLog        bool
}

// IsProduction controls whether diagnostic detail is included in error
// responses.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func LoadConfig() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.Environment = envOrDefault("APP_ENV", "development")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = envOrDefault("OPENAI_MODEL", "gpt-4o")

	cfg.BaseURL = envOrDefault("BASE_URL", fmt.Sprintf("http://localhost:%s", cfg.Port))
	cfg.AllowedOrigins = splitList(envOrDefault("ALLOWED_ORIGINS", cfg.BaseURL))
	cfg.ShareSecret = envOrDefault("SHARE_SECRET", "change-me")
	cfg.DataDir = envOrDefault("DATA_DIR", "data")
	cfg.DebugLog = envOrDefault("DEBUG_LOG", "") != ""

	shareTTLSeconds, err := parseIntEnv("SHARE_TTL_SECONDS", 86400)
	if err != nil {
		return Config{}, fmt.Errorf("parse SHARE_TTL_SECONDS: %w", err)
	}
	cfg.ShareTTL = time.Duration(shareTTLSeconds) * time.Second

	maxFiles, err := parseIntEnv("MAX_FILES", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_FILES: %w", err)
	}
	cfg.MaxFiles = int(maxFiles)

	maxFileMB, err := parseIntEnv("MAX_FILE_MB", 20)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_FILE_MB: %w", err)
	}
	cfg.MaxFileBytes = maxFileMB * 1024 * 1024

	maxTotalMB, err := parseIntEnv("MAX_TOTAL_MB", 200)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_TOTAL_MB: %w", err)
	}
	cfg.MaxTotalBytes = maxTotalMB * 1024 * 1024

	questionCount, err := parseIntEnv("QUESTION_COUNT", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse QUESTION_COUNT: %w", err)
	}
	if questionCount < 1 || questionCount > 10 {
		return Config{}, fmt.Errorf("QUESTION_COUNT must be between 1 and 10, got %d", questionCount)
	}
	cfg.QuestionCount = int(questionCount)

	expiryDays, err := parseIntEnv("STORE_EXPIRY_DAYS", 7)
	if err != nil {
		return Config{}, fmt.Errorf("parse STORE_EXPIRY_DAYS: %w", err)
	}
	cfg.StoreExpiryDays = int(expiryDays)

	pollIntervalMS, err := parseIntEnv("POLL_INTERVAL_MS", 1000)
	if err != nil {
		return Config{}, fmt.Errorf("parse POLL_INTERVAL_MS: %w", err)
	}
	cfg.PollInterval = time.Duration(pollIntervalMS) * time.Millisecond

	attachPollLimit, err := parseIntEnv("ATTACH_POLL_LIMIT", 60)
	if err != nil {
		return Config{}, fmt.Errorf("parse ATTACH_POLL_LIMIT: %w", err)
	}
	cfg.AttachPollLimit = int(attachPollLimit)

	runPollLimit, err := parseIntEnv("RUN_POLL_LIMIT", 120)
	if err != nil {
		return Config{}, fmt.Errorf("parse RUN_POLL_LIMIT: %w", err)
	}
	cfg.RunPollLimit = int(runPollLimit)

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	return cfg, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}
