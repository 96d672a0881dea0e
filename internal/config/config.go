// Package config reads PANTRY_* settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	GeminiAPIKey     string
	GeminiModel      string
	ParserTimeout    time.Duration
	CategoryCacheTTL time.Duration
	UnknownCategory  string
	ListLanguage     string

	MaxLines       int
	ParseRateLimit int
	WSOrigins      []string
	TrustProxy     bool
}

// Load reads envFile if it exists, without overriding variables already
// set, then builds the Config. An empty envFile skips the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:            getEnv("PANTRY_PORT", "8080"),
		DBPath:          getEnv("PANTRY_DB_PATH", "pantry.db"),
		LogLevel:        getEnv("PANTRY_LOG_LEVEL", "info"),
		LogFormat:       getEnv("PANTRY_LOG_FORMAT", "text"),
		GeminiAPIKey:    os.Getenv("PANTRY_GEMINI_API_KEY"),
		GeminiModel:     getEnv("PANTRY_GEMINI_MODEL", "gemini-2.0-flash"),
		UnknownCategory: getEnv("PANTRY_UNKNOWN_CATEGORY", "Autre"),
		ListLanguage:    getEnv("PANTRY_LIST_LANGUAGE", "French"),
		WSOrigins:       splitList(os.Getenv("PANTRY_WS_ORIGINS")),
	}

	var err error
	if cfg.ParserTimeout, err = getDuration("PANTRY_PARSER_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}
	if cfg.CategoryCacheTTL, err = getDuration("PANTRY_CATEGORY_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxLines, err = getInt("PANTRY_MAX_LINES", 100); err != nil {
		return nil, err
	}
	if cfg.ParseRateLimit, err = getInt("PANTRY_PARSE_RATE_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.TrustProxy, err = getBool("PANTRY_TRUST_PROXY", false); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid positive integer %q", key, v)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
