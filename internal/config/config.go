// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Suggestion modes.
const (
	SuggestSubstring = "substring"
	SuggestFuzzy     = "fuzzy"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Storage   StorageConfig
	Analytics AnalyticsConfig
	Catalog   CatalogConfig
	Server    ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects and locates the key-value engine.
type StorageConfig struct {
	DataPath string // Directory for the KV engine and the search index
	Backend  string // badger (default) or sqlite
}

// AnalyticsConfig holds the search history retention policy.
type AnalyticsConfig struct {
	HistoryTTL        time.Duration // History entries older than this are removed (default: 720h)
	MaxHistoryEntries int           // Newest entries kept per profile (default: 20)
	AnalyticsTTL      time.Duration // Idle time after which rare queries are dropped (default: 1440h)
	MinAnalyticsCount int           // Queries used at least this often are never dropped (default: 2)
	TrimQueryKeys     bool          // Trim surrounding whitespace before keying a query (default: true)
	SuggestionMode    string        // substring (default) or fuzzy
	CleanupInterval   time.Duration // Background cleanup period; 0 disables (default: 1h)
}

// CatalogConfig locates the exercise catalog.
type CatalogConfig struct {
	Path  string // CSV or JSON file imported at startup; optional
	Watch bool   // Re-import when the file changes (default: false)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string      // CORS origins (default: *)
	RateLimitRPS   float64       // Requests per second per client IP; 0 disables (default: 20)
	RateLimitBurst int           // Burst per client IP (default: 40)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("fitcoach", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	dataPath := fs.String("data-path", "", "Directory for database and search index")
	backend := fs.String("storage-backend", "", "Storage engine (badger, sqlite)")

	historyTTL := fs.String("history-ttl", "", "Search history retention (default: 720h)")
	maxHistory := fs.String("max-history", "", "Search history entries kept per profile (default: 20)")
	analyticsTTL := fs.String("analytics-ttl", "", "Idle time before rare queries are dropped (default: 1440h)")
	minCount := fs.String("analytics-min-count", "", "Use count that protects a query from cleanup (default: 2)")
	trimKeys := fs.String("trim-query-keys", "", "Trim whitespace before keying queries (default: true)")
	suggestMode := fs.String("suggestion-mode", "", "Suggestion matching (substring, fuzzy)")
	cleanupInterval := fs.String("cleanup-interval", "", "Background cleanup period, 0 disables (default: 1h)")

	catalogPath := fs.String("catalog", "", "Exercise catalog file (.csv or .json)")
	catalogWatch := fs.String("catalog-watch", "", "Re-import the catalog when it changes (default: false)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma-separated CORS origins (default: *)")
	rateRPS := fs.String("rate-limit-rps", "", "Requests per second per client, 0 disables (default: 20)")
	rateBurst := fs.String("rate-limit-burst", "", "Burst size per client (default: 40)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	if err := loadEnvFile(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
			Backend:  strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendBadger)),
		},
		Analytics: AnalyticsConfig{
			MaxHistoryEntries: getIntConfigValue(*maxHistory, "MAX_HISTORY_ENTRIES", 20),
			MinAnalyticsCount: getIntConfigValue(*minCount, "ANALYTICS_MIN_COUNT", 2),
			TrimQueryKeys:     getBoolConfigValue(*trimKeys, "TRIM_QUERY_KEYS", true),
			SuggestionMode:    strings.ToLower(getConfigValue(*suggestMode, "SUGGESTION_MODE", SuggestSubstring)),
		},
		Catalog: CatalogConfig{
			Path:  getConfigValue(*catalogPath, "CATALOG_PATH", ""),
			Watch: getBoolConfigValue(*catalogWatch, "CATALOG_WATCH", false),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "*")),
			RateLimitBurst: getIntConfigValue(*rateBurst, "RATE_LIMIT_BURST", 40),
		},
	}

	rps, err := strconv.ParseFloat(getConfigValue(*rateRPS, "RATE_LIMIT_RPS", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit rps: %w", err)
	}
	cfg.Server.RateLimitRPS = rps

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
		name     string
	}{
		{&cfg.Analytics.HistoryTTL, *historyTTL, "HISTORY_TTL", "720h", "history ttl"},
		{&cfg.Analytics.AnalyticsTTL, *analyticsTTL, "ANALYTICS_TTL", "1440h", "analytics ttl"},
		{&cfg.Analytics.CleanupInterval, *cleanupInterval, "CLEANUP_INTERVAL", "1h", "cleanup interval"},
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s", "read timeout"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", "write timeout"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", "idle timeout"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if cfg.Catalog.Path != "" {
		expanded, err := expandPath(cfg.Catalog.Path, "")
		if err != nil {
			return nil, fmt.Errorf("invalid catalog path: %w", err)
		}
		cfg.Catalog.Path = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}
	switch c.Storage.Backend {
	case BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("invalid storage backend: %q (must be badger or sqlite)", c.Storage.Backend)
	}

	a := c.Analytics
	if a.HistoryTTL <= 0 || a.AnalyticsTTL <= 0 {
		return errors.New("history and analytics ttl must be positive")
	}
	if a.MaxHistoryEntries <= 0 {
		return fmt.Errorf("max history entries must be positive, got %d", a.MaxHistoryEntries)
	}
	if a.MinAnalyticsCount <= 0 {
		return fmt.Errorf("analytics min count must be positive, got %d", a.MinAnalyticsCount)
	}
	if a.CleanupInterval < 0 {
		return errors.New("cleanup interval cannot be negative")
	}
	switch a.SuggestionMode {
	case SuggestSubstring, SuggestFuzzy:
	default:
		return fmt.Errorf("invalid suggestion mode: %q (must be substring or fuzzy)", a.SuggestionMode)
	}

	if c.Catalog.Watch && c.Catalog.Path == "" {
		return errors.New("catalog watch requires a catalog path")
	}

	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return errors.New("rate limit values cannot be negative")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst == 0 {
		return errors.New("rate limit burst must be positive when rate limiting is enabled")
	}

	return nil
}

// SearchIndexPath is where the exercise index lives.
func (c *Config) SearchIndexPath() string {
	return filepath.Join(c.Storage.DataPath, "search")
}

// DatabasePath is the badger directory or the sqlite file.
func (c *Config) DatabasePath() string {
	if c.Storage.Backend == BackendSQLite {
		return filepath.Join(c.Storage.DataPath, "fitcoach.db")
	}
	return filepath.Join(c.Storage.DataPath, "badger")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults the data directory to ~/FitCoach/data.
func (c *Config) expandDataPath() error {
	var defaultPath string
	if c.Storage.DataPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		defaultPath = filepath.Join(homeDir, "FitCoach", "data")
	}

	expanded, err := expandPath(c.Storage.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables take precedence over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
