package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Storage: StorageConfig{DataPath: "/data", Backend: BackendBadger},
		Analytics: AnalyticsConfig{
			HistoryTTL:        30 * 24 * time.Hour,
			MaxHistoryEntries: 20,
			AnalyticsTTL:      60 * 24 * time.Hour,
			MinAnalyticsCount: 2,
			TrimQueryKeys:     true,
			SuggestionMode:    SuggestSubstring,
			CleanupInterval:   time.Hour,
		},
		Server: ServerConfig{Port: "8080", RateLimitRPS: 20, RateLimitBurst: 40},
	}
}

// noEnvFile points LoadConfig at a file that does not exist.
func noEnvFile(t *testing.T) string {
	t.Helper()
	return "-env-file=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadConfig_Defaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := LoadConfig([]string{noEnvFile(t), "-data-path", dataDir})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, dataDir, cfg.Storage.DataPath)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)

	assert.Equal(t, 720*time.Hour, cfg.Analytics.HistoryTTL)
	assert.Equal(t, 20, cfg.Analytics.MaxHistoryEntries)
	assert.Equal(t, 1440*time.Hour, cfg.Analytics.AnalyticsTTL)
	assert.Equal(t, 2, cfg.Analytics.MinAnalyticsCount)
	assert.True(t, cfg.Analytics.TrimQueryKeys)
	assert.Equal(t, SuggestSubstring, cfg.Analytics.SuggestionMode)
	assert.Equal(t, time.Hour, cfg.Analytics.CleanupInterval)

	assert.Empty(t, cfg.Catalog.Path)
	assert.False(t, cfg.Catalog.Watch)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 20.0, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, 40, cfg.Server.RateLimitBurst)

	assert.Equal(t, filepath.Join(dataDir, "badger"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join(dataDir, "search"), cfg.SearchIndexPath())
}

func TestLoadConfig_FlagBeatsEnv(t *testing.T) {
	t.Setenv("MAX_HISTORY_ENTRIES", "50")
	t.Setenv("SUGGESTION_MODE", "fuzzy")
	t.Setenv("TRIM_QUERY_KEYS", "false")

	cfg, err := LoadConfig([]string{noEnvFile(t), "-data-path", t.TempDir(), "-max-history", "5"})
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Analytics.MaxHistoryEntries)
	assert.Equal(t, SuggestFuzzy, cfg.Analytics.SuggestionMode)
	assert.False(t, cfg.Analytics.TrimQueryKeys)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	content := "# comment\n\nSTORAGE_BACKEND=sqlite\nALLOWED_ORIGINS=\"http://a.test, http://b.test\"\nHISTORY_TTL=48h\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	// loadEnvFile sets process env; restore it afterwards.
	for _, key := range []string{"STORAGE_BACKEND", "ALLOWED_ORIGINS", "HISTORY_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig([]string{"-env-file", envPath, "-data-path", dir})
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(dir, "fitcoach.db"), cfg.DatabasePath())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 48*time.Hour, cfg.Analytics.HistoryTTL)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad duration", []string{"-history-ttl", "soon"}},
		{"bad backend", []string{"-storage-backend", "postgres"}},
		{"bad mode", []string{"-suggestion-mode", "regex"}},
		{"bad rps", []string{"-rate-limit-rps", "fast"}},
		{"watch without catalog", []string{"-catalog-watch", "true"}},
		{"unknown flag", []string{"-nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{noEnvFile(t), "-data-path", t.TempDir()}, tt.args...)
			_, err := LoadConfig(args)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MalformedEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(envPath, []byte("NOT_A_PAIR\n"), 0o600))

	_, err := LoadConfig([]string{"-env-file", envPath, "-data-path", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"staging", func(c *Config) { c.App.Environment = "staging" }, false},
		{"environment is case sensitive", func(c *Config) { c.App.Environment = "PRODUCTION" }, true},
		{"level is case insensitive", func(c *Config) { c.Logger.Level = "DEBUG" }, false},
		{"bad level", func(c *Config) { c.Logger.Level = "trace" }, true},
		{"empty data path", func(c *Config) { c.Storage.DataPath = "" }, true},
		{"zero history cap", func(c *Config) { c.Analytics.MaxHistoryEntries = 0 }, true},
		{"zero min count", func(c *Config) { c.Analytics.MinAnalyticsCount = 0 }, true},
		{"zero ttl", func(c *Config) { c.Analytics.HistoryTTL = 0 }, true},
		{"cleanup disabled", func(c *Config) { c.Analytics.CleanupInterval = 0 }, false},
		{"negative cleanup", func(c *Config) { c.Analytics.CleanupInterval = -time.Second }, true},
		{"rate limit disabled", func(c *Config) { c.Server.RateLimitRPS, c.Server.RateLimitBurst = 0, 0 }, false},
		{"rate limit without burst", func(c *Config) { c.Server.RateLimitBurst = 0 }, true},
		{"watch with path", func(c *Config) { c.Catalog = CatalogConfig{Path: "/x.csv", Watch: true} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/fitcoach", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "fitcoach"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("/a/../b/", "")
	require.NoError(t, err)
	assert.Equal(t, "/b", got)
}

func TestGetValueHelpers(t *testing.T) {
	t.Setenv("FITCOACH_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getIntConfigValue("", "FITCOACH_TEST_INT", 7))
	assert.Equal(t, 3, getIntConfigValue("3", "FITCOACH_TEST_INT", 7))

	t.Setenv("FITCOACH_TEST_BOOL", "YES")
	assert.True(t, getBoolConfigValue("", "FITCOACH_TEST_BOOL", false))
	assert.False(t, getBoolConfigValue("off", "FITCOACH_TEST_BOOL", true))

	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
