package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// MediaServer contains connection settings for the Emby/Jellyfin compatible
// server whose cast lists are reconciled and written back.
type MediaServer struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	UserID         string `toml:"user_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Regional contains configuration for the regional film database.
type Regional struct {
	Enabled            bool   `toml:"enabled"`
	BaseURL            string `toml:"base_url"`
	APIKey             string `toml:"api_key"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	DetailCacheEntries int    `toml:"detail_cache_entries"`
}

// Translation controls name and role translation into the target language.
type Translation struct {
	Enabled        bool   `toml:"enabled"`
	TargetLanguage string `toml:"target_language"`
	CacheEntries   int    `toml:"cache_entries"`
}

// LLM contains shared LLM connection settings used by the translation engine.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Reconcile tunes the cast reconciliation engine.
type Reconcile struct {
	MaxCastSize int `toml:"max_cast_size"`
	// TargetScripts lists Unicode script names (e.g. "Han"). When empty the
	// scripts are derived from translation.target_language.
	TargetScripts []string `toml:"target_scripts"`
	FuzzyMatch    bool     `toml:"fuzzy_match"`
}

// RateLimit configures the adaptive cooldown between external calls.
type RateLimit struct {
	FloorMS      int `toml:"floor_ms"`
	CeilingMS    int `toml:"ceiling_ms"`
	RecoverAfter int `toml:"recover_after"`
}

// Workflow contains configuration for worker timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for castsync.
//
// Configuration sections by subsystem:
//   - Paths: database and log directories
//   - MediaServer: source of the current cast and write-back target
//   - TMDB: metadata API credits and bridge-id lookups
//   - Regional: regional film database cast and person detail
//   - Translation/LLM: target-language translation of names and roles
//   - Reconcile: cast cap and target scripts
//   - RateLimit: cooldown between external calls
//   - Workflow: queue polling intervals
//   - Logging: log format, level, and rotation
type Config struct {
	Paths       Paths       `toml:"paths"`
	MediaServer MediaServer `toml:"media_server"`
	TMDB        TMDB        `toml:"tmdb"`
	Regional    Regional    `toml:"regional"`
	Translation Translation `toml:"translation"`
	LLM         LLM         `toml:"llm"`
	Reconcile   Reconcile   `toml:"reconcile"`
	RateLimit   RateLimit   `toml:"rate_limit"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("castsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file holding identities, translations, and the queue.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "castsync.db")
}

// LockPath returns the file used to guarantee a single queue worker per data dir.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "castsync.lock")
}

// LogPath returns the rotating log file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "castsync.log")
}

// PollInterval returns the queue poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.QueuePollInterval) * time.Second
}

// ErrorRetryDelay returns the pause after a queue read error.
func (c *Config) ErrorRetryDelay() time.Duration {
	return time.Duration(c.Workflow.ErrorRetryInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains common LLM settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
