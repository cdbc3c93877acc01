package config

import (
	"fmt"
	"os"
	"strings"

	"castsync/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMediaServer()
	c.normalizeTMDB()
	c.normalizeRegional()
	c.normalizeTranslation()
	c.normalizeLLM()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMediaServer() {
	if c.MediaServer.APIKey == "" {
		if value, ok := os.LookupEnv("CASTSYNC_MEDIA_SERVER_API_KEY"); ok {
			c.MediaServer.APIKey = value
		}
	}
	c.MediaServer.URL = strings.TrimRight(strings.TrimSpace(c.MediaServer.URL), "/")
	c.MediaServer.APIKey = strings.TrimSpace(c.MediaServer.APIKey)
	c.MediaServer.UserID = strings.TrimSpace(c.MediaServer.UserID)
	if c.MediaServer.TimeoutSeconds <= 0 {
		c.MediaServer.TimeoutSeconds = defaultMediaServerTimeout
	}
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.TimeoutSeconds <= 0 {
		c.TMDB.TimeoutSeconds = defaultTMDBTimeout
	}
}

func (c *Config) normalizeRegional() {
	if c.Regional.APIKey == "" {
		if value, ok := os.LookupEnv("CASTSYNC_REGIONAL_API_KEY"); ok {
			c.Regional.APIKey = value
		}
	}
	c.Regional.APIKey = strings.TrimSpace(c.Regional.APIKey)
	c.Regional.BaseURL = strings.TrimRight(strings.TrimSpace(c.Regional.BaseURL), "/")
	if c.Regional.TimeoutSeconds <= 0 {
		c.Regional.TimeoutSeconds = defaultRegionalTimeout
	}
	if c.Regional.DetailCacheEntries <= 0 {
		c.Regional.DetailCacheEntries = defaultRegionalDetailEntries
	}
}

func (c *Config) normalizeTranslation() {
	c.Translation.TargetLanguage = strings.ToLower(strings.TrimSpace(c.Translation.TargetLanguage))
	if c.Translation.TargetLanguage == "" {
		c.Translation.TargetLanguage = defaultTargetLanguage
	}
	if c.Translation.CacheEntries <= 0 {
		c.Translation.CacheEntries = defaultTranslationEntries
	}

	scripts := make([]string, 0, len(c.Reconcile.TargetScripts))
	seen := make(map[string]struct{}, len(c.Reconcile.TargetScripts))
	for _, script := range c.Reconcile.TargetScripts {
		normalized := strings.TrimSpace(script)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		scripts = append(scripts, normalized)
	}
	if len(scripts) == 0 {
		scripts = language.Scripts(c.Translation.TargetLanguage)
	}
	c.Reconcile.TargetScripts = scripts
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}
