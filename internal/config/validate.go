package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateMediaServer(); err != nil {
		return err
	}
	if err := c.validateRegional(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	return c.validateWorkflow()
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'castsync config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateMediaServer() error {
	if c.MediaServer.URL == "" {
		return nil
	}
	if err := validateHTTPURL(c.MediaServer.URL); err != nil {
		return fmt.Errorf("media_server.url: %w", err)
	}
	if c.MediaServer.APIKey == "" {
		return errors.New("media_server.api_key must be set when media_server.url is configured (or set CASTSYNC_MEDIA_SERVER_API_KEY)")
	}
	return nil
}

func (c *Config) validateRegional() error {
	if !c.Regional.Enabled {
		return nil
	}
	if c.Regional.BaseURL == "" {
		return errors.New("regional.base_url must be set when regional.enabled is true")
	}
	if err := validateHTTPURL(c.Regional.BaseURL); err != nil {
		return fmt.Errorf("regional.base_url: %w", err)
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if !c.Translation.Enabled {
		return nil
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.api_key must be set when translation.enabled is true (or set OPENROUTER_API_KEY)")
	}
	return nil
}

func (c *Config) validateReconcile() error {
	if c.Reconcile.MaxCastSize <= 0 {
		return errors.New("reconcile.max_cast_size must be positive")
	}
	if len(c.Reconcile.TargetScripts) == 0 {
		return fmt.Errorf("reconcile.target_scripts is empty and translation.target_language %q has no known script", c.Translation.TargetLanguage)
	}
	for _, script := range c.Reconcile.TargetScripts {
		if _, ok := unicode.Scripts[script]; !ok {
			return fmt.Errorf("reconcile.target_scripts: unknown unicode script %q", script)
		}
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if err := ensurePositiveMap(map[string]int{
		"rate_limit.floor_ms":      c.RateLimit.FloorMS,
		"rate_limit.ceiling_ms":    c.RateLimit.CeilingMS,
		"rate_limit.recover_after": c.RateLimit.RecoverAfter,
	}); err != nil {
		return err
	}
	if c.RateLimit.CeilingMS < c.RateLimit.FloorMS {
		return errors.New("rate_limit.ceiling_ms must be >= rate_limit.floor_ms")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	})
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
