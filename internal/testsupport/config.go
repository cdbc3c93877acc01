package testsupport

import (
	"path/filepath"
	"testing"

	"castsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.TMDB.APIKey = "test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Reconcile.TargetScripts = []string{"Han"}
	cfgVal.RateLimit.FloorMS = 1
	cfgVal.RateLimit.CeilingMS = 4
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.ErrorRetryInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTMDB points the TMDB client at a test server.
func WithTMDB(baseURL, key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.BaseURL = baseURL
		b.cfg.TMDB.APIKey = key
	}
}

// WithMediaServer points the media server client at a test server.
func WithMediaServer(url, key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MediaServer.URL = url
		b.cfg.MediaServer.APIKey = key
	}
}

// WithRegional enables the regional database client against a test server.
func WithRegional(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Regional.Enabled = true
		b.cfg.Regional.BaseURL = baseURL
	}
}

// WithTranslation enables translation through an LLM test server.
func WithTranslation(llmURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Translation.Enabled = true
		b.cfg.LLM.BaseURL = llmURL
		b.cfg.LLM.APIKey = "test"
	}
}

// WithMaxCastSize overrides the reconciled cast cap.
func WithMaxCastSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reconcile.MaxCastSize = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
