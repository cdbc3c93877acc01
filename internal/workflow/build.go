package workflow

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"castsync/internal/config"
	"castsync/internal/identity"
	"castsync/internal/ratelimit"
	"castsync/internal/reconcile"
	"castsync/internal/services/llm"
	"castsync/internal/services/mediaserver"
	"castsync/internal/services/regional"
	"castsync/internal/services/tmdb"
	"castsync/internal/source"
	"castsync/internal/textnorm"
	"castsync/internal/translation"
)

// Dependencies bundles everything built from configuration.
type Dependencies struct {
	Server       *mediaserver.Client
	TMDB         *tmdb.Client
	Regional     *regional.Client
	Identities   *identity.Store
	Translations *translation.SQLiteCache
	Reconciler   *reconcile.Reconciler
	logger       *slog.Logger
}

// NewDependencies builds the service clients, stores, and reconciler for cfg
// over db. Regional is nil when the regional database is disabled. Each
// upstream gets its own cooldown.
func NewDependencies(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*Dependencies, error) {
	norm, err := textnorm.New(cfg.Reconcile.TargetScripts...)
	if err != nil {
		return nil, fmt.Errorf("target scripts: %w", err)
	}
	deps := &Dependencies{
		Identities:   identity.NewStore(db, logger),
		Translations: translation.NewSQLiteCache(db),
		logger:       logger,
	}

	if deps.Server, err = mediaserver.NewFromConfig(cfg, mediaserver.WithCooldown(newCooldown(cfg))); err != nil {
		return nil, err
	}
	if deps.TMDB, err = tmdb.NewFromConfig(cfg, tmdb.WithCooldown(newCooldown(cfg))); err != nil {
		return nil, err
	}

	opts := []reconcile.Option{
		reconcile.WithMaxCastSize(cfg.Reconcile.MaxCastSize),
		reconcile.WithFuzzyMatch(cfg.Reconcile.FuzzyMatch),
		reconcile.WithLogger(logger),
	}
	if cfg.Regional.Enabled {
		if deps.Regional, err = regional.NewFromConfig(cfg, regional.WithCooldown(newCooldown(cfg))); err != nil {
			return nil, err
		}
		opts = append(opts, reconcile.WithDeepBridge(deps.Regional, deps.TMDB))
	}
	if cfg.Translation.Enabled {
		translator, err := newTranslator(cfg, deps.Translations, norm, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, reconcile.WithTranslator(translator))
	}
	deps.Reconciler = reconcile.New(norm, opts...)
	return deps, nil
}

// Processor assembles a Processor over the dependencies.
func (d *Dependencies) Processor() *Processor {
	var regionalSource RegionalSource
	if d.Regional != nil {
		regionalSource = source.Default(d.Regional, d.logger)
	}
	return NewProcessor(d.Server, d.TMDB, regionalSource, d.Identities, d.Reconciler, d.logger)
}

func newTranslator(cfg *config.Config, store *translation.SQLiteCache, norm *textnorm.Normalizer, logger *slog.Logger) (*translation.Client, error) {
	memory, err := translation.NewMemoryCache(cfg.Translation.CacheEntries)
	if err != nil {
		return nil, fmt.Errorf("translation cache: %w", err)
	}
	llmCfg := cfg.GetLLM()
	client := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})
	engine := translation.NewLLMEngine(client, cfg.Translation.TargetLanguage, newCooldown(cfg))
	return translation.NewClient(translation.Layered{Front: memory, Back: store, Logger: logger}, engine, norm, logger), nil
}

func newCooldown(cfg *config.Config) *ratelimit.Cooldown {
	return ratelimit.New(ratelimit.Settings{
		Floor:        time.Duration(cfg.RateLimit.FloorMS) * time.Millisecond,
		Ceiling:      time.Duration(cfg.RateLimit.CeilingMS) * time.Millisecond,
		RecoverAfter: cfg.RateLimit.RecoverAfter,
	})
}
