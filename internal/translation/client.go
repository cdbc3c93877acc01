package translation

import (
	"context"
	"log/slog"
	"strings"

	"castsync/internal/logging"
	"castsync/internal/textnorm"
)

// Client batches translation lookups through a cache and an engine. The
// engine may be nil, in which case only cached translations are served.
type Client struct {
	cache  Cache
	engine Engine
	norm   *textnorm.Normalizer
	logger *slog.Logger
}

// NewClient wires a translation client.
func NewClient(cache Cache, engine Engine, norm *textnorm.Normalizer, logger *slog.Logger) *Client {
	if norm == nil {
		norm = textnorm.MustNew()
	}
	return &Client{
		cache:  cache,
		engine: engine,
		norm:   norm,
		logger: logging.NewComponentLogger(logger, "translation"),
	}
}

// TranslateBatch returns translations keyed by the original text. Texts that
// need no translation, or that could not be translated, are absent. The only
// error returned is context cancellation.
func (c *Client) TranslateBatch(ctx context.Context, texts []string, mctx *MediaContext) (map[string]string, error) {
	pending := c.translatable(texts)
	out := make(map[string]string, len(pending))
	if len(pending) == 0 {
		return out, nil
	}
	logger := logging.WithContext(ctx, c.logger)

	if c.cache != nil {
		hits, err := c.cache.BatchGet(ctx, pending)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			logging.WarnWithContext(logger, "translation cache read failed", "translation_cache_read_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "every text is sent to the engine"))
		}
		for original, translated := range hits {
			out[original] = translated
		}
	}

	var misses []string
	for _, text := range pending {
		if _, ok := out[text]; !ok {
			misses = append(misses, text)
		}
	}
	logger.Debug("translation batch partitioned",
		logging.Int("requested", len(pending)),
		logging.Int("cache_hits", len(pending)-len(misses)),
		logging.Int("misses", len(misses)))
	if len(misses) == 0 || c.engine == nil {
		return out, nil
	}

	translated, err := c.engine.Translate(ctx, misses, mctx)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		logging.WarnWithContext(logger, "translation engine failed", "translation_engine_failed",
			logging.String("engine", c.engine.Name()),
			logging.Int("misses", len(misses)),
			logging.Int("translated", len(translated)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm api key and model availability"),
			logging.String(logging.FieldImpact, "untranslated names keep their original spelling"))
	}

	for _, original := range misses {
		value, ok := translated[original]
		if !ok || value == original || !c.norm.IsTargetScript(value) {
			continue
		}
		out[original] = value
		if c.cache == nil {
			continue
		}
		if err := c.cache.Put(ctx, original, value, c.engine.Name()); err != nil {
			logging.WarnWithContext(logger, "translation cache write failed", "translation_cache_write_failed",
				logging.String("original", original),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the text will be translated again next run"))
		}
	}
	return out, nil
}

// translatable trims, dedupes, and filters texts in first-seen order.
func (c *Client) translatable(texts []string) []string {
	seen := make(map[string]struct{}, len(texts))
	out := make([]string, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if _, dup := seen[text]; dup || !c.norm.IsTranslatable(text) {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}
