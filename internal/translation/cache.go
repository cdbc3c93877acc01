package translation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	lru "github.com/hashicorp/golang-lru/v2"

	"castsync/internal/database"
	"castsync/internal/logging"
)

// Cache stores original → translated text pairs.
type Cache interface {
	Get(ctx context.Context, original string) (string, bool, error)
	Put(ctx context.Context, original, translated, engine string) error
	BatchGet(ctx context.Context, originals []string) (map[string]string, error)
}

// Entry is one persisted translation.
type Entry struct {
	Original   string
	Translated string
	Engine     string
	UpdatedAt  time.Time
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// batchChunk bounds the IN list of one BatchGet query.
const batchChunk = 400

// SQLiteCache persists translations in the translation_cache table.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteCache wraps an open castsync database.
func NewSQLiteCache(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{db: db, now: time.Now}
}

func (c *SQLiteCache) Get(ctx context.Context, original string) (string, bool, error) {
	query, args, err := psql.Select("translated_text").
		From("translation_cache").
		Where(sq.Eq{"original_text": original}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build cache query: %w", err)
	}
	var translated string
	err = c.db.QueryRowContext(ctx, query, args...).Scan(&translated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read translation cache: %w", err)
	}
	return translated, true, nil
}

// Put stores a pair; the last write for an original wins.
func (c *SQLiteCache) Put(ctx context.Context, original, translated, engine string) error {
	query, args, err := psql.Insert("translation_cache").
		Columns("original_text", "translated_text", "engine", "updated_at").
		Values(original, translated, database.NullableString(engine), database.FormatTime(c.now())).
		Suffix("ON CONFLICT(original_text) DO UPDATE SET translated_text = excluded.translated_text, engine = excluded.engine, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build cache upsert: %w", err)
	}
	if _, err := database.ExecWithRetry(ctx, c.db, query, args...); err != nil {
		return fmt.Errorf("write translation cache: %w", err)
	}
	return nil
}

func (c *SQLiteCache) BatchGet(ctx context.Context, originals []string) (map[string]string, error) {
	out := make(map[string]string, len(originals))
	for start := 0; start < len(originals); start += batchChunk {
		end := min(start+batchChunk, len(originals))
		query, args, err := psql.Select("original_text", "translated_text").
			From("translation_cache").
			Where(sq.Eq{"original_text": originals[start:end]}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build cache batch query: %w", err)
		}
		if err := c.scanPairs(ctx, query, args, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *SQLiteCache) scanPairs(ctx context.Context, query string, args []any, out map[string]string) error {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("read translation cache: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var original, translated string
		if err := rows.Scan(&original, &translated); err != nil {
			return fmt.Errorf("scan translation: %w", err)
		}
		out[original] = translated
	}
	return rows.Err()
}

// List returns cached entries, most recently written first. An optional
// filter restricts to originals or translations containing the substring.
func (c *SQLiteCache) List(ctx context.Context, filter string, limit int) ([]Entry, error) {
	builder := psql.Select("original_text", "translated_text", "engine", "updated_at").
		From("translation_cache").
		OrderBy("updated_at DESC")
	if filter = strings.TrimSpace(filter); filter != "" {
		pattern := "%" + filter + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"original_text": pattern},
			sq.Like{"translated_text": pattern},
		})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cache list: %w", err)
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list translation cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			engine  sql.NullString
			updated string
		)
		if err := rows.Scan(&e.Original, &e.Translated, &engine, &updated); err != nil {
			return nil, fmt.Errorf("scan translation: %w", err)
		}
		e.Engine = engine.String
		if ts, err := database.ParseTime(updated); err == nil {
			e.UpdatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of cached translations.
func (c *SQLiteCache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM translation_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("count translation cache: %w", err)
	}
	return n, nil
}

// Remove deletes one original; it reports whether a row existed.
func (c *SQLiteCache) Remove(ctx context.Context, original string) (bool, error) {
	res, err := database.ExecWithRetry(ctx, c.db, "DELETE FROM translation_cache WHERE original_text = ?", original)
	if err != nil {
		return false, fmt.Errorf("remove translation: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Clear deletes every cached translation.
func (c *SQLiteCache) Clear(ctx context.Context) (int64, error) {
	res, err := database.ExecWithRetry(ctx, c.db, "DELETE FROM translation_cache")
	if err != nil {
		return 0, fmt.Errorf("clear translation cache: %w", err)
	}
	return res.RowsAffected()
}

// MemoryCache is a bounded in-process LRU.
type MemoryCache struct {
	entries *lru.Cache[string, string]
}

// NewMemoryCache builds an LRU holding at most size entries.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = 1
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryCache{entries: entries}, nil
}

func (c *MemoryCache) Get(_ context.Context, original string) (string, bool, error) {
	value, ok := c.entries.Get(original)
	return value, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, original, translated, _ string) error {
	c.entries.Add(original, translated)
	return nil
}

func (c *MemoryCache) BatchGet(_ context.Context, originals []string) (map[string]string, error) {
	out := make(map[string]string, len(originals))
	for _, original := range originals {
		if value, ok := c.entries.Get(original); ok {
			out[original] = value
		}
	}
	return out, nil
}

// Len reports the number of entries held.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// Layered reads the front cache first and fills it from the back on a miss.
// Writes go to both. Back is authoritative: a front failure is logged and the
// call falls through to Back.
type Layered struct {
	Front  Cache
	Back   Cache
	Logger *slog.Logger
}

func (l Layered) frontFailed(op string, err error) {
	logging.WarnWithContext(l.Logger, "front translation cache failed", "translation_cache_front_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldImpact, "lookups fall through to the persistent cache"),
	)
}

func (l Layered) Get(ctx context.Context, original string) (string, bool, error) {
	value, ok, err := l.Front.Get(ctx, original)
	if err != nil {
		l.frontFailed("get", err)
	} else if ok {
		return value, true, nil
	}
	value, ok, err = l.Back.Get(ctx, original)
	if err != nil || !ok {
		return "", false, err
	}
	if err := l.Front.Put(ctx, original, value, ""); err != nil {
		l.frontFailed("fill", err)
	}
	return value, true, nil
}

func (l Layered) Put(ctx context.Context, original, translated, engine string) error {
	if err := l.Back.Put(ctx, original, translated, engine); err != nil {
		return err
	}
	if err := l.Front.Put(ctx, original, translated, engine); err != nil {
		l.frontFailed("put", err)
	}
	return nil
}

func (l Layered) BatchGet(ctx context.Context, originals []string) (map[string]string, error) {
	out, err := l.Front.BatchGet(ctx, originals)
	if err != nil {
		l.frontFailed("batch get", err)
		out = nil
	}
	if out == nil {
		out = make(map[string]string, len(originals))
	}
	var misses []string
	for _, original := range originals {
		if _, ok := out[original]; !ok {
			misses = append(misses, original)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}
	found, err := l.Back.BatchGet(ctx, misses)
	if err != nil {
		return out, err
	}
	for original, translated := range found {
		out[original] = translated
		if err := l.Front.Put(ctx, original, translated, ""); err != nil {
			l.frontFailed("fill", err)
		}
	}
	return out, nil
}
