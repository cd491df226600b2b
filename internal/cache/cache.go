// Package cache maps (prompt, parameter set) pairs to previously saved image
// files. Entries live in a SQLite database under the cache directory and
// survive restarts.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DBFileName    = "image_cache.db"
	DefaultMaxAge = 30 * 24 * time.Hour
	busyTimeoutMS = 5000
)

type Options struct {
	MaxAge time.Duration
	Logger *zap.Logger
	Now    func() time.Time
}

type Cache struct {
	db     *sql.DB
	path   string
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type Stats struct {
	Path    string
	Entries int
	Hits    int64
	Misses  int64
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Open creates dir if needed, migrates the schema, and sweeps entries older
// than the configured max age.
func Open(dir string, opts Options) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := filepath.Join(dir, DBFileName)
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMS)

	if err := migrateUp(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)

	c := &Cache{
		db:     db,
		path:   path,
		maxAge: opts.MaxAge,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if c.maxAge <= 0 {
		c.maxAge = DefaultMaxAge
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}

	if _, err := c.Sweep(context.Background(), 0); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Path() string {
	return c.path
}

// HashKey digests prompt plus the canonical JSON of params. encoding/json
// writes map keys in sorted order, so key insertion order never matters.
func HashKey(prompt string, params map[string]any) string {
	canonical, err := json.Marshal(params)
	if err != nil {
		canonical = []byte(fmt.Sprint(params))
	}
	sum := sha256.Sum256([]byte(prompt + "_" + string(canonical)))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the stored path for prompt and params when the entry exists
// and its file is still on disk. A hit refreshes last_accessed. Entries whose
// file disappeared are left for Sweep.
func (c *Cache) Lookup(ctx context.Context, prompt string, params map[string]any) (string, bool) {
	key := HashKey(prompt, params)

	var path string
	err := c.db.QueryRowContext(ctx,
		`SELECT filepath FROM image_cache WHERE prompt_hash = ?`, key).Scan(&path)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("cache lookup failed", zap.Error(err))
		}
		c.misses.Add(1)
		return "", false
	}

	if _, err := os.Stat(path); err != nil {
		c.logger.Debug("cached file missing", zap.String("path", path))
		c.misses.Add(1)
		return "", false
	}

	if _, err := c.db.ExecContext(ctx,
		`UPDATE image_cache SET last_accessed = ? WHERE prompt_hash = ?`,
		c.now().UnixMilli(), key); err != nil {
		c.logger.Warn("failed to refresh cache entry", zap.Error(err))
	}

	c.hits.Add(1)
	c.logger.Info("cache hit", zap.String("path", path))
	return path, true
}

// Put stores or replaces the entry for prompt and params.
func (c *Cache) Put(ctx context.Context, prompt string, params map[string]any, path string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO image_cache (prompt_hash, filepath, last_accessed) VALUES (?, ?, ?)`,
		HashKey(prompt, params), path, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	c.logger.Debug("cache entry stored", zap.String("path", path))
	return nil
}

type entry struct {
	hash string
	path string
}

// Sweep removes entries not accessed within maxAge, deleting their files
// best-effort, then removes entries whose file no longer exists. A
// non-positive maxAge uses the configured default. It returns the number of
// rows deleted.
func (c *Cache) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = c.maxAge
	}
	cutoff := c.now().Add(-maxAge).UnixMilli()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin sweep: %w", err)
	}
	defer tx.Rollback()

	stale, err := queryEntries(ctx, tx,
		`SELECT prompt_hash, filepath FROM image_cache WHERE last_accessed < ?`, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, e := range stale {
		if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to delete cached file", zap.String("path", e.path), zap.Error(err))
		}
		if err := deleteEntry(ctx, tx, e.hash); err != nil {
			return 0, err
		}
		deleted++
	}

	remaining, err := queryEntries(ctx, tx, `SELECT prompt_hash, filepath FROM image_cache`)
	if err != nil {
		return 0, err
	}
	for _, e := range remaining {
		if _, err := os.Stat(e.path); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := deleteEntry(ctx, tx, e.hash); err != nil {
			return 0, err
		}
		deleted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sweep: %w", err)
	}

	if deleted > 0 {
		c.logger.Info("cache sweep completed", zap.Int("deleted", deleted), zap.Duration("max_age", maxAge))
	} else {
		c.logger.Debug("cache sweep found nothing to delete", zap.Duration("max_age", maxAge))
	}
	return deleted, nil
}

// Clear deletes every entry without touching image files.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM image_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM image_cache`).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return Stats{
		Path:    c.path,
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

func queryEntries(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]entry, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.hash, &e.path); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func deleteEntry(ctx context.Context, tx *sql.Tx, hash string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM image_cache WHERE prompt_hash = ?`, hash); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}
