// Package postgres provides the Postgres-backed scrape record store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openimg/image-scraper/internal/scraper"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool used for scrape rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store persists scrape records in Postgres. The url column is the
// primary key, so concurrent upserts for the same url cannot drift
// into duplicate rows; last write wins.
//
// Expected schema:
//
//	CREATE TABLE scrapes (
//		url        TEXT PRIMARY KEY,
//		images     JSONB NOT NULL,
//		scraped_at TIMESTAMPTZ NOT NULL
//	);
type Store struct {
	pool  querier
	table string
	now   func() time.Time
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "scrapes"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table, now: func() time.Time { return time.Now().UTC() }}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool querier, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "scrapes"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert creates the row for url or fully replaces its image list and
// timestamp when the row already exists.
func (s *Store) Upsert(ctx context.Context, url string, images []string) error {
	if url == "" {
		return &scraper.PersistenceError{Op: "upsert", Err: fmt.Errorf("url is required")}
	}
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return &scraper.PersistenceError{Op: "upsert", Err: fmt.Errorf("marshal images: %w", err)}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (url, images, scraped_at)
VALUES ($1, $2, $3)
ON CONFLICT (url) DO UPDATE
SET images = EXCLUDED.images, scraped_at = EXCLUDED.scraped_at`, s.table)

	if _, err := s.pool.Exec(ctx, query, url, imagesJSON, s.now()); err != nil {
		return &scraper.PersistenceError{Op: "upsert", Err: err}
	}
	return nil
}

// Recent returns up to limit records ordered newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]scraper.ScrapeRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(
		`SELECT url, images, scraped_at FROM %s ORDER BY scraped_at DESC LIMIT $1`, s.table)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, &scraper.PersistenceError{Op: "recent", Err: err}
	}
	defer rows.Close()

	records := make([]scraper.ScrapeRecord, 0, limit)
	for rows.Next() {
		var (
			rec       scraper.ScrapeRecord
			imagesRaw []byte
		)
		if err := rows.Scan(&rec.URL, &imagesRaw, &rec.ScrapedAt); err != nil {
			return nil, &scraper.PersistenceError{Op: "recent", Err: err}
		}
		if err := json.Unmarshal(imagesRaw, &rec.Images); err != nil {
			return nil, &scraper.PersistenceError{Op: "recent", Err: fmt.Errorf("unmarshal images: %w", err)}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &scraper.PersistenceError{Op: "recent", Err: err}
	}
	return records, nil
}

// Delete removes the row for url and reports whether one existed.
func (s *Store) Delete(ctx context.Context, url string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE url = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, url)
	if err != nil {
		return false, &scraper.PersistenceError{Op: "delete", Err: err}
	}
	return tag.RowsAffected() > 0, nil
}
