// Package memory provides an in-memory scrape record store for tests
// and database-less development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openimg/image-scraper/internal/scraper"
)

// Store keeps scrape records in a mutex-guarded map keyed by url.
type Store struct {
	mu      sync.RWMutex
	records map[string]scraper.ScrapeRecord
	now     func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]scraper.ScrapeRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upsert creates or fully replaces the record for url.
func (s *Store) Upsert(_ context.Context, url string, images []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[url] = scraper.ScrapeRecord{
		URL:       url,
		Images:    append([]string{}, images...),
		ScrapedAt: s.now(),
	}
	return nil
}

// Recent returns up to limit records ordered newest first.
func (s *Store) Recent(_ context.Context, limit int) ([]scraper.ScrapeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]scraper.ScrapeRecord, 0, len(s.records))
	for _, rec := range s.records {
		rec.Images = append([]string{}, rec.Images...)
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ScrapedAt.After(records[j].ScrapedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete removes the record for url and reports whether one existed.
func (s *Store) Delete(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[url]; !ok {
		return false, nil
	}
	delete(s.records, url)
	return true, nil
}

// Get returns the record for url, if present. Used by tests.
func (s *Store) Get(url string) (scraper.ScrapeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[url]
	return rec, ok
}
