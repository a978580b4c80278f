// Package scraper implements the multi-URL scrape pipeline: URL
// normalization, page fetching, image link extraction, and the
// concurrent orchestration that ties them to persistence.
package scraper

import "context"

// Fetcher retrieves the raw HTML body for a single page URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store persists scrape records keyed by page URL. Implementations
// must tolerate concurrent calls for different urls.
type Store interface {
	// Upsert creates the record for url, or fully replaces its image
	// list and timestamp when one already exists.
	Upsert(ctx context.Context, url string, images []string) error
	// Recent returns up to limit records, most recently scraped first.
	Recent(ctx context.Context, limit int) ([]ScrapeRecord, error)
	// Delete removes the record for url. The bool reports whether a
	// record was actually deleted.
	Delete(ctx context.Context, url string) (bool, error)
}
