package scraper

import "time"

// ScrapeRecord is one persisted scrape result, keyed by the page URL.
// At most one record exists per url; re-scraping replaces Images and
// ScrapedAt in place.
type ScrapeRecord struct {
	URL       string    `json:"url"`
	Images    []string  `json:"images"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Result maps each requested page URL to its extracted image URLs, or
// to a one-element slice holding an "Error: ..." message when that
// URL's pipeline failed. The shape mirrors the scrape endpoint's
// response body.
type Result map[string][]string
