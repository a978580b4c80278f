package scraper

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/openimg/image-scraper/internal/metrics"
)

// Config controls orchestration behavior.
type Config struct {
	// Concurrency caps the number of in-flight pipelines. Values <= 0
	// fall back to DefaultConcurrency.
	Concurrency int
}

// DefaultConcurrency bounds pipeline fan-out when no cap is configured.
const DefaultConcurrency = 10

// Scraper runs one fetch-extract-persist pipeline per normalized URL
// through a bounded worker pool. Pipelines are causally independent: a
// failure in one becomes that url's error entry and never affects the
// others.
type Scraper struct {
	fetcher     Fetcher
	store       Store
	concurrency int
	logger      *zap.Logger
}

// New constructs a Scraper.
func New(fetcher Fetcher, store Store, cfg Config, logger *zap.Logger) *Scraper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		fetcher:     fetcher,
		store:       store,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

type pipelineResult struct {
	url    string
	images []string
}

// ScrapeAll normalizes rawURLs and scrapes every distinct valid one,
// returning only after all pipelines have settled. Each entry holds
// either the extracted image list or a single "Error: ..." string.
func (s *Scraper) ScrapeAll(ctx context.Context, rawURLs []string) Result {
	urls := NormalizeURLs(rawURLs)
	result := make(Result, len(urls))
	if len(urls) == 0 {
		return result
	}

	workers := s.concurrency
	if workers > len(urls) {
		workers = len(urls)
	}

	jobs := make(chan string, len(urls))
	out := make(chan pipelineResult, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				out <- s.scrapeOne(ctx, url)
			}
		}()
	}

	for _, url := range urls {
		jobs <- url
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(out)
	}()

	for res := range out {
		result[res.url] = res.images
	}
	return result
}

// scrapeOne runs a single url's pipeline. Any failure is caught here
// and converted to the error-entry shape.
func (s *Scraper) scrapeOne(ctx context.Context, url string) pipelineResult {
	metrics.IncActivePipelines()
	defer metrics.DecActivePipelines()

	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.logger.Warn("page fetch failed", zap.String("url", url), zap.Error(err))
		metrics.ObserveScrape(url, "fetch_error", 0)
		return errorEntry(url, err)
	}

	links, err := ExtractImageLinks(body, url)
	if err != nil {
		s.logger.Warn("extraction failed", zap.String("url", url), zap.Error(err))
		metrics.ObserveScrape(url, "extract_error", 0)
		return errorEntry(url, err)
	}
	if links == nil {
		links = []string{}
	}

	if err := s.store.Upsert(ctx, url, links); err != nil {
		s.logger.Warn("persist failed", zap.String("url", url), zap.Error(err))
		metrics.ObserveScrape(url, "persist_error", len(links))
		return errorEntry(url, err)
	}

	metrics.ObserveScrape(url, "ok", len(links))
	return pipelineResult{url: url, images: links}
}

func errorEntry(url string, err error) pipelineResult {
	return pipelineResult{url: url, images: []string{"Error: " + err.Error()}}
}
