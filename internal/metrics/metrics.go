// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapePagesTotal           *prometheus.CounterVec
	scrapeImagesTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	scrapeActivePipelines      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call
// multiple times.
func Init() {
	once.Do(func() {
		scrapePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total number of pages scraped, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		scrapeImagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_images_total",
				Help: "Total number of image URLs extracted, labeled by site.",
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"method", "route"},
		)

		scrapeActivePipelines = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_pipelines",
				Help: "Number of fetch-extract-persist pipelines currently in flight.",
			},
		)
	})
}

// SanitizeSite reduces a URL to a lowercase hostname for labels.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScrape records the outcome of one page pipeline.
func ObserveScrape(site string, status string, imageCount int) {
	sanitized := SanitizeSite(site)
	scrapePagesTotal.WithLabelValues(sanitized, status).Inc()
	if imageCount > 0 {
		scrapeImagesTotal.WithLabelValues(sanitized).Add(float64(imageCount))
	}
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActivePipelines increments the in-flight pipeline gauge.
func IncActivePipelines() {
	scrapeActivePipelines.Inc()
}

// DecActivePipelines decrements the in-flight pipeline gauge.
func DecActivePipelines() {
	scrapeActivePipelines.Dec()
}
