package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	PagesTotal        *prometheus.CounterVec
	LinksTotal        prometheus.Counter
	PlayersTotal      *prometheus.CounterVec
	CacheHitsTotal    prometheus.Counter
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	SkippedTasksTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbscraper_requests_total",
			Help: "Total HTTP requests issued, by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qbscraper_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbscraper_listing_pages_total",
			Help: "Roster listing pages parsed, by outcome.",
		},
		[]string{"outcome"},
	)
	links := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qbscraper_links_discovered_total",
			Help: "Quarterback detail links found on roster pages.",
		},
	)
	players := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbscraper_players_total",
			Help: "Player records produced, by stats outcome.",
		},
		[]string{"outcome"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qbscraper_page_cache_hits_total",
			Help: "Stats pages served from the in-memory page cache.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qbscraper_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbscraper_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbscraper_skipped_tasks_total",
			Help: "Tasks dropped under the skip failure policy, by phase.",
		},
		[]string{"phase"},
	)

	registry.MustRegister(requests, requestDuration, pages, links, players, cacheHits, retries, errorsTotal, skipped)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		PagesTotal:        pages,
		LinksTotal:        links,
		PlayersTotal:      players,
		CacheHitsTotal:    cacheHits,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		SkippedTasksTotal: skipped,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPage counts a parsed listing page by outcome.
func (m *Metrics) IncPage(outcome string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(outcome).Inc()
}

// AddLinks adds to the discovered links counter.
func (m *Metrics) AddLinks(n int) {
	if m == nil {
		return
	}
	m.LinksTotal.Add(float64(n))
}

// IncPlayer counts a produced player record by outcome.
func (m *Metrics) IncPlayer(outcome string) {
	if m == nil {
		return
	}
	m.PlayersTotal.WithLabelValues(outcome).Inc()
}

// IncCacheHit counts a stats page served from the cache.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddSkipped counts tasks dropped under the skip policy.
func (m *Metrics) AddSkipped(phase string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SkippedTasksTotal.WithLabelValues(phase).Add(float64(n))
}
