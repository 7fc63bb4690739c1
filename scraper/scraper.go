// Package scraper collects quarterback links from the roster listing and
// extracts each player's career totals.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/qb-stats-scraper/config"
	"github.com/aluiziolira/qb-stats-scraper/models"
	"github.com/aluiziolira/qb-stats-scraper/parser"
	"github.com/aluiziolira/qb-stats-scraper/pipeline"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Scraper wraps the colly collector, the page cache and run statistics.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	pages     *lru.Cache[string, parser.Document]
	Metrics   *Metrics

	requestCount   int64
	pageCount      int64
	errorCount     int64
	retryCount     int64
	fallbackCount  int64
	malformedCount int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.Parallelism,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
	}); err != nil {
		return nil, fmt.Errorf("configure limits: %w", err)
	}

	pages, err := lru.New[string, parser.Document](cfg.PageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}

	return &Scraper{
		cfg:          cfg,
		collector:    collector,
		pages:        pages,
		Metrics:      NewMetrics(),
		errorsByType: make(map[string]int),
	}, nil
}

// Run collects links for every listing letter, then extracts every player.
// The extraction phase only starts once all listing chains are done.
func (s *Scraper) Run(ctx context.Context) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	listingURLs := s.cfg.ListingURLs()

	slog.Info("collecting quarterback links", slog.Int("letters", len(listingURLs)))
	links, skippedLetters, err := s.collectLinks(ctx, listingURLs)
	if err != nil {
		return nil, fmt.Errorf("collect links: %w", err)
	}

	slog.Info("extracting player stats", slog.Int("links", len(links)))
	players, skippedPlayers, err := s.extractPlayers(ctx, links)
	if err != nil {
		return nil, fmt.Errorf("extract players: %w", err)
	}

	return &models.ScrapeResult{
		Players:        players,
		StartTime:      start,
		EndTime:        time.Now(),
		LetterCount:    len(listingURLs),
		LinkCount:      len(links),
		PageCount:      int(atomic.LoadInt64(&s.pageCount)),
		RequestCount:   int(atomic.LoadInt64(&s.requestCount)),
		ErrorCount:     int(atomic.LoadInt64(&s.errorCount)),
		RetryCount:     int(atomic.LoadInt64(&s.retryCount)),
		FallbackCount:  int(atomic.LoadInt64(&s.fallbackCount)),
		MalformedPages: int(atomic.LoadInt64(&s.malformedCount)),
		SkippedCount:   skippedLetters + skippedPlayers,
		FailedURLs:     s.snapshotFailedURLs(),
		ErrorsByType:   s.snapshotErrors(),
	}, nil
}

func (s *Scraper) collectLinks(ctx context.Context, listingURLs []string) ([]string, int, error) {
	pool := pipeline.NewPool(ctx, s.cfg.Parallelism, s.cfg.Policy())
	links := pipeline.NewCollector[string]()

	for _, listingURL := range listingURLs {
		listingURL := listingURL
		err := pool.Go(listingURL, func(ctx context.Context) error {
			found, err := s.CollectDetailLinks(ctx, listingURL)
			if err != nil {
				return err
			}
			links.Append(found...)
			slog.Debug("listing chain done", slog.String("url", listingURL), slog.Int("links", len(found)))
			return nil
		})
		if err != nil {
			break
		}
	}

	if err := pool.Wait(); err != nil {
		return nil, 0, err
	}
	skipped := len(pool.Failures())
	s.Metrics.AddSkipped(phaseListing, skipped)
	return links.Items(), skipped, nil
}

func (s *Scraper) extractPlayers(ctx context.Context, links []string) ([]*models.Player, int, error) {
	pool := pipeline.NewPool(ctx, s.cfg.Parallelism, s.cfg.Policy())
	players := pipeline.NewCollector[*models.Player]()

	for _, link := range links {
		link := link
		err := pool.Go(link, func(ctx context.Context) error {
			player, err := s.ExtractMetrics(ctx, link)
			if err != nil {
				return err
			}
			players.Append(player)
			return nil
		})
		if err != nil {
			break
		}
	}

	if err := pool.Wait(); err != nil {
		return nil, 0, err
	}
	skipped := len(pool.Failures())
	s.Metrics.AddSkipped(phaseStats, skipped)
	return players.Items(), skipped, nil
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}
