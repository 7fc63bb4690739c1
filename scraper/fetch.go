package scraper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/qb-stats-scraper/parser"
	"github.com/gocolly/colly/v2"
)

const (
	phaseListing = "listing"
	phaseStats   = "stats"
)

// fetch returns the parsed page at target, retrying transient failures up to
// MaxRetries times. Stats pages are served from the page cache when present.
func (s *Scraper) fetch(ctx context.Context, phase, target string) (parser.Document, error) {
	cacheable := phase == phaseStats
	if cacheable {
		if doc, ok := s.pages.Get(target); ok {
			s.Metrics.IncCacheHit()
			return doc, nil
		}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := s.fetchOnce(phase, target)
		if err == nil {
			if cacheable {
				s.pages.Add(target, doc)
			}
			return doc, nil
		}
		lastErr = err

		var fetchErr *FetchError
		if attempt >= s.cfg.MaxRetries || !errors.As(err, &fetchErr) || !fetchErr.Retryable() {
			break
		}

		atomic.AddInt64(&s.retryCount, 1)
		s.Metrics.IncRetries()
		delay := s.backoff(attempt + 1)
		slog.Debug("retrying fetch",
			slog.String("url", target),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.recordFailure(target, lastErr)
	return nil, lastErr
}

// fetchOnce issues a single GET on a clone of the base collector so that
// concurrent fetches keep their own handlers while sharing the transport.
func (s *Scraper) fetchOnce(phase, target string) (parser.Document, error) {
	c := s.collector.Clone()

	var (
		doc      parser.Document
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		atomic.AddInt64(&s.requestCount, 1)
		s.Metrics.IncRequest(phase)
	})

	c.OnResponse(func(r *colly.Response) {
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			s.Metrics.ObserveDuration(time.Since(start))
		}
		parsed, err := parser.NewDocument(bytes.NewReader(r.Body))
		if err != nil {
			fetchErr = &FetchError{Kind: KindParse, URL: target, Err: err}
			return
		}
		doc = parsed
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = classifyError(target, err, statusCode)
	})

	if err := c.Visit(target); err != nil && fetchErr == nil {
		fetchErr = classifyError(target, err, 0)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if doc == nil {
		return nil, &FetchError{Kind: KindOther, URL: target, Err: errors.New("no response received")}
	}
	return doc, nil
}

func (s *Scraper) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := s.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := s.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (s *Scraper) recordFailure(target string, err error) {
	atomic.AddInt64(&s.errorCount, 1)
	category := errorTypeLabel(err)

	s.mu.Lock()
	s.errorsByType[category]++
	s.failedURLs = append(s.failedURLs, target)
	s.mu.Unlock()

	s.Metrics.IncError(category)
	slog.Error("request error",
		slog.String("url", target),
		slog.String("category", category),
		slog.Any("error", err),
	)
}
