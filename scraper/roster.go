package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aluiziolira/qb-stats-scraper/parser"
)

// CollectDetailLinks walks the roster pagination chain starting at startURL
// and returns the links of every row matching the configured position, in
// page-then-row order. A malformed page ends the chain like a last page does.
func (s *Scraper) CollectDetailLinks(ctx context.Context, startURL string) ([]string, error) {
	var links []string
	current := startURL

	for pages := 1; ; pages++ {
		doc, err := s.fetch(ctx, phaseListing, current)
		if err != nil {
			return links, fmt.Errorf("fetch listing page: %w", err)
		}
		atomic.AddInt64(&s.pageCount, 1)

		page, err := parser.ParseListing(doc, s.cfg.Position)
		if err != nil {
			return links, fmt.Errorf("parse listing page %s: %w", current, err)
		}
		links = append(links, page.Links...)
		s.Metrics.AddLinks(len(page.Links))
		s.Metrics.IncPage(page.Outcome.String())

		switch page.Outcome {
		case parser.EndOfPages:
			return links, nil
		case parser.PageMalformed:
			atomic.AddInt64(&s.malformedCount, 1)
			slog.Warn("listing page malformed, ending pagination",
				slog.String("url", current),
				slog.String("reason", page.Reason),
				slog.Int("links", len(links)),
			)
			return links, nil
		}

		if s.cfg.MaxPagesPerLetter > 0 && pages >= s.cfg.MaxPagesPerLetter {
			slog.Warn("page limit reached", slog.String("start_url", startURL), slog.Int("pages", pages))
			return links, nil
		}

		next, err := s.cfg.ResolveURL(page.NextHref)
		if err != nil {
			return links, fmt.Errorf("resolve next page: %w", err)
		}
		slog.Debug("following next page", slog.String("from", current), slog.String("to", next))
		current = next
	}
}
