package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aluiziolira/qb-stats-scraper/models"
	"github.com/aluiziolira/qb-stats-scraper/parser"
)

// ExtractMetrics fetches the stats subpage of a relative player link and
// builds its record. Players without a usable totals row get a record with
// every numeric field set to models.NoStat.
func (s *Scraper) ExtractMetrics(ctx context.Context, link string) (*models.Player, error) {
	statsURL := s.cfg.StatsURL(link)

	doc, err := s.fetch(ctx, phaseStats, statsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch stats page: %w", err)
	}

	outcome := parser.ParseStats(doc, s.cfg.MinStatColumns)
	if !outcome.Complete {
		return s.playerWithoutStats(ctx, statsURL, outcome.Reason)
	}

	name, err := parser.ParseName(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", statsURL, err)
	}
	metrics, ok := parser.SelectMetrics(outcome.Cells)
	if !ok {
		return s.playerWithoutStats(ctx, statsURL, "stats footer too short")
	}

	player := &models.Player{
		Name:          name,
		Attempts:      metrics.Attempts,
		Completions:   metrics.Completions,
		Yards:         metrics.Yards,
		Touchdowns:    metrics.Touchdowns,
		Interceptions: metrics.Interceptions,
		PasserRating:  metrics.PasserRating,
		URL:           statsURL,
		HasStats:      true,
	}
	s.Metrics.IncPlayer("complete")
	s.checkPlayer(player)
	return player, nil
}

// playerWithoutStats reloads the page through the page cache to read the name.
func (s *Scraper) playerWithoutStats(ctx context.Context, statsURL, reason string) (*models.Player, error) {
	doc, err := s.fetch(ctx, phaseStats, statsURL)
	if err != nil {
		return nil, fmt.Errorf("refetch stats page: %w", err)
	}
	name, err := parser.ParseName(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", statsURL, err)
	}

	atomic.AddInt64(&s.fallbackCount, 1)
	s.Metrics.IncPlayer("no_stats")
	slog.Debug("stats unavailable, using zero metrics",
		slog.String("url", statsURL),
		slog.String("player", name),
		slog.String("reason", reason),
	)

	player := models.NewPlayerWithoutStats(name, statsURL)
	s.checkPlayer(player)
	return player, nil
}

func (s *Scraper) checkPlayer(player *models.Player) {
	if err := parser.ValidatePlayer(player); err != nil {
		slog.Warn("incomplete player record", slog.String("url", player.URL), slog.Any("error", err))
	}
}
