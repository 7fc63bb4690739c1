package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/qb-stats-scraper/config"
	"github.com/aluiziolira/qb-stats-scraper/models"
	"github.com/aluiziolira/qb-stats-scraper/parser"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://example.test"

type rosterEntry struct {
	href     string
	position string
}

func newTestScraper(t *testing.T, mutate func(*config.Config)) (*Scraper, *httpmock.MockTransport) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL
	cfg.Parallelism = 4
	cfg.Timeout = 2 * time.Second
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	s, err := NewScraper(cfg)
	require.NoError(t, err)

	transport := httpmock.NewMockTransport()
	s.collector.WithTransport(transport)
	return s, transport
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func buildRosterPage(entries []rosterEntry, next string) string {
	var builder strings.Builder
	builder.WriteString(`<html><body><table class="d3-o-table"><thead><tr><th>Player</th><th>Team</th><th>Position</th><th>Status</th></tr></thead><tbody>`)
	for i, entry := range entries {
		fmt.Fprintf(&builder, `<tr><td><a href="%s">Player %d</a></td><td>Team</td><td> %s </td><td>ACT</td></tr>`, entry.href, i, entry.position)
	}
	builder.WriteString(`</tbody></table>`)
	if next != "" {
		fmt.Fprintf(&builder, `<div class="nfl-o-table-pagination"><a class="nfl-o-table-pagination__next" href="%s">Next</a></div>`, next)
	}
	builder.WriteString(`</body></html>`)
	return builder.String()
}

func buildStatsPage(name string, footer []string) string {
	var builder strings.Builder
	builder.WriteString(`<html><body>`)
	fmt.Fprintf(&builder, `<figure class="nfl-c-player-header__background"><img src="/headshot.png" alt=" %s "></figure>`, name)
	builder.WriteString(`<table><thead><tr><th>Year</th></tr></thead><tbody><tr><td>2023</td></tr></tbody>`)
	if footer != nil {
		builder.WriteString(`<tfoot><tr>`)
		for _, cell := range footer {
			fmt.Fprintf(&builder, `<th>%s</th>`, cell)
		}
		builder.WriteString(`</tr></tfoot>`)
	}
	builder.WriteString(`</table></body></html>`)
	return builder.String()
}

func careerFooter(att, comp, yds, td, ints, rating string) []string {
	return []string{"Total", "x", "x", att, comp, "x", yds, "x", "x", td, ints, "x", rating}
}

func TestCollectDetailLinksSinglePage(t *testing.T) {
	s, transport := newTestScraper(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/players/active/a", htmlResponder(buildRosterPage([]rosterEntry{
		{href: "/players/player1/", position: "QB"},
		{href: "/players/player2/", position: "WR"},
	}, "")))

	links, err := s.CollectDetailLinks(context.Background(), testBaseURL+"/players/active/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"/players/player1/"}, links)
}

func TestCollectDetailLinksBaseURLWithPort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/players/active/a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, buildRosterPage([]rosterEntry{{href: "/players/player1/", position: "QB"}}, "/players/active/a/page-2"))
	})
	mux.HandleFunc("/players/active/a/page-2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, buildRosterPage([]rosterEntry{{href: "/players/player2/", position: "QB"}}, ""))
	})
	mux.HandleFunc("/players/player1/stats/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, buildStatsPage("Jane Doe", careerFooter("10", "20", "300", "2", "1", "95.5")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Parallelism = 2
	cfg.Timeout = 2 * time.Second
	require.NoError(t, cfg.Validate())
	s, err := NewScraper(cfg)
	require.NoError(t, err)

	links, err := s.CollectDetailLinks(context.Background(), srv.URL+"/players/active/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"/players/player1/", "/players/player2/"}, links)

	player, err := s.ExtractMetrics(context.Background(), links[0])
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", player.Name)
	assert.Equal(t, srv.URL+"/players/player1/stats/", player.URL)
}

func TestCollectDetailLinksFollowsPagination(t *testing.T) {
	s, transport := newTestScraper(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/players/active/c", htmlResponder(buildRosterPage([]rosterEntry{
		{href: "/players/c1/", position: "QB"},
		{href: "/players/c2/", position: "RB"},
		{href: "/players/c3/", position: "QB"},
	}, "/players/active/c/page-2")))
	transport.RegisterResponder("GET", testBaseURL+"/players/active/c/page-2", htmlResponder(buildRosterPage([]rosterEntry{
		{href: "/players/c4/", position: "TE"},
	}, "/players/active/c/page-3")))
	transport.RegisterResponder("GET", testBaseURL+"/players/active/c/page-3", htmlResponder(buildRosterPage([]rosterEntry{
		{href: "/players/c5/", position: "QB"},
	}, "")))

	links, err := s.CollectDetailLinks(context.Background(), testBaseURL+"/players/active/c")
	require.NoError(t, err)
	assert.Equal(t, []string{"/players/c1/", "/players/c3/", "/players/c5/"}, links)
	assert.Equal(t, int64(3), s.pageCount)
}

func TestCollectDetailLinksMalformedPageEndsChain(t *testing.T) {
	s, transport := newTestScraper(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/players/active/d", htmlResponder(buildRosterPage([]rosterEntry{
		{href: "/players/d1/", position: "QB"},
	}, "/players/active/d/page-2")))
	transport.RegisterResponder("GET", testBaseURL+"/players/active/d/page-2",
		htmlResponder(`<html><body><p>Temporarily unavailable</p><a class="nfl-o-table-pagination__next" href="/players/active/d/page-3">Next</a></body></html>`))

	links, err := s.CollectDetailLinks(context.Background(), testBaseURL+"/players/active/d")
	require.NoError(t, err)
	assert.Equal(t, []string{"/players/d1/"}, links)
	assert.Equal(t, int64(1), s.malformedCount)
	assert.Zero(t, transport.GetCallCountInfo()["GET "+testBaseURL+"/players/active/d/page-3"])
}

func TestCollectDetailLinksPageLimit(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.MaxPagesPerLetter = 1
	})
	transport.RegisterResponder("GET", testBaseURL+"/players/active/e", htmlResponder(buildRosterPage([]rosterEntry{
		{href: "/players/e1/", position: "QB"},
	}, "/players/active/e/page-2")))

	links, err := s.CollectDetailLinks(context.Background(), testBaseURL+"/players/active/e")
	require.NoError(t, err)
	assert.Equal(t, []string{"/players/e1/"}, links)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestCollectDetailLinksServerErrorRetries(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.MaxRetries = 1
		cfg.RetryBackoff = time.Millisecond
		cfg.RetryBackoffMax = time.Millisecond
	})
	transport.RegisterResponder("GET", testBaseURL+"/players/active/f", httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	_, err := s.CollectDetailLinks(context.Background(), testBaseURL+"/players/active/f")
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, KindServer, fetchErr.Kind)
	assert.Equal(t, 2, transport.GetTotalCallCount())
	assert.Equal(t, int64(1), s.retryCount)
	assert.Equal(t, []string{testBaseURL + "/players/active/f"}, s.snapshotFailedURLs())
	assert.Equal(t, 1, s.snapshotErrors()["server"])
}

func TestCollectDetailLinksNotFoundIsNotRetried(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.MaxRetries = 3
		cfg.RetryBackoff = time.Millisecond
		cfg.RetryBackoffMax = time.Millisecond
	})
	transport.RegisterResponder("GET", testBaseURL+"/players/active/g", httpmock.NewStringResponder(http.StatusNotFound, ""))

	_, err := s.CollectDetailLinks(context.Background(), testBaseURL+"/players/active/g")
	require.Error(t, err)
	assert.Equal(t, 1, transport.GetTotalCallCount())
	assert.Equal(t, "not_found", errorTypeLabel(err))
}

func TestExtractMetricsComplete(t *testing.T) {
	s, transport := newTestScraper(t, nil)
	footer := []string{"x", "x", "x", "10", "20", "x", "300", "x", "x", "2", "1", "x", "95.5"}
	transport.RegisterResponder("GET", testBaseURL+"/players/player1/stats/", htmlResponder(buildStatsPage("Jane Doe", footer)))

	player, err := s.ExtractMetrics(context.Background(), "/players/player1/")
	require.NoError(t, err)
	assert.Equal(t, &models.Player{
		Name:          "Jane Doe",
		Attempts:      "10",
		Completions:   "20",
		Yards:         "300",
		Touchdowns:    "2",
		Interceptions: "1",
		PasserRating:  "95.5",
		URL:           testBaseURL + "/players/player1/stats/",
		HasStats:      true,
	}, player)
}

func TestExtractMetricsWithoutStats(t *testing.T) {
	s, transport := newTestScraper(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/players/rookie/stats/", htmlResponder(buildStatsPage("John Roe", nil)))

	player, err := s.ExtractMetrics(context.Background(), "/players/rookie/")
	require.NoError(t, err)
	assert.Equal(t, models.NewPlayerWithoutStats("John Roe", testBaseURL+"/players/rookie/stats/"), player)
	assert.False(t, player.HasStats)
	assert.Equal(t, int64(1), s.fallbackCount)
	assert.Equal(t, 1, transport.GetTotalCallCount(), "name recovery should use the cached page")
}

func TestExtractMetricsShortFooter(t *testing.T) {
	s, transport := newTestScraper(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/players/short/stats/", htmlResponder(buildStatsPage("Short Footer", []string{"Total", "1", "2", "3"})))

	player, err := s.ExtractMetrics(context.Background(), "/players/short/")
	require.NoError(t, err)
	assert.Equal(t, "Short Footer", player.Name)
	assert.Equal(t, models.NoStat, player.PasserRating)
	assert.False(t, player.HasStats)
}

func TestExtractMetricsMissingName(t *testing.T) {
	s, transport := newTestScraper(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/players/ghost/stats/", htmlResponder(`<html><body><table><tbody></tbody></table></body></html>`))

	_, err := s.ExtractMetrics(context.Background(), "/players/ghost/")
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrNameMissing)
}

func registerSite(transport *httpmock.MockTransport) {
	transport.RegisterResponder("GET", testBaseURL+"/players/active/a", htmlResponder(buildRosterPage([]rosterEntry{
		{href: "/players/alpha/", position: "QB"},
		{href: "/players/adam/", position: "WR"},
	}, "/players/active/a/page-2")))
	transport.RegisterResponder("GET", testBaseURL+"/players/active/a/page-2", htmlResponder(buildRosterPage([]rosterEntry{
		{href: "/players/avery/", position: "QB"},
	}, "")))
	transport.RegisterResponder("GET", testBaseURL+"/players/active/b", htmlResponder(buildRosterPage([]rosterEntry{
		{href: "/players/bo/", position: "QB"},
		{href: "/players/ben/", position: "K"},
	}, "")))

	transport.RegisterResponder("GET", testBaseURL+"/players/alpha/stats/", htmlResponder(buildStatsPage("Alpha Arm", careerFooter("500", "320", "3900", "30", "8", "101.2"))))
	transport.RegisterResponder("GET", testBaseURL+"/players/avery/stats/", htmlResponder(buildStatsPage("Avery Ace", careerFooter("120", "70", "800", "4", "3", "80.1"))))
	transport.RegisterResponder("GET", testBaseURL+"/players/bo/stats/", htmlResponder(buildStatsPage("Bo Backup", nil)))
}

func TestRunEndToEnd(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.Letters = "ab"
	})
	registerSite(transport)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.LetterCount)
	assert.Equal(t, 3, result.LinkCount)
	assert.Equal(t, 3, result.PageCount)
	assert.Equal(t, 1, result.FallbackCount)
	assert.Zero(t, result.ErrorCount)
	assert.Zero(t, result.SkippedCount)
	assert.ElementsMatch(t, []*models.Player{
		{Name: "Alpha Arm", Attempts: "500", Completions: "320", Yards: "3900", Touchdowns: "30", Interceptions: "8", PasserRating: "101.2", URL: testBaseURL + "/players/alpha/stats/", HasStats: true},
		{Name: "Avery Ace", Attempts: "120", Completions: "70", Yards: "800", Touchdowns: "4", Interceptions: "3", PasserRating: "80.1", URL: testBaseURL + "/players/avery/stats/", HasStats: true},
		models.NewPlayerWithoutStats("Bo Backup", testBaseURL+"/players/bo/stats/"),
	}, result.Players)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.Metrics.PlayersTotal.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.PlayersTotal.WithLabelValues("no_stats")))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.Metrics.LinksTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.Metrics.RequestsTotal.WithLabelValues(phaseListing)))
}

func TestRunIsRepeatable(t *testing.T) {
	var runs [][]*models.Player
	for i := 0; i < 2; i++ {
		s, transport := newTestScraper(t, func(cfg *config.Config) {
			cfg.Letters = "ab"
		})
		registerSite(transport)

		result, err := s.Run(context.Background())
		require.NoError(t, err)
		runs = append(runs, result.Players)
	}
	assert.ElementsMatch(t, runs[0], runs[1])
}

func TestRunDuplicateLinksPassThrough(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.Letters = "ab"
	})
	roster := htmlResponder(buildRosterPage([]rosterEntry{{href: "/players/same/", position: "QB"}}, ""))
	transport.RegisterResponder("GET", testBaseURL+"/players/active/a", roster)
	transport.RegisterResponder("GET", testBaseURL+"/players/active/b", roster)
	transport.RegisterResponder("GET", testBaseURL+"/players/same/stats/", htmlResponder(buildStatsPage("Same Player", careerFooter("1", "1", "1", "1", "1", "1"))))

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Players, 2)
	assert.Equal(t, result.Players[0], result.Players[1])
}

func TestRunAbortsOnFailure(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.Letters = "ab"
		cfg.FailurePolicy = config.FailureAbort
	})
	registerSite(transport)
	transport.RegisterResponder("GET", testBaseURL+"/players/avery/stats/", httpmock.NewStringResponder(http.StatusNotFound, ""))

	result, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "/players/avery/")
}

func TestRunSkipsFailedPlayers(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.Letters = "ab"
		cfg.FailurePolicy = config.FailureSkip
	})
	registerSite(transport)
	transport.RegisterResponder("GET", testBaseURL+"/players/avery/stats/", httpmock.NewStringResponder(http.StatusNotFound, ""))

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Players, 2)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 1, result.ErrorsByType["not_found"])
	assert.Equal(t, []string{testBaseURL + "/players/avery/stats/"}, result.FailedURLs)
	for _, player := range result.Players {
		assert.NotEqual(t, "Avery Ace", player.Name)
	}
}

func TestBackoffCapped(t *testing.T) {
	s, _ := newTestScraper(t, func(cfg *config.Config) {
		cfg.RetryBackoff = 200 * time.Millisecond
		cfg.RetryBackoffMax = 500 * time.Millisecond
	})

	assert.Equal(t, 200*time.Millisecond, s.backoff(1))
	assert.Equal(t, 400*time.Millisecond, s.backoff(2))
	assert.Equal(t, 500*time.Millisecond, s.backoff(4))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
		retryable  bool
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout", retryable: true},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout", retryable: true},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection", retryable: true},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited", retryable: true},
		{name: "server", err: errors.New("Bad Gateway"), statusCode: http.StatusBadGateway, expected: "server", retryable: true},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyError("http://example.test/page", tt.err, tt.statusCode)
			if got := errorTypeLabel(classified); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
			var fetchErr *FetchError
			if errors.As(classified, &fetchErr) && fetchErr.Retryable() != tt.retryable {
				t.Fatalf("retryable = %v, want %v", fetchErr.Retryable(), tt.retryable)
			}
		})
	}
}
