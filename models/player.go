// Package models defines data structures for the scraper.
package models

import "time"

// NoStat is the value carried by every numeric field of a player without a stats table.
const NoStat = "0"

// Columns is the rendered column order and matches Player.Row.
var Columns = []string{"Name", "ATT", "COMP", "YDS", "TD", "INT", "PR", "URL"}

// Player is one quarterback's career totals as shown on the stats page.
// Numeric fields keep the page text as-is.
type Player struct {
	Name          string `csv:"name" json:"name"`
	Attempts      string `csv:"att" json:"att"`
	Completions   string `csv:"comp" json:"comp"`
	Yards         string `csv:"yds" json:"yds"`
	Touchdowns    string `csv:"td" json:"td"`
	Interceptions string `csv:"int" json:"int"`
	PasserRating  string `csv:"pr" json:"pr"`
	URL           string `csv:"url" json:"url"`
	HasStats      bool   `csv:"has_stats" json:"has_stats"`
}

// NewPlayerWithoutStats builds the record used when the stats table is missing.
func NewPlayerWithoutStats(name, url string) *Player {
	return &Player{
		Name:          name,
		Attempts:      NoStat,
		Completions:   NoStat,
		Yards:         NoStat,
		Touchdowns:    NoStat,
		Interceptions: NoStat,
		PasserRating:  NoStat,
		URL:           url,
	}
}

// Row returns the fields in Columns order.
func (p *Player) Row() []string {
	return []string{
		p.Name,
		p.Attempts,
		p.Completions,
		p.Yards,
		p.Touchdowns,
		p.Interceptions,
		p.PasserRating,
		p.URL,
	}
}

// ScrapeResult holds the overall result of a scraping run.
type ScrapeResult struct {
	Players        []*Player
	StartTime      time.Time
	EndTime        time.Time
	LetterCount    int
	LinkCount      int
	PageCount      int
	RequestCount   int
	ErrorCount     int
	RetryCount     int
	FallbackCount  int
	MalformedPages int
	SkippedCount   int
	FailedURLs     []string
	ErrorsByType   map[string]int
}
