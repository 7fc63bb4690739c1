package config

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/aluiziolira/qb-stats-scraper/pipeline"
)

const (
	// FailureAbort stops the whole run on the first unrecovered task failure.
	FailureAbort = string(pipeline.PolicyAbort)
	// FailureSkip logs the failure and leaves the player out of the result.
	FailureSkip = string(pipeline.PolicySkip)
)

// Config holds scraper configuration.
type Config struct {
	BaseURL           string
	ListingPath       string // fmt template, %s is the letter
	Letters           string
	Position          string
	StatsSuffix       string
	Parallelism       int
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryBackoffMax   time.Duration
	MaxPagesPerLetter int // 0 means follow the chain to the end
	MinStatColumns    int
	PageCacheSize     int
	FailurePolicy     string // abort or skip
	OutputFile        string // empty writes to stdout only
	OutputFormat      string // table, csv, or json
	UserAgent         string
	MetricsAddr       string
	Verbose           bool
}

// DefaultConfig returns defaults for the public roster site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://www.nfl.com",
		ListingPath:       "/players/active/%s",
		Letters:           "abcdefghijklmnopqrstuvwxyz",
		Position:          "QB",
		StatsSuffix:       "stats/",
		Parallelism:       runtime.NumCPU(),
		Timeout:           10 * time.Second,
		MaxRetries:        0,
		RetryBackoff:      200 * time.Millisecond,
		RetryBackoffMax:   2 * time.Second,
		MaxPagesPerLetter: 0,
		MinStatColumns:    11,
		PageCacheSize:     256,
		FailurePolicy:     FailureAbort,
		OutputFile:        "",
		OutputFormat:      "table",
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:           false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if strings.Count(c.ListingPath, "%s") != 1 {
		return fmt.Errorf("listing path must contain exactly one %%s placeholder")
	}
	if c.Letters == "" {
		return fmt.Errorf("letters cannot be empty")
	}
	if strings.TrimSpace(c.Position) == "" {
		return fmt.Errorf("position marker cannot be empty")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.MaxPagesPerLetter < 0 {
		return fmt.Errorf("max pages per letter cannot be negative")
	}
	// Interceptions live at index 10.
	if c.MinStatColumns < 11 {
		return fmt.Errorf("min stat columns must be at least 11")
	}
	if c.PageCacheSize <= 0 {
		return fmt.Errorf("page cache size must be positive")
	}
	if c.FailurePolicy != FailureAbort && c.FailurePolicy != FailureSkip {
		return fmt.Errorf("failure policy must be abort or skip")
	}
	if c.OutputFormat != "table" && c.OutputFormat != "csv" && c.OutputFormat != "json" {
		return fmt.Errorf("output format must be table, csv, or json")
	}
	if c.OutputFormat != "table" && c.OutputFile == "" {
		return fmt.Errorf("output file is required for %s output", c.OutputFormat)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// Policy maps FailurePolicy onto the worker pool policy.
func (c *Config) Policy() pipeline.Policy {
	if c.FailurePolicy == FailureSkip {
		return pipeline.PolicySkip
	}
	return pipeline.PolicyAbort
}

// ListingURLs builds one roster listing URL per configured letter.
func (c *Config) ListingURLs() []string {
	base := strings.TrimSuffix(c.BaseURL, "/")
	urls := make([]string, 0, len(c.Letters))
	for _, letter := range c.Letters {
		urls = append(urls, base+fmt.Sprintf(c.ListingPath, string(letter)))
	}
	return urls
}

// StatsURL joins the base URL, a relative player link and the stats suffix.
func (c *Config) StatsURL(link string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + link + c.StatsSuffix
}

// ResolveURL resolves a site-relative href against the base URL.
func (c *Config) ResolveURL(href string) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
