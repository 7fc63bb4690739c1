package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/qb-stats-scraper/config"
	"github.com/aluiziolira/qb-stats-scraper/models"
	"github.com/aluiziolira/qb-stats-scraper/pipeline"
	"github.com/aluiziolira/qb-stats-scraper/scraper"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("letters", len(cfg.Letters)),
		slog.String("position", cfg.Position),
		slog.Int("workers", cfg.Parallelism),
		slog.String("failure_policy", cfg.FailurePolicy),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)

	result, err := s.Run(ctx)
	shutdownMetricsServer(metricsServer)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writeResult(cfg, result.Players); err != nil {
		slog.Error("writing output failed", slog.Any("error", err))
		os.Exit(1)
	}

	logSummary(result, cfg.OutputFile)
}

func loadConfig() (*config.Config, error) {
	defaults := config.DefaultConfig()

	if value, ok, err := config.EnvInt("SCRAPER_PARALLEL"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_PARALLEL: %w", err)
	} else if ok {
		defaults.Parallelism = value
	}
	if value, ok, err := config.EnvInt("SCRAPER_MAX_RETRIES"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_MAX_RETRIES: %w", err)
	} else if ok {
		defaults.MaxRetries = value
	}
	if value, ok, err := config.EnvDuration("SCRAPER_TIMEOUT"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_TIMEOUT: %w", err)
	} else if ok {
		defaults.Timeout = value
	}
	if value, ok := config.EnvString("SCRAPER_BASE_URL"); ok {
		defaults.BaseURL = value
	}
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		defaults.OutputFile = value
	}
	if value, ok := config.EnvString("SCRAPER_FORMAT"); ok {
		defaults.OutputFormat = value
	}
	if value, ok := config.EnvString("SCRAPER_FAILURE_POLICY"); ok {
		defaults.FailurePolicy = value
	}
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		defaults.MetricsAddr = value
	}

	baseURL := flag.String("base-url", defaults.BaseURL, "Site origin to crawl")
	parallelism := flag.Int("parallel", defaults.Parallelism, "Number of concurrent workers")
	timeout := flag.Duration("timeout", defaults.Timeout, "Per-request timeout")
	maxRetries := flag.Int("max-retries", defaults.MaxRetries, "Maximum retry attempts per URL for transient errors")
	retryBackoffMs := flag.Int("retry-backoff", int(defaults.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaults.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	maxPages := flag.Int("max-pages", defaults.MaxPagesPerLetter, "Maximum listing pages per letter (0 = no limit)")
	outputFile := flag.String("output", defaults.OutputFile, "Optional output file path")
	outputFormat := flag.String("format", defaults.OutputFormat, "Output file format: table, csv, or json")
	failurePolicy := flag.String("failure-policy", defaults.FailurePolicy, "On task failure: abort or skip")
	metricsAddr := flag.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", defaults.Verbose, "Enable verbose logging")

	flag.Parse()
	if flag.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(flag.Args(), " "))
	}

	cfg := defaults
	cfg.BaseURL = *baseURL
	cfg.Parallelism = *parallelism
	cfg.Timeout = *timeout
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.MaxPagesPerLetter = *maxPages
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.FailurePolicy = strings.ToLower(*failurePolicy)
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	return cfg, nil
}

func createFileWriter(format, filename string) (pipeline.OutputWriter, error) {
	if filename == "" {
		return nil, nil
	}
	switch format {
	case "table":
		return pipeline.NewTableFileWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "json":
		return pipeline.NewJSONWriter(filename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// writeResult renders the table on stdout and mirrors it to the output file, if any.
func writeResult(cfg *config.Config, players []*models.Player) error {
	fileWriter, err := createFileWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("create writer: %w", err)
	}

	var writer *pipeline.MultiWriter
	if fileWriter != nil {
		writer = pipeline.NewMultiWriter(pipeline.NewTableWriter(os.Stdout), fileWriter)
	} else {
		writer = pipeline.NewMultiWriter(pipeline.NewTableWriter(os.Stdout))
	}

	if err := writer.Write(players); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return writer.Validate()
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func shutdownMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func logSummary(result *models.ScrapeResult, outputFile string) {
	duration := result.EndTime.Sub(result.StartTime)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}

	attrs := []any{
		slog.Int("players", len(result.Players)),
		slog.Int("links", result.LinkCount),
		slog.Int("listing_pages", result.PageCount),
		slog.Int("malformed_pages", result.MalformedPages),
		slog.Int("without_stats", result.FallbackCount),
		slog.Int("skipped", result.SkippedCount),
		slog.Int("requests", result.RequestCount),
		slog.Int("retries", result.RetryCount),
		slog.String("success_rate", fmt.Sprintf("%.2f%%", successRate)),
		slog.Duration("duration", duration),
	}
	if len(result.ErrorsByType) > 0 {
		attrs = append(attrs, slog.Any("errors", result.ErrorsByType))
	}
	if outputFile != "" {
		attrs = append(attrs, slog.String("output_file", outputFile))
	}
	slog.Info("scrape complete", attrs...)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
