package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"hemnetscraper/config"
	"hemnetscraper/internal/browser"
	"hemnetscraper/internal/scraper"
	"hemnetscraper/logger"
	"hemnetscraper/services/cache"
	"hemnetscraper/services/publisher"
	"hemnetscraper/services/store"
	"hemnetscraper/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("run_mode", cfg.RunMode).
		Str("fetch_mode", cfg.FetchMode).
		Dur("crawl_interval", cfg.CrawlInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Storage is mandatory
	pg, err := store.NewPostgresStore(cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pg.Close()
	log.Info().Str("host", cfg.PostgresHost).Str("db", cfg.PostgresDB).Msg("Connected to PostgreSQL")

	// Known-ID cache is optional
	var cacheSvc cache.CacheService
	if cfg.MemcacheAddr != "" {
		cacheSvc = cache.NewMemcacheService(cfg.MemcacheAddr)
		log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
	}

	// Publisher is optional
	var pub scraper.Publisher
	if cfg.RedisAddr != "" {
		pub = publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLen)
		defer pub.Close()
		log.Info().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Str("stream", cfg.RedisStream).
			Msg("Connected to Redis")
	}

	fetcher := newFetcher(&cfg)
	if closer, ok := fetcher.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	jobs := createJobs(&cfg, fetcher, pg, cacheSvc, pub)
	if len(jobs) == 0 {
		log.Fatal().Msg("No crawl jobs were created")
	}
	log.Info().Int("job_count", len(jobs)).Msg("Created crawl jobs")

	w := worker.NewWorker(jobs, cfg.CrawlInterval, cfg.RunOnce)

	workerDone := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(workerDone)
	}()

	// Wait for shutdown signal or worker completion
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case <-workerDone:
		log.Info().Msg("Worker finished")
	}

	log.Info().Msg("Shutting down gracefully...")
}

// newFetcher selects the page fetcher for the configured fetch mode.
func newFetcher(cfg *config.Config) scraper.Fetcher {
	if cfg.FetchMode == config.FetchModeHTTP {
		return browser.NewStaticFetcher(cfg.FetchTimeout)
	}
	return browser.NewChromeFetcher(cfg.ChromeBin, cfg.FetchTimeout)
}

// createJobs builds the crawlers selected by the run mode.
func createJobs(cfg *config.Config, fetcher scraper.Fetcher, st scraper.Store, cacheSvc cache.CacheService, pub scraper.Publisher) []worker.Job {
	var jobs []worker.Job

	if cfg.RunMode == config.RunModeActive || cfg.RunMode == config.RunModeBoth {
		jobs = append(jobs, scraper.NewActiveCrawler(scraper.CrawlConfig{
			BaseURL:        cfg.BaseURL,
			MaxPages:       cfg.MaxPages,
			KnownThreshold: cfg.ActiveKnownThreshold,
			DelayMin:       cfg.DelayMin,
			DelayMax:       cfg.DelayMax,
			KnownIDTTL:     cfg.KnownIDTTL,
		}, fetcher, st, cacheSvc, pub))
	}

	if cfg.RunMode == config.RunModeSold || cfg.RunMode == config.RunModeBoth {
		jobs = append(jobs, scraper.NewSoldCrawler(scraper.CrawlConfig{
			BaseURL:        cfg.BaseURL,
			MaxPages:       cfg.MaxPages,
			KnownThreshold: cfg.SoldKnownThreshold,
			DelayMin:       cfg.DelayMin,
			DelayMax:       cfg.DelayMax,
		}, fetcher, st, pub))
	}

	return jobs
}
