package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/himanishpuri/SampleTree/internal/config"
	"github.com/himanishpuri/SampleTree/internal/metrics"
	"github.com/himanishpuri/SampleTree/pkg/logger"
	"github.com/himanishpuri/SampleTree/pkg/sampletree"
	"github.com/himanishpuri/SampleTree/pkg/sampletree/storage"
	"github.com/spf13/cobra"
)

var (
	configPath      string
	envFile         string
	port            int
	storeURI        string
	scraperPath     string
	scraperArgs     []string
	sourceURL       string
	scrapeTimeout   time.Duration
	strict          bool
	matchMode       string
	breaker         bool
	history         bool
	allowedOrigins  string
	logLevel        string
	shutdownTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "sampletree-server",
	Short:         "Serve song sample lineage over HTTP",
	Long:          `Resolves song titles to their sample lineage, scraping and storing unknown titles on first request.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML or TOML config file")
	flags.StringVar(&envFile, "env-file", ".env", "Path to a dotenv file (skipped if missing)")
	flags.IntVarP(&port, "port", "p", 3000, "HTTP server port")
	flags.StringVar(&storeURI, "store", "", "Store URI (sqlite://path or redis://host:port/db)")
	flags.StringVar(&scraperPath, "scraper", "", "Scraper executable")
	flags.StringSliceVar(&scraperArgs, "scraper-arg", nil, "Argument placed before the source URL (repeatable)")
	flags.StringVar(&sourceURL, "source-url", "", "Source page template containing {title}")
	flags.DurationVar(&scrapeTimeout, "scrape-timeout", 15*time.Second, "Maximum wall-clock time per scraper run")
	flags.BoolVar(&strict, "strict", false, "Return 404 for unknown titles instead of scraping")
	flags.StringVar(&matchMode, "match-mode", "exact", "Title matching: exact or substring")
	flags.BoolVar(&breaker, "breaker", false, "Stop spawning scrapers after repeated failures")
	flags.BoolVar(&history, "history", true, "Record lookup history")
	flags.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flags.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.DurationVar(&shutdownTimeout, "shutdown-timeout", 20*time.Second, "Grace period for in-flight requests on shutdown")
}

// applyFlags overrides cfg with every flag set on the command line
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("port") {
		cfg.Port = port
	}
	if changed("store") {
		cfg.StoreURI = storeURI
	}
	if changed("scraper") {
		cfg.ScraperPath = scraperPath
	}
	if changed("scraper-arg") {
		cfg.ScraperArgs = scraperArgs
	}
	if changed("source-url") {
		cfg.SourceURL = sourceURL
	}
	if changed("scrape-timeout") {
		cfg.ScrapeTimeout = config.Duration(scrapeTimeout)
	}
	if changed("strict") {
		cfg.Strict = strict
	}
	if changed("match-mode") {
		cfg.MatchMode = matchMode
	}
	if changed("breaker") {
		cfg.Breaker = breaker
	}
	if changed("history") {
		cfg.History = history
	}
	if changed("origins") {
		cfg.AllowedOrigins = config.SplitList(allowedOrigins)
	}
	if changed("log-level") {
		cfg.LogLevel = logLevel
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	log := logger.GetLogger()
	defer log.Sync()

	mode, err := storage.ParseMatchMode(cfg.MatchMode)
	if err != nil {
		return err
	}

	recorder := metrics.New("sampletree")
	service, err := sampletree.NewService(
		sampletree.WithStoreURI(cfg.StoreURI),
		sampletree.WithMatchMode(mode),
		sampletree.WithScraper(cfg.ScraperPath, cfg.ScraperArgs...),
		sampletree.WithSourceTemplate(cfg.SourceURL),
		sampletree.WithScrapeTimeout(cfg.ScrapeTimeout.Std()),
		sampletree.WithStrict(cfg.Strict),
		sampletree.WithBreaker(cfg.Breaker),
		sampletree.WithHistory(cfg.History),
		sampletree.WithLogger(log),
		sampletree.WithMetrics(recorder),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer service.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := service.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	server := NewServer(service, &ServerConfig{
		Port:            cfg.Port,
		StoreURI:        cfg.StoreURI,
		MatchMode:       cfg.MatchMode,
		Strict:          cfg.Strict,
		History:         cfg.History,
		AllowedOrigins:  cfg.AllowedOrigins,
		ShutdownTimeout: shutdownTimeout,
	}, recorder)
	return server.Start(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
