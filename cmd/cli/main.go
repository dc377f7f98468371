package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/himanishpuri/SampleTree/internal/config"
	"github.com/himanishpuri/SampleTree/pkg/logger"
	"github.com/himanishpuri/SampleTree/pkg/sampletree"
	"github.com/himanishpuri/SampleTree/pkg/sampletree/storage"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Global flags
var (
	configPath    string
	envFile       string
	storeURI      string
	scraperPath   string
	scraperArgs   []string
	sourceURL     string
	scrapeTimeout time.Duration
	strict        bool
	matchMode     string
	logLevel      string
	quiet         bool
)

// Command flags
var (
	resolveJSON  bool
	treeBoth     bool
	historyLimit int
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sampletree",
	Short: "Look up song sample lineage from the command line",
	Long: `sampletree resolves song titles to the songs they sample and the songs that
sample them, using the same store and scraper as the HTTP server.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <title>",
	Short: "Resolve a title, scraping it if the store has no record",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

var treeCmd = &cobra.Command{
	Use:   "tree <title>",
	Short: "Print the lineage tree of a title",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTree,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored song",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent lookups made through the API",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store counters",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML or TOML config file")
	flags.StringVar(&envFile, "env-file", ".env", "Path to a dotenv file (skipped if missing)")
	flags.StringVar(&storeURI, "store", "", "Store URI (sqlite://path or redis://host:port/db)")
	flags.StringVar(&scraperPath, "scraper", "", "Scraper executable")
	flags.StringSliceVar(&scraperArgs, "scraper-arg", nil, "Argument placed before the source URL (repeatable)")
	flags.StringVar(&sourceURL, "source-url", "", "Source page template containing {title}")
	flags.DurationVar(&scrapeTimeout, "scrape-timeout", 15*time.Second, "Maximum wall-clock time per scraper run")
	flags.BoolVar(&strict, "strict", false, "Never scrape; unknown titles are reported as not found")
	flags.StringVar(&matchMode, "match-mode", "exact", "Title matching: exact or substring")
	flags.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Do not print the banner")

	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the record as JSON")
	treeCmd.Flags().BoolVar(&treeBoth, "both", false, "Include the songs the title samples")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")

	rootCmd.AddCommand(resolveCmd, treeCmd, listCmd, historyCmd, statsCmd)
}

// loadConfig resolves configuration before any subcommand runs
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if configPath == "" && os.Getenv(config.EnvLogLevel) == "" {
		loaded.LogLevel = "warn"
	}
	applyFlags(cmd, loaded)
	if err := loaded.Validate(); err != nil {
		return err
	}

	// stdout carries command output; logs go to stderr
	log := logger.GetLogger()
	log.SetOutput(os.Stderr)
	log.SetColorize(isatty.IsTerminal(os.Stderr.Fd()))
	log.SetLevel(logger.ParseLevel(loaded.LogLevel))

	if !quiet && !resolveJSON && isatty.IsTerminal(os.Stdout.Fd()) {
		printBanner()
	}
	log.Infof("Executing command: %s", cmd.Name())

	cfg = loaded
	return nil
}

// applyFlags overrides c with every flag set on the command line
func applyFlags(cmd *cobra.Command, c *config.Config) {
	changed := cmd.Flags().Changed
	if changed("store") {
		c.StoreURI = storeURI
	}
	if changed("scraper") {
		c.ScraperPath = scraperPath
	}
	if changed("scraper-arg") {
		c.ScraperArgs = scraperArgs
	}
	if changed("source-url") {
		c.SourceURL = sourceURL
	}
	if changed("scrape-timeout") {
		c.ScrapeTimeout = config.Duration(scrapeTimeout)
	}
	if changed("strict") {
		c.Strict = strict
	}
	if changed("match-mode") {
		c.MatchMode = matchMode
	}
	if changed("log-level") {
		c.LogLevel = logLevel
	}
}

// createService creates a service with the loaded configuration
func createService() (sampletree.Service, error) {
	mode, err := storage.ParseMatchMode(cfg.MatchMode)
	if err != nil {
		return nil, err
	}
	svc, err := sampletree.NewService(
		sampletree.WithStoreURI(cfg.StoreURI),
		sampletree.WithMatchMode(mode),
		sampletree.WithScraper(cfg.ScraperPath, cfg.ScraperArgs...),
		sampletree.WithSourceTemplate(cfg.SourceURL),
		sampletree.WithScrapeTimeout(cfg.ScrapeTimeout.Std()),
		sampletree.WithStrict(cfg.Strict),
		sampletree.WithHistory(cfg.History),
		sampletree.WithLogger(logger.GetLogger()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}

// commandTimeout bounds one command, leaving room for a full scraper run
func commandTimeout() time.Duration {
	return cfg.ScrapeTimeout.Std() + 30*time.Second
}

func printBanner() {
	banner := `
 ____                        _       _____
/ ___|  __ _ _ __ ___  _ __ | | ___ |_   _| __ ___  ___
\___ \ / _' | '_ ' _ \| '_ \| |/ _ \  | || '__/ _ \/ _ \
 ___) | (_| | | | | | | |_) | |  __/  | || | |  __/  __/
|____/ \__,_|_| |_| |_| .__/|_|\___|  |_||_|  \___|\___|
                      |_|
           Sample Lineage CLI Tool
`
	fmt.Println(banner)
}

func runResolve(cmd *cobra.Command, args []string) error {
	title := strings.Join(args, " ")

	svc, err := createService()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout())
	defer cancel()

	rec, err := svc.Resolve(ctx, title)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", title, err)
	}

	if resolveJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderRecord(rec))
	return nil
}

func runTree(cmd *cobra.Command, args []string) error {
	title := strings.Join(args, " ")

	svc, err := createService()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout())
	defer cancel()

	rec, err := svc.Resolve(ctx, title)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", title, err)
	}

	dir := sampletree.DirectionSampledBy
	if treeBoth {
		dir = sampletree.DirectionBoth
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTree(sampletree.BuildTree(rec, dir)))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	svc, err := createService()
	if err != nil {
		return err
	}
	defer svc.Close()

	songs, err := svc.ListSongs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list songs: %w", err)
	}
	if len(songs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No songs in store")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSongs(songs))
	logger.Infof("Listed %d songs", len(songs))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", historyLimit)
	}

	svc, err := createService()
	if err != nil {
		return err
	}
	defer svc.Close()

	entries, err := svc.History(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No lookups recorded")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderHistory(entries, time.Now()))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	svc, err := createService()
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
