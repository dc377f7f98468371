package sampletree

import (
	"time"

	"github.com/himanishpuri/SampleTree/pkg/sampletree/scraper"
	"github.com/himanishpuri/SampleTree/pkg/sampletree/storage"
	"github.com/himanishpuri/SampleTree/pkg/utils"
)

type Config struct {
	StoreURI       string
	MatchMode      storage.MatchMode
	ScraperPath    string
	ScraperArgs    []string
	SourceTemplate string
	ScrapeTimeout  time.Duration
	Breaker        bool
	Strict         bool
	History        bool
	Logger         Logger
	Store          Store
	Fetcher        Fetcher
	Metrics        Metrics
}

type Option func(*Config)

func WithStoreURI(uri string) Option {
	return func(c *Config) {
		c.StoreURI = uri
	}
}

func WithMatchMode(mode storage.MatchMode) Option {
	return func(c *Config) {
		c.MatchMode = mode
	}
}

// WithScraper sets the scraper executable and any arguments placed before
// the source URL.
func WithScraper(path string, args ...string) Option {
	return func(c *Config) {
		c.ScraperPath = path
		c.ScraperArgs = args
	}
}

func WithSourceTemplate(template string) Option {
	return func(c *Config) {
		c.SourceTemplate = template
	}
}

func WithScrapeTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ScrapeTimeout = d
	}
}

// WithBreaker wraps the scraper in a circuit breaker.
func WithBreaker(enabled bool) Option {
	return func(c *Config) {
		c.Breaker = enabled
	}
}

// WithStrict makes Resolve return ErrNotFound on a store miss instead of scraping.
func WithStrict(strict bool) Option {
	return func(c *Config) {
		c.Strict = strict
	}
}

func WithHistory(enabled bool) Option {
	return func(c *Config) {
		c.History = enabled
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithStore uses store instead of opening StoreURI. The service closes it.
func WithStore(store Store) Option {
	return func(c *Config) {
		c.Store = store
	}
}

// WithFetcher replaces the subprocess scraper.
func WithFetcher(f Fetcher) Option {
	return func(c *Config) {
		c.Fetcher = f
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

func defaultConfig() *Config {
	return &Config{
		MatchMode:      storage.MatchExact,
		ScraperPath:    "sampletree-scraper",
		SourceTemplate: utils.DefaultSourceTemplate,
		ScrapeTimeout:  scraper.DefaultTimeout,
		History:        true,
	}
}
