// Package config loads process configuration for the sampletree binaries.
//
// Sources, lowest precedence first: a .env file, an optional YAML or TOML
// config file, environment variables. Command-line flags are applied by the
// caller before Validate.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvStoreURI       = "SAMPLETREE_STORE_URI"
	EnvLegacyStoreURI = "MONGO_URI"
	EnvPort           = "PORT"
	EnvScraper        = "SAMPLETREE_SCRAPER"
	EnvScraperArgs    = "SAMPLETREE_SCRAPER_ARGS"
	EnvSourceURL      = "SAMPLETREE_SOURCE_URL"
	EnvScrapeTimeout  = "SAMPLETREE_SCRAPE_TIMEOUT"
	EnvStrict         = "SAMPLETREE_STRICT"
	EnvMatchMode      = "SAMPLETREE_MATCH_MODE"
	EnvBreaker        = "SAMPLETREE_BREAKER"
	EnvHistory        = "SAMPLETREE_HISTORY"
	EnvAllowedOrigins = "SAMPLETREE_ALLOWED_ORIGINS"
	EnvLogLevel       = "LOG_LEVEL"
)

// Config holds every setting the server and CLI read at startup.
type Config struct {
	StoreURI       string   `yaml:"store_uri" toml:"store_uri" validate:"required"`
	Port           int      `yaml:"port" toml:"port" validate:"min=1,max=65535"`
	ScraperPath    string   `yaml:"scraper_path" toml:"scraper_path" validate:"required"`
	ScraperArgs    []string `yaml:"scraper_args" toml:"scraper_args"`
	SourceURL      string   `yaml:"source_url" toml:"source_url" validate:"required,contains={title}"`
	ScrapeTimeout  Duration `yaml:"scrape_timeout" toml:"scrape_timeout" validate:"gt=0"`
	Strict         bool     `yaml:"strict" toml:"strict"`
	MatchMode      string   `yaml:"match_mode" toml:"match_mode" validate:"oneof=exact substring"`
	Breaker        bool     `yaml:"breaker" toml:"breaker"`
	History        bool     `yaml:"history" toml:"history"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins" validate:"min=1,dive,required"`
	LogLevel       string   `yaml:"log_level" toml:"log_level" validate:"oneof=debug info warn warning error"`
}

// Duration is a time.Duration written as "15s" in config files and env.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when nothing overrides it.
// StoreURI has no default.
func Default() *Config {
	return &Config{
		Port:           3000,
		ScraperPath:    "sampletree-scraper",
		SourceURL:      "https://www.whosampled.com/{title}/",
		ScrapeTimeout:  Duration(15 * time.Second),
		MatchMode:      "exact",
		History:        true,
		AllowedOrigins: []string{"*"},
		LogLevel:       "info",
	}
}

// Load reads envFiles (".env" when none are given; missing files are
// skipped), then the config file at path if path is non-empty, then the
// environment. The result is not validated.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("config %s: unsupported format %q (want .yaml, .yml or .toml)", path, ext)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvStoreURI); v != "" {
		c.StoreURI = v
	} else if v := os.Getenv(EnvLegacyStoreURI); v != "" {
		c.StoreURI = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Port = port
	}
	if v := os.Getenv(EnvScraper); v != "" {
		c.ScraperPath = v
	}
	if v := os.Getenv(EnvScraperArgs); v != "" {
		c.ScraperArgs = strings.Fields(v)
	}
	if v := os.Getenv(EnvSourceURL); v != "" {
		c.SourceURL = v
	}
	if v := os.Getenv(EnvScrapeTimeout); v != "" {
		if err := c.ScrapeTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", EnvScrapeTimeout, err)
		}
	}
	for env, dst := range map[string]*bool{
		EnvStrict:  &c.Strict,
		EnvBreaker: &c.Breaker,
		EnvHistory: &c.History,
	} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
		*dst = b
	}
	if v := os.Getenv(EnvMatchMode); v != "" {
		c.MatchMode = v
	}
	if v := os.Getenv(EnvAllowedOrigins); v != "" {
		c.AllowedOrigins = SplitList(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// SplitList splits a comma-separated list, dropping blank entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
