package sampletree

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/himanishpuri/SampleTree/pkg/logger"
	"github.com/himanishpuri/SampleTree/pkg/models"
	"github.com/himanishpuri/SampleTree/pkg/sampletree/scraper"
	"github.com/himanishpuri/SampleTree/pkg/sampletree/storage"
	"golang.org/x/sync/singleflight"
)

// Resolve outcomes reported to Metrics.
const (
	OutcomeHit        = "hit"
	OutcomeScraped    = "scraped"
	OutcomeNotFound   = "not_found"
	OutcomeStoreError = "store_error"
	OutcomeScrapeErr  = "scrape_error"
	OutcomeCanceled   = "canceled"
	OutcomeInvalid    = "invalid"
)

// sampleTreeService is the default implementation of the Service interface.
type sampleTreeService struct {
	store   Store
	history HistoryStore
	fetcher Fetcher
	log     Logger
	metrics Metrics
	config  *Config

	flights singleflight.Group
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}

	store := cfg.Store
	opened := false
	if store == nil {
		backend, err := OpenStore(cfg.StoreURI, storage.WithMatchMode(cfg.MatchMode))
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		store = backend
		opened = true
	}

	var history HistoryStore
	if cfg.History {
		if hs, ok := store.(HistoryStore); ok {
			history = hs
		} else {
			cfg.Logger.Warnf("Store %T keeps no history; lookup history disabled", store)
		}
	}

	fetcher := cfg.Fetcher
	if fetcher == nil && !cfg.Strict {
		gw, err := scraper.New(cfg.ScraperPath,
			scraper.WithArgs(cfg.ScraperArgs...),
			scraper.WithSourceTemplate(cfg.SourceTemplate),
			scraper.WithTimeout(cfg.ScrapeTimeout),
			scraper.WithLogger(cfg.Logger),
		)
		if err != nil {
			if opened {
				store.Close()
			}
			return nil, fmt.Errorf("failed to configure scraper: %w", err)
		}
		fetcher = gw
	}
	if fetcher != nil && cfg.Breaker {
		fetcher = scraper.NewBreaker(fetcher, scraper.DefaultBreakerConfig(), cfg.Logger)
	}

	return &sampleTreeService{
		store:   store,
		history: history,
		fetcher: fetcher,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		config:  cfg,
	}, nil
}

// Resolve looks title up in the store and falls back to the scraper on a miss.
// Concurrent misses for the same title share one scrape.
func (s *sampleTreeService) Resolve(ctx context.Context, title string) (*models.LineageRecord, error) {
	start := time.Now()
	rec, outcome, err := s.resolve(ctx, title)
	s.metrics.ObserveResolve(outcome, time.Since(start))
	return rec, err
}

func (s *sampleTreeService) resolve(ctx context.Context, title string) (*models.LineageRecord, string, error) {
	title = strings.TrimSpace(title)
	key := models.TitleKey(title)
	if key == "" {
		return nil, OutcomeInvalid, ErrEmptyTitle
	}

	rec, err := s.lookup(ctx, title)
	switch {
	case err == nil:
		s.log.Debugf("Store hit for %q", title)
		return rec, OutcomeHit, nil
	case !errors.Is(err, ErrNotFound):
		s.log.Errorf("Lookup of %q failed: %v", title, err)
		return nil, OutcomeStoreError, err
	}

	if s.config.Strict || s.fetcher == nil {
		return nil, OutcomeNotFound, ErrNotFound
	}

	// The flight outlives any single caller; the scraper timeout bounds it.
	ch := s.flights.DoChan(key, func() (any, error) {
		return s.fetchAndStore(context.WithoutCancel(ctx), title)
	})

	select {
	case <-ctx.Done():
		return nil, OutcomeCanceled, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var se *StoreError
			if errors.As(res.Err, &se) {
				return nil, OutcomeStoreError, res.Err
			}
			return nil, OutcomeScrapeErr, res.Err
		}
		rec := res.Val.(*models.LineageRecord)
		if res.Shared {
			rec = rec.Clone()
		}
		return rec, OutcomeScraped, nil
	}
}

func (s *sampleTreeService) lookup(ctx context.Context, title string) (*models.LineageRecord, error) {
	rec, err := s.store.Get(ctx, title)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	rec.Normalize()
	return rec, nil
}

func (s *sampleTreeService) fetchAndStore(ctx context.Context, title string) (*models.LineageRecord, error) {
	// A flight for this title may have finished between our lookup and this one.
	if rec, err := s.lookup(ctx, title); err == nil {
		return rec, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	s.log.Infof("Scraping %q", title)
	start := time.Now()
	rec, err := s.fetcher.Fetch(ctx, title)
	s.metrics.ObserveScrape(scrapeResult(err), time.Since(start))
	if err != nil {
		s.log.Warnf("Scrape of %q failed: %v", title, err)
		return nil, err
	}

	rec.Normalize()
	if models.TitleKey(rec.Title) == "" {
		rec.Title = title
	}

	stored, err := s.store.Put(ctx, rec)
	if err != nil {
		s.log.Errorf("Scraped %q but could not store it: %v", title, err)
		return nil, &StoreError{Op: "put", Err: err}
	}
	stored.Normalize()

	s.log.Infof("Stored %q: %d samples, %d sampled by", stored.Title, len(stored.Samples), len(stored.SampledBy))
	return stored, nil
}

func scrapeResult(err error) string {
	if err == nil {
		return "ok"
	}
	var se *scraper.ScrapeError
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return "error"
}

func (s *sampleTreeService) ListSongs(ctx context.Context) ([]models.LineageRecord, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	for i := range recs {
		recs[i].Normalize()
	}
	return recs, nil
}

// RecordLookup stores a history entry. It is a no-op when history is disabled.
func (s *sampleTreeService) RecordLookup(ctx context.Context, entry *models.HistoryEntry) error {
	if s.history == nil {
		return nil
	}
	if err := s.history.RecordHistory(ctx, entry); err != nil {
		return &StoreError{Op: "record history", Err: err}
	}
	return nil
}

// History returns up to limit entries, newest first. A limit <= 0 returns all.
func (s *sampleTreeService) History(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if s.history == nil {
		return []models.HistoryEntry{}, nil
	}
	entries, err := s.history.ListHistory(ctx, limit)
	if err != nil {
		return nil, &StoreError{Op: "list history", Err: err}
	}
	return entries, nil
}

func (s *sampleTreeService) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	songs, err := s.store.Count(ctx)
	if err != nil {
		return st, &StoreError{Op: "count", Err: err}
	}
	st.Songs = songs

	if s.history != nil {
		lookups, err := s.history.CountHistory(ctx)
		if err != nil {
			return st, &StoreError{Op: "count history", Err: err}
		}
		st.Lookups = lookups
	}
	return st, nil
}

func (s *sampleTreeService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}

func (s *sampleTreeService) Close() error {
	return s.store.Close()
}

type nopMetrics struct{}

func (nopMetrics) ObserveResolve(string, time.Duration) {}
func (nopMetrics) ObserveScrape(string, time.Duration)  {}
