package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/himanishpuri/SampleTree/pkg/models"
	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for the scraper circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the settings used by the server.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "scraper",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Breaker stops spawning scrapers while they keep failing. Parse failures
// are page-specific and do not count against the scraper.
type Breaker struct {
	next Fetcher
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Fetcher, cfg BreakerConfig, log Logger) *Breaker {
	if log == nil {
		log = nopLogger{}
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("Circuit breaker '%s' state changed from %v to %v", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			var se *ScrapeError
			if errors.As(err, &se) && se.Kind == KindParseFailure {
				return true
			}
			return err == nil
		},
	})
	return &Breaker{next: next, cb: cb}
}

// Fetch delegates to the wrapped fetcher unless the circuit is open.
func (b *Breaker) Fetch(ctx context.Context, title string) (*models.LineageRecord, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Fetch(ctx, title)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &ScrapeError{Kind: KindProcessFailure, Title: title, Detail: "scraper temporarily disabled after repeated failures", Err: err}
	}
	if err != nil {
		return nil, err
	}
	return res.(*models.LineageRecord), nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}
