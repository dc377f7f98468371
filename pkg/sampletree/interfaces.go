package sampletree

import (
	"context"
	"time"

	"github.com/himanishpuri/SampleTree/pkg/models"
)

// Service resolves song titles to lineage records.
type Service interface {
	// Resolve returns the stored record for title, scraping and storing it first
	// when the store has none. Failures are ErrNotFound, *StoreError or
	// *scraper.ScrapeError.
	Resolve(ctx context.Context, title string) (*models.LineageRecord, error)
	ListSongs(ctx context.Context) ([]models.LineageRecord, error)
	RecordLookup(ctx context.Context, entry *models.HistoryEntry) error
	History(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Store persists lineage records keyed by normalized title.
// Get returns storage.ErrNotFound on a miss.
type Store interface {
	Get(ctx context.Context, title string) (*models.LineageRecord, error)
	Put(ctx context.Context, rec *models.LineageRecord) (*models.LineageRecord, error)
	List(ctx context.Context) ([]models.LineageRecord, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// HistoryStore persists lookup history.
type HistoryStore interface {
	RecordHistory(ctx context.Context, entry *models.HistoryEntry) error
	ListHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	CountHistory(ctx context.Context) (int64, error)
}

// Backend is a store that also keeps lookup history.
type Backend interface {
	Store
	HistoryStore
}

// Fetcher obtains a record for a title the store does not have.
type Fetcher interface {
	Fetch(ctx context.Context, title string) (*models.LineageRecord, error)
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Metrics receives resolve pipeline observations.
type Metrics interface {
	ObserveResolve(outcome string, d time.Duration)
	ObserveScrape(result string, d time.Duration)
}

// Stats summarizes what the store holds.
type Stats struct {
	Songs   int64 `json:"songs"`
	Lookups int64 `json:"lookups"`
}
