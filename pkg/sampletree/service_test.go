package sampletree

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/himanishpuri/SampleTree/pkg/logger"
	"github.com/himanishpuri/SampleTree/pkg/models"
	"github.com/himanishpuri/SampleTree/pkg/sampletree/scraper"
	"github.com/himanishpuri/SampleTree/pkg/sampletree/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Backend with call counters.
type memStore struct {
	mu      sync.Mutex
	records map[string]*models.LineageRecord
	order   []string
	history []models.HistoryEntry

	getErr error
	putErr error

	gets int
	puts int
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*models.LineageRecord{}}
}

func (m *memStore) Get(_ context.Context, title string) (*models.LineageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[models.TitleKey(title)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *memStore) Put(_ context.Context, rec *models.LineageRecord) (*models.LineageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return nil, m.putErr
	}
	key := rec.Key()
	if existing, ok := m.records[key]; ok {
		return existing.Clone(), nil
	}
	m.records[key] = rec.Clone()
	m.order = append(m.order, key)
	return rec.Clone(), nil
}

func (m *memStore) List(context.Context) ([]models.LineageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.LineageRecord, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, *m.records[key].Clone())
	}
	return out, nil
}

func (m *memStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memStore) RecordHistory(_ context.Context, entry *models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append([]models.HistoryEntry{*entry}, m.history...)
	return nil
}

func (m *memStore) ListHistory(_ context.Context, limit int) ([]models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	return append([]models.HistoryEntry(nil), m.history[:limit]...), nil
}

func (m *memStore) CountHistory(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.history)), nil
}

func (m *memStore) Ping(context.Context) error { return m.getErr }
func (m *memStore) Close() error               { return nil }

func (m *memStore) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// fakeFetcher returns rec (or err) and counts calls. When gate is set, Fetch
// blocks until it is closed.
type fakeFetcher struct {
	calls   atomic.Int32
	rec     *models.LineageRecord
	err     error
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *fakeFetcher) Fetch(ctx context.Context, title string) (*models.LineageRecord, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	rec := f.rec.Clone()
	if rec.Title == "" {
		rec.Title = title
	}
	return rec, nil
}

type fakeMetrics struct {
	mu       sync.Mutex
	outcomes []string
	scrapes  []string
}

func (f *fakeMetrics) ObserveResolve(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeMetrics) ObserveScrape(result string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrapes = append(f.scrapes, result)
}

func quietLogger() Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ERROR
	cfg.Output = io.Discard
	return logger.New(cfg)
}

func funkyDrummer() *models.LineageRecord {
	return &models.LineageRecord{
		Title:   "Funky Drummer",
		Artist:  "James Brown",
		Year:    "1970",
		Samples: []models.SampleRef{},
		SampledBy: []models.SampleRef{
			{TrackName: "Fight the Power", Artists: []string{"Public Enemy"}},
			{TrackName: "Let Me Ride", Artists: []string{"Dr. Dre", "Snoop Dogg"}},
		},
	}
}

func newTestService(t *testing.T, store Store, fetcher Fetcher, opts ...Option) Service {
	t.Helper()

	base := []Option{WithStore(store), WithLogger(quietLogger())}
	if fetcher != nil {
		base = append(base, WithFetcher(fetcher))
	}
	svc, err := NewService(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		svc.Close()
	})
	return svc
}

func TestResolveHitDoesNotScrape(t *testing.T) {
	store := newMemStore()
	_, err := store.Put(context.Background(), funkyDrummer())
	require.NoError(t, err)

	fetcher := &fakeFetcher{rec: funkyDrummer()}
	svc := newTestService(t, store, fetcher)

	rec, err := svc.Resolve(context.Background(), "funky DRUMMER")
	require.NoError(t, err)
	assert.Equal(t, funkyDrummer(), rec)
	assert.Equal(t, int32(0), fetcher.calls.Load())
	assert.Equal(t, 1, store.putCount())
}

func TestResolveMissScrapesOnceAndPersists(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{rec: funkyDrummer()}
	metrics := &fakeMetrics{}
	svc := newTestService(t, store, fetcher, WithMetrics(metrics))
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "Funky Drummer")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1, store.putCount())

	second, err := svc.Resolve(ctx, "Funky Drummer")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1, store.putCount())

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))

	assert.Equal(t, []string{OutcomeScraped, OutcomeHit}, metrics.outcomes)
	assert.Equal(t, []string{"ok"}, metrics.scrapes)
}

func TestResolveNormalizesScrapedRecord(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{rec: &models.LineageRecord{}}
	svc := newTestService(t, store, fetcher)

	rec, err := svc.Resolve(context.Background(), "  Think  ")
	require.NoError(t, err)
	assert.Equal(t, "Think", rec.Title)
	assert.NotNil(t, rec.Samples)
	assert.NotNil(t, rec.SampledBy)
}

func TestResolveScrapeFailureNotPersisted(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{err: &scraper.ScrapeError{Kind: scraper.KindParseFailure, Title: "Think"}}
	metrics := &fakeMetrics{}
	svc := newTestService(t, store, fetcher, WithMetrics(metrics))

	_, err := svc.Resolve(context.Background(), "Think")
	var se *scraper.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scraper.KindParseFailure, se.Kind)
	assert.Equal(t, 0, store.putCount())
	assert.Equal(t, []string{OutcomeScrapeErr}, metrics.outcomes)
	assert.Equal(t, []string{string(scraper.KindParseFailure)}, metrics.scrapes)
}

func TestResolveStoreUnreachableNeverScrapes(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("dial tcp 127.0.0.1:6379: connection refused")
	fetcher := &fakeFetcher{rec: funkyDrummer()}
	svc := newTestService(t, store, fetcher)

	_, err := svc.Resolve(context.Background(), "Funky Drummer")
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get", storeErr.Op)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}

func TestResolvePersistFailure(t *testing.T) {
	store := newMemStore()
	store.putErr = errors.New("disk full")
	fetcher := &fakeFetcher{rec: funkyDrummer()}
	svc := newTestService(t, store, fetcher)

	_, err := svc.Resolve(context.Background(), "Funky Drummer")
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "put", storeErr.Op)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestResolveStrictReturnsNotFound(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{rec: funkyDrummer()}
	svc := newTestService(t, store, fetcher, WithStrict(true))

	_, err := svc.Resolve(context.Background(), "Funky Drummer")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}

func TestResolveStrictWithoutScraper(t *testing.T) {
	svc, err := NewService(WithStore(newMemStore()), WithStrict(true), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Resolve(context.Background(), "Think")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveEmptyTitle(t *testing.T) {
	fetcher := &fakeFetcher{rec: funkyDrummer()}
	svc := newTestService(t, newMemStore(), fetcher)

	_, err := svc.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}

func TestResolveConcurrentMissesCoalesce(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{
		rec:     funkyDrummer(),
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	svc := newTestService(t, store, fetcher)

	const callers = 12
	var wg sync.WaitGroup
	results := make(chan *models.LineageRecord, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := svc.Resolve(context.Background(), "funky drummer")
			if err != nil {
				errs <- err
				return
			}
			results <- rec
		}()
	}

	<-fetcher.started
	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Errorf("resolve failed: %v", err)
	}
	for rec := range results {
		assert.Equal(t, "Funky Drummer", rec.Title)
	}

	assert.Equal(t, int32(1), fetcher.calls.Load())
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestResolveCallerCancelDoesNotAbortScrape(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{
		rec:     funkyDrummer(),
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	svc := newTestService(t, store, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Resolve(ctx, "Funky Drummer")
		done <- err
	}()

	<-fetcher.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(fetcher.gate)
	require.Eventually(t, func() bool {
		n, _ := store.Count(context.Background())
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListSongsHistoryAndStats(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, &fakeFetcher{rec: &models.LineageRecord{}})
	ctx := context.Background()

	for _, title := range []string{"Amen, Brother", "Funky Drummer"} {
		rec, err := svc.Resolve(ctx, title)
		require.NoError(t, err)
		require.NoError(t, svc.RecordLookup(ctx, &models.HistoryEntry{
			IP:           "10.0.0.1",
			RootSong:     rec.Title,
			TreeSnapshot: Build(rec),
		}))
	}

	songs, err := svc.ListSongs(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "Amen, Brother", songs[0].Title)

	history, err := svc.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Funky Drummer", history[0].RootSong)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Songs: 2, Lookups: 2}, stats)
}

func TestHistoryDisabled(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, &fakeFetcher{rec: &models.LineageRecord{}}, WithHistory(false))
	ctx := context.Background()

	require.NoError(t, svc.RecordLookup(ctx, &models.HistoryEntry{RootSong: "Think"}))
	history, err := svc.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	count, err := store.CountHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestNewServiceRequiresStoreURI(t *testing.T) {
	_, err := NewService(WithLogger(quietLogger()))
	assert.Error(t, err)
}

func writeScraperScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	script := filepath.Join(t.TempDir(), "scraper.sh")
	require.NoError(t, os.WriteFile(script, []byte(body), 0o644))
	return script
}

func newScriptService(t *testing.T, body string) (Service, string) {
	t.Helper()

	script := writeScraperScript(t, body)
	dbPath := filepath.Join(t.TempDir(), "sampletree.sqlite3")
	svc, err := NewService(
		WithStoreURI("sqlite://"+dbPath),
		WithScraper("/bin/sh", script),
		WithSourceTemplate("https://samples.test/{title}/"),
		WithScrapeTimeout(5*time.Second),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		svc.Close()
	})
	return svc, dbPath
}

func TestResolveThroughScraperProcess(t *testing.T) {
	svc, _ := newScriptService(t, `
cat <<'EOF'
{"title": "Funky Drummer", "samples": [], "sampled_by": [{"track_name": "Fight the Power", "artists": ["Public Enemy"]}]}
EOF
`)
	ctx := context.Background()

	rec, err := svc.Resolve(ctx, "Funky Drummer")
	require.NoError(t, err)
	require.Len(t, rec.SampledBy, 1)

	again, err := svc.Resolve(ctx, "FUNKY drummer")
	require.NoError(t, err)
	assert.Equal(t, rec, again)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Songs)
}

func TestResolveScraperDiagnosticNotPersisted(t *testing.T) {
	svc, _ := newScriptService(t, `
echo '{"title": "Think", "samples": [], "sampled_by": []}'
echo 'blocked by source' >&2
`)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "Think")
	var se *scraper.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scraper.KindDiagnosticOutput, se.Kind)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Songs)
}

func TestResolveScraperParseFailureNotPersisted(t *testing.T) {
	svc, _ := newScriptService(t, `echo '<html>not json</html>'`)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "Think")
	var se *scraper.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scraper.KindParseFailure, se.Kind)

	songs, err := svc.ListSongs(ctx)
	require.NoError(t, err)
	assert.Empty(t, songs)
}
