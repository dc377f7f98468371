package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/himanishpuri/SampleTree/pkg/models"
	backend "github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON document per title key plus a sorted index of keys.
type RedisStore struct {
	client *backend.Client
	opts   options
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(rawURL string, opts ...Option) (*RedisStore, error) {
	redisOpts, err := backend.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisStoreFromClient(backend.NewClient(redisOpts), opts...), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: buildOptions(opts)}
}

func (s *RedisStore) songKey(titleKey string) string {
	return s.opts.prefix + "song:" + titleKey
}

func (s *RedisStore) indexKey() string {
	return s.opts.prefix + "songs"
}

func (s *RedisStore) historyKey() string {
	return s.opts.prefix + "history"
}

// Get looks a record up by title.
func (s *RedisStore) Get(ctx context.Context, title string) (*models.LineageRecord, error) {
	key := models.TitleKey(title)
	if key == "" {
		return nil, ErrNotFound
	}

	rec, err := s.load(ctx, key)
	if errors.Is(err, ErrNotFound) && s.opts.matchMode == MatchSubstring {
		var match string
		match, err = s.findContaining(ctx, key)
		if err == nil {
			rec, err = s.load(ctx, match)
		}
	}
	return rec, err
}

func (s *RedisStore) load(ctx context.Context, titleKey string) (*models.LineageRecord, error) {
	val, err := s.client.Get(ctx, s.songKey(titleKey)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decodeRecord(val)
}

// findContaining returns the shortest indexed key containing key, oldest on ties.
func (s *RedisStore) findContaining(ctx context.Context, key string) (string, error) {
	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read song index: %w", err)
	}

	best := ""
	for _, m := range members {
		if !strings.Contains(m, key) {
			continue
		}
		if best == "" || len(m) < len(best) {
			best = m
		}
	}
	if best == "" {
		return "", ErrNotFound
	}
	return best, nil
}

// putScript indexes the title, then stores the document if absent. The index
// write goes first so a failure there leaves nothing stored; ZADD NX keeps the
// original score and re-indexes a document stored without one.
// KEYS: song, index. ARGV: document, score, title key.
var putScript = backend.NewScript(`
redis.call("ZADD", KEYS[2], "NX", ARGV[2], ARGV[3])
return redis.call("SETNX", KEYS[1], ARGV[1])
`)

// Put stores rec unless the title already exists; the first writer wins and
// later writers get the stored record back.
func (s *RedisStore) Put(ctx context.Context, rec *models.LineageRecord) (*models.LineageRecord, error) {
	if rec == nil || rec.Key() == "" {
		return nil, ErrInvalidRecord
	}
	key := rec.Key()

	clone := *rec
	clone.Title = strings.TrimSpace(clone.Title)
	clone.Normalize()
	data, err := json.Marshal(&clone)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	created, err := putScript.Run(ctx, s.client,
		[]string{s.songKey(key), s.indexKey()},
		data, time.Now().UnixMilli(), key,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to save to redis: %w", err)
	}
	if created == 0 {
		return s.load(ctx, key)
	}
	return &clone, nil
}

// List returns every stored record, oldest first.
func (s *RedisStore) List(ctx context.Context) ([]models.LineageRecord, error) {
	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read song index: %w", err)
	}
	if len(members) == 0 {
		return []models.LineageRecord{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.songKey(m)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load songs: %w", err)
	}

	out := make([]models.LineageRecord, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord(str)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return n, nil
}

func (s *RedisStore) RecordHistory(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := s.client.LPush(ctx, s.historyKey(), data).Err(); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// ListHistory returns up to limit entries, newest first. limit <= 0 means all.
func (s *RedisStore) ListHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	vals, err := s.client.LRange(ctx, s.historyKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	out := make([]models.HistoryEntry, 0, len(vals))
	for _, v := range vals {
		var entry models.HistoryEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *RedisStore) CountHistory(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, s.historyKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeRecord(val string) (*models.LineageRecord, error) {
	var rec models.LineageRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	rec.Normalize()
	return &rec, nil
}
