package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/himanishpuri/SampleTree/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "sampletree.sqlite3"

// Song is the row holding one lineage record. Relations are JSON columns.
type Song struct {
	ID        string             `gorm:"primaryKey;type:varchar(36)"`
	TitleKey  string             `gorm:"uniqueIndex:idx_song_title_key;not null"`
	Title     string             `gorm:"not null"`
	Artist    string             `gorm:"index:idx_song_artist"`
	Year      string
	Samples   []models.SampleRef `gorm:"serializer:json;type:text"`
	SampledBy []models.SampleRef `gorm:"serializer:json;type:text"`
	CreatedAt time.Time
}

// History is one row of the lookup history.
type History struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)"`
	IP           string          `gorm:"type:varchar(64)"`
	Timestamp    time.Time       `gorm:"index:idx_history_timestamp"`
	RootSong     string          `gorm:"index:idx_history_root_song"`
	TreeSnapshot models.TreeNode `gorm:"serializer:json;type:text"`
}

func (History) TableName() string {
	return "user_history"
}

// SQLiteStore persists lineage records through gorm on a SQLite file.
type SQLiteStore struct {
	DB   *gorm.DB
	db   *sql.DB
	opts options
}

func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Song{}, &History{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &SQLiteStore{DB: db, db: sqlDB, opts: buildOptions(opts)}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get looks a record up by title.
func (s *SQLiteStore) Get(ctx context.Context, title string) (*models.LineageRecord, error) {
	key := models.TitleKey(title)
	if key == "" {
		return nil, ErrNotFound
	}

	song, err := s.findByKey(ctx, key)
	if errors.Is(err, ErrNotFound) && s.opts.matchMode == MatchSubstring {
		song, err = s.findContaining(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	return song.toRecord(), nil
}

func (s *SQLiteStore) findByKey(ctx context.Context, key string) (*Song, error) {
	var song Song
	err := s.DB.WithContext(ctx).Where("title_key = ?", key).First(&song).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying song: %w", err)
	}
	return &song, nil
}

func (s *SQLiteStore) findContaining(ctx context.Context, key string) (*Song, error) {
	var song Song
	err := s.DB.WithContext(ctx).
		Where("instr(title_key, ?) > 0", key).
		Order("length(title_key), created_at").
		First(&song).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying song by substring: %w", err)
	}
	return &song, nil
}

// Put stores rec unless a record with the same title key already exists, in
// which case the existing record is returned unchanged.
func (s *SQLiteStore) Put(ctx context.Context, rec *models.LineageRecord) (*models.LineageRecord, error) {
	if rec == nil || rec.Key() == "" {
		return nil, ErrInvalidRecord
	}
	key := rec.Key()

	existing, err := s.findByKey(ctx, key)
	if err == nil {
		return existing.toRecord(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	song := newSong(rec)
	err = s.DB.WithContext(ctx).Create(song).Error
	if err != nil {
		if isUniqueViolation(err) {
			existing, fetchErr := s.findByKey(ctx, key)
			if fetchErr != nil {
				return nil, fmt.Errorf("fetching song after constraint violation: %w", fetchErr)
			}
			return existing.toRecord(), nil
		}
		return nil, fmt.Errorf("creating song: %w", err)
	}

	return song.toRecord(), nil
}

// List returns every stored record, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]models.LineageRecord, error) {
	var songs []Song
	if err := s.DB.WithContext(ctx).Order("created_at, id").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}

	out := make([]models.LineageRecord, len(songs))
	for i := range songs {
		out[i] = *songs[i].toRecord()
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&Song{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting songs: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) RecordHistory(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	row := History{
		ID:           entry.ID,
		IP:           entry.IP,
		Timestamp:    entry.Timestamp,
		RootSong:     entry.RootSong,
		TreeSnapshot: entry.TreeSnapshot,
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("recording history: %w", err)
	}
	return nil
}

// ListHistory returns up to limit entries, newest first. limit <= 0 means all.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	q := s.DB.WithContext(ctx).Order("timestamp desc, id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []History
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	out := make([]models.HistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = models.HistoryEntry{
			ID:           r.ID,
			IP:           r.IP,
			Timestamp:    r.Timestamp,
			RootSong:     r.RootSong,
			TreeSnapshot: r.TreeSnapshot,
		}
	}
	return out, nil
}

func (s *SQLiteStore) CountHistory(ctx context.Context) (int64, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&History{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return count, nil
}

func newSong(rec *models.LineageRecord) *Song {
	clone := *rec
	clone.Normalize()
	return &Song{
		ID:        uuid.NewString(),
		TitleKey:  rec.Key(),
		Title:     strings.TrimSpace(clone.Title),
		Artist:    clone.Artist,
		Year:      clone.Year,
		Samples:   clone.Samples,
		SampledBy: clone.SampledBy,
	}
}

func (s *Song) toRecord() *models.LineageRecord {
	rec := &models.LineageRecord{
		Title:     s.Title,
		Artist:    s.Artist,
		Year:      s.Year,
		Samples:   s.Samples,
		SampledBy: s.SampledBy,
	}
	rec.Normalize()
	return rec
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
