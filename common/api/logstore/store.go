// Package logstore persists log entries with gorm and answers structured
// queries over them.
package logstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/monobilisim/logagent/common"
	"github.com/monobilisim/logagent/common/api/models"
	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the database named by cfg and migrates the schema.
func Open(cfg models.StoreConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Error)}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = common.DefaultStorePath()
		}
		dialector = sqlite.Open(path)
	case "postgres":
		p := cfg.Postgres
		dsn := "host=" + p.Host + " user=" + p.User + " password=" + p.Password +
			" dbname=" + p.Dbname + " port=" + p.Port + " sslmode=" + p.SSLMode
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Debug().
		Str("component", "logstore").
		Str("operation", "open").
		Str("driver", cfg.Driver).
		Msg("Log store opened")
	return db, nil
}

// OpenMemory returns a migrated private in-memory sqlite database. It is
// used by local mode and by tests.
func OpenMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.LogRecord{}); err != nil {
		return fmt.Errorf("failed to migrate log store: %w", err)
	}
	return nil
}

// Store is the database-backed log store.
type Store struct {
	db           *gorm.DB
	defaultLimit int
}

// New wraps db. A non-positive defaultLimit means DefaultLimit.
func New(db *gorm.DB, defaultLimit int) *Store {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Store{db: db, defaultLimit: defaultLimit}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Search returns entries matching q, newest first, capped at the default limit.
func (s *Store) Search(ctx context.Context, q query.Query) ([]types.LogEntry, error) {
	return s.SearchLimit(ctx, q, 0)
}

// SearchLimit is Search with an explicit cap. limit <= 0 uses the default
// and anything above MaxLimit is clamped.
func (s *Store) SearchLimit(ctx context.Context, q query.Query, limit int) ([]types.LogEntry, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var records []models.LogRecord
	err := s.filtered(ctx, q).
		Order("timestamp desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, classify(ctx, "search", err)
	}

	entries := make([]types.LogEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.ToEntry())
	}
	return entries, nil
}

// Count returns the number of entries matching q, ignoring any limit.
func (s *Store) Count(ctx context.Context, q query.Query) (int64, error) {
	var total int64
	if err := s.filtered(ctx, q).Count(&total).Error; err != nil {
		return 0, classify(ctx, "count", err)
	}
	return total, nil
}

// Insert stores entries. Missing IDs and timestamps are filled in and
// timestamps are kept in UTC.
func (s *Store) Insert(ctx context.Context, entries ...types.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	records := make([]models.LogRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, Prepare(e))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(records, 100).Error; err != nil {
		return classify(ctx, "insert", err)
	}
	return nil
}

// Prepare converts e into a storable record, assigning an ID and timestamp
// when they are missing.
func Prepare(e types.LogEntry) models.LogRecord {
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		e.ID = id.String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.Level == "" {
		e.Level = types.LevelInfo
	}
	return models.FromEntry(e)
}

func (s *Store) filtered(ctx context.Context, q query.Query) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&models.LogRecord{})
	if q.Keyword != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Keyword)) + "%"
		tx = tx.Where("(LOWER(message) LIKE ? ESCAPE '\\' OR LOWER(source) LIKE ? ESCAPE '\\')", pattern, pattern)
	}
	if q.Level != "" {
		tx = tx.Where("level = ?", string(q.Level))
	}
	if q.Range != nil {
		if !q.Range.Start.IsZero() {
			tx = tx.Where("timestamp >= ?", q.Range.Start.UTC())
		}
		if !q.Range.End.IsZero() {
			tx = tx.Where("timestamp <= ?", q.Range.End.UTC())
		}
	}
	return tx
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// classify wraps a database error with the matching store sentinel.
func classify(ctx context.Context, operation string, err error) error {
	sentinel := types.ErrStoreUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		sentinel = types.ErrStoreTimeout
	}
	log.Error().
		Str("component", "logstore").
		Str("operation", operation).
		Err(err).
		Msg("Log store query failed")
	return fmt.Errorf("%w: %s: %w", sentinel, operation, err)
}
