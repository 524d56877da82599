package perf

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SampleStore is an append-only sample log with range reads and age-based pruning.
type SampleStore interface {
	Insert(ctx context.Context, s *Sample) error
	// Range returns samples with from <= timestamp <= to, of endpoint only when it is not empty.
	Range(ctx context.Context, from, to time.Time, endpoint string) ([]Sample, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (deleted int64, err error)
}

// OpenSQLite opens (creating if needed) the sqlite database at dsn.
// gorm's own log lines are routed into logger at warn level.
func OpenSQLite(dsn string, logger zerolog.Logger) (*gorm.DB, error) {
	zl := logger.With().Str("component", "gorm").Logger()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(&zl, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open sample store %s: %w", dsn, err)
	}

	// sqlite serializes writers anyway and every ":memory:" connection is a separate database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sample store handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the samples table and returns a store over it.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Sample{}); err != nil {
		return nil, fmt.Errorf("migrate samples: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Insert(ctx context.Context, sample *Sample) error {
	if err := s.db.WithContext(ctx).Create(sample).Error; err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

func (s *GormStore) Range(ctx context.Context, from, to time.Time, endpoint string) ([]Sample, error) {
	q := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", from.UnixMilli(), to.UnixMilli())
	if endpoint != "" {
		q = q.Where("endpoint = ?", endpoint)
	}

	var samples []Sample
	if err := q.Order("timestamp, id").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("range samples: %w", err)
	}
	return samples, nil
}

func (s *GormStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("timestamp < ?", cutoff.UnixMilli()).Delete(&Sample{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete samples: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
