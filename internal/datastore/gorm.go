package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// KVEntry is one row of the kv_entries table
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:longtext"`
	UpdatedAt time.Time
}

// TableName pins the table name regardless of naming strategy
func (KVEntry) TableName() string { return "kv_entries" }

// GormKV stores values in a SQL table through gorm
type GormKV struct {
	DB      *gorm.DB
	backend string
}

// OpenSQLiteKV opens (and creates) the SQLite database at path
func OpenSQLiteKV(path string, log logger.Logger) (*GormKV, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, fileKVDirMode); err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, dbError(fmt.Errorf("failed to open SQLite database: %w", err), BackendSQLite, "open")
	}
	return newGormKV(db, BackendSQLite, log)
}

// MySQLDSN builds the driver DSN from settings
func MySQLDSN(s *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// OpenMySQLKV connects to the configured MySQL database
func OpenMySQLKV(s *conf.MySQLSettings, log logger.Logger) (*GormKV, error) {
	db, err := gorm.Open(mysql.Open(MySQLDSN(s)), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		log.Error("failed to open MySQL database",
			logger.String("host", s.Host),
			logger.String("port", s.Port),
			logger.String("database", s.Database),
			logger.Error(err))
		return nil, dbError(fmt.Errorf("failed to open MySQL database: %w", err), BackendMySQL, "open")
	}
	return newGormKV(db, BackendMySQL, log)
}

func newGormKV(db *gorm.DB, backend string, log logger.Logger) (*GormKV, error) {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return nil, dbError(fmt.Errorf("auto-migration failed: %w", err), backend, "migrate")
	}
	log.Debug("kv table migrated", logger.String("backend", backend))
	return &GormKV{DB: db, backend: backend}, nil
}

func (g *GormKV) Get(ctx context.Context, key string) (string, bool, error) {
	var entry KVEntry
	err := g.DB.WithContext(ctx).Where(map[string]any{"key": key}).Limit(1).Find(&entry).Error
	if err != nil {
		return "", false, dbError(err, g.backend, "get")
	}
	if entry.Key == "" {
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (g *GormKV) Set(ctx context.Context, key, value string) error {
	entry := KVEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := g.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return dbError(err, g.backend, "set")
	}
	return nil
}

// Close releases the underlying connection pool
func (g *GormKV) Close() error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return dbError(err, g.backend, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, g.backend, "close")
	}
	return nil
}
