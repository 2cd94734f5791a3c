package sqldb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kronik/kronik/config"
	"kronik/kronik/sources/sqldb/models"
	"kronik/kronik/utils/logging"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	connectRetries = 3
	retryDelay     = 100 * time.Millisecond
)

type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the store named by cfg.DatabaseURL and migrates the schema.
func NewDatabase(ctx context.Context, cfg config.Config) (*Database, error) {
	return Open(ctx, cfg.DatabaseURL)
}

// Open accepts a postgres:// DSN, ":memory:" or a SQLite file path. The initial
// connect is retried a fixed number of times before the error is surfaced.
func Open(ctx context.Context, url string) (*Database, error) {
	var (
		db  *gorm.DB
		err error
	)
	for attempt := 1; attempt <= connectRetries; attempt++ {
		db, err = connect(url)
		if err == nil {
			break
		}
		logging.Named("store").Warn("database connect failed",
			zap.Int("attempt", attempt), zap.Error(err))
		if attempt == connectRetries {
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectRetries, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	// Auto-migrate models (automatic schema creation)
	err = db.WithContext(ctx).AutoMigrate(
		&models.Session{},
		&models.Video{},
		&models.Analysis{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}

	logging.Named("store").Info("database ready", zap.String("dialect", db.Dialector.Name()))
	return &Database{DB: db}, nil
}

func connect(url string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return gorm.Open(postgres.Open(url), gormCfg)
	}

	if url != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(url), os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := sqliteDSN(url)
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// sqliteDSN turns a path into a modernc DSN with foreign keys and a busy timeout.
func sqliteDSN(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	return "file:" + path + "?" + pragmas
}

func (db *Database) Close() {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return
	}
	sqlDB.Close()
}
