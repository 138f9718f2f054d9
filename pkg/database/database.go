package database

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
)

var DB *gorm.DB

func Connect(dbUrl string) {
	var err error
	DB, err = Open(dbUrl)
	if err != nil {
		logger.Fatal("Failed to connect to database", logger.WithError(err))
	}
	logger.Info("Connected to database")
}

// Open accepts postgres:// URLs or sqlite paths (sqlite://path, file paths, :memory:).
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}

	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, err
	}

	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(sqlitePath), cfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serialises writers, a single connection avoids SQLITE_BUSY under concurrent requests
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Host + u.Path
		if path == "" || path == "/" {
			path = "bundlestore.db"
		}
		return "sqlite", path, nil
	}
	if strings.Contains(dsn, "host=") {
		return "postgres", "", nil
	}
	return "sqlite", dsn, nil
}

// IsUniqueViolation reports whether err was caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
