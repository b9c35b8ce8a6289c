package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/EmpoweredVote/precinct-data/internal/config"
)

// Open connects to the configured database. The caller owns the handle and
// must Close it once at process exit.
func Open(cfg config.Database) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: newLogger(cfg.LogLevel)}

	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(cfg, gcfg)
	case config.DriverSQLite:
		return openSQLite(cfg, gcfg)
	default:
		return nil, fmt.Errorf("%w (got %q)", config.ErrUnknownDriver, cfg.Driver)
	}
}

func openPostgres(cfg config.Database, gcfg *gorm.Config) (*gorm.DB, error) {
	sqlDB, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Reasonable pool defaults for a batch job against a hosted postgres.
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if cfg.Schema != "" {
		gcfg.NamingStrategy = schema.NamingStrategy{TablePrefix: cfg.Schema + "."}
	}

	d, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gcfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Schema != "" {
		if err := EnsureSchema(d, cfg.Schema); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ensure schema %s: %w", cfg.Schema, err)
		}
	}
	log.Printf("[db] connected to postgres (schema %s)", cfg.Schema)
	return d, nil
}

func openSQLite(cfg config.Database, gcfg *gorm.Config) (*gorm.DB, error) {
	d, err := gorm.Open(sqlite.Open(cfg.Path), gcfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	sqlDB, err := d.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// sqlite has a single writer.
	sqlDB.SetMaxOpenConns(1)
	log.Printf("[db] opened sqlite %s", cfg.Path)
	return d, nil
}

// Close releases the underlying connection pool.
func Close(d *gorm.DB) error {
	sqlDB, err := d.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newLogger(level string) logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  parseLevel(level),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func parseLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
