package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Manager handles database operations
type Manager struct {
	db           *gorm.DB
	migrationURL string
}

// NewManager creates a new database manager
func NewManager(config *Config) (*Manager, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(config.DSN())
	default:
		dialector = postgres.New(postgres.Config{
			DSN:                  config.DSN(),
			PreferSimpleProtocol: true, // Required for Supabase Supavisor; harmless for direct connections
		})
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	if config.Driver == DriverSQLite {
		// sqlite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Manager{db: db, migrationURL: config.MigrationURL()}, nil
}

// MigrationsDir is where the SQL migrations live, relative to the working directory.
const MigrationsDir = "migrations"

// RunMigrations applies pending SQL migrations from the migrations/ directory.
func (m *Manager) RunMigrations() error {
	logger.Get().Info("Running database migrations...")
	if _, err := Migrate(m.migrationURL, MigrateUp, 0); err != nil {
		return err
	}
	logger.Get().Info("Database migrations completed successfully")
	return nil
}

// MigrateAction is a migration command understood by Migrate.
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// MigrationState is the schema version after a Migrate call.
type MigrationState struct {
	Version uint
	Dirty   bool
}

// Migrate runs action against the database at migrationURL. steps is the
// number of migrations to roll back for MigrateDown and is ignored otherwise.
func Migrate(migrationURL string, action MigrateAction, steps int) (*MigrationState, error) {
	switch action {
	case MigrateUp, MigrateVersion:
	case MigrateDown:
		if steps < 1 {
			return nil, fmt.Errorf("invalid step count %d", steps)
		}
	default:
		return nil, fmt.Errorf("unknown migrate action %q (use up, down, or version)", action)
	}

	mig, err := migrate.New("file://"+MigrationsDir, migrationURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	switch action {
	case MigrateUp:
		if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("migration up failed: %w", err)
		}
	case MigrateDown:
		if err := mig.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("migration down failed: %w", err)
		}
	}

	version, dirty, err := mig.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return &MigrationState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return &MigrationState{Version: version, Dirty: dirty}, nil
}

// DB returns the underlying GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
