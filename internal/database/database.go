// internal/database/database.go
package database

import (
	"fmt"
	"time"

	"example.com/volunteerhub/services/signup/config"
	"example.com/volunteerhub/services/signup/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is an interface for database operations
type DB interface {
	DB() (*gorm.DB, error)
	Close() error
}

// GormDatabase implements the DB interface for GORM
type GormDatabase struct {
	db *gorm.DB
}

// Connect establishes a connection to the primary store
func Connect(cfg config.DatabaseConfig) (DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB instance: %w", err)
	}

	// Registration bursts against a single opportunity are the hot path;
	// keep the pool generous enough that CAS losers fail fast instead of
	// queueing on a connection.
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return &GormDatabase{db: db}, nil
}

// DB returns the underlying gorm.DB instance
func (d *GormDatabase) DB() (*gorm.DB, error) {
	return d.db, nil
}

// Close closes the database connection
func (d *GormDatabase) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations
func AutoMigrate(db DB) error {
	gormDB, err := db.DB()
	if err != nil {
		return err
	}

	err = gormDB.AutoMigrate(
		&models.Opportunity{},
		&models.Registration{},
		&models.UserProfile{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate table structures: %w", err)
	}

	// Duplicate-registration guard: at most one non-cancelled registration
	// per (opportunity, user). Cancelled rows stay behind for history and
	// must not block re-registration, so the index is partial; gorm tags
	// cannot express the predicate.
	err = gormDB.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_active_user
		 ON registrations (opportunity_id, user_id)
		 WHERE user_id IS NOT NULL AND status <> 'cancelled'`,
	).Error
	if err != nil {
		return fmt.Errorf("failed to create duplicate guard index: %w", err)
	}

	return nil
}
