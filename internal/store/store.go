// Package store provides gorm-backed persistence for the booking assistant.
// Production runs on Postgres; tests use an in-memory SQLite database.
package store

import (
	"context"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cabanera/booking-assistant/internal/model"
)

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open connects through the given dialector and migrates the schema.
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.Conversation{},
		&model.ChatMessage{},
		&model.Venue{},
		&model.Plan{},
		&model.MessageTemplate{},
		&model.Reservation{},
		&model.Amenity{},
		&model.VenueAmenity{},
		&model.PlanAmenity{},
		&model.Estimate{},
		&model.AISetting{},
	); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenPostgres connects to a Postgres database by DSN.
func OpenPostgres(dsn string) (*Store, error) {
	return Open(postgres.Open(dsn))
}

// DB exposes the underlying gorm handle for admin CRUD and test fixtures.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
