package db

import (
	"fmt"

	"drydock/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

// gormConfig enables driver error translation so a unique-key violation
// surfaces as gorm.ErrDuplicatedKey instead of a raw pgx error. The
// repositories depend on that mapping for already-exists detection.
func gormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

// Migrate creates or updates the schema for all models.
func (s *Store) Migrate() error {
	if s == nil || s.DB == nil {
		return errDBUnavailable
	}
	return s.DB.AutoMigrate(
		&DeploymentModel{},
		&DeliveryGroupModel{},
		&EnvironmentModel{},
		&RecipeModel{},
		&BuildModel{},
		&UploadCapabilityModel{},
		&CiPublisherModel{},
		&AuditEventModel{},
	)
}
