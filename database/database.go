package database

import (
	"fmt"

	"zona-pedidos/config"
	"zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/domain/promos"
	"zona-pedidos/internal/domain/tenants"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres. Driver errors are translated so unique
// violations surface as gorm.ErrDuplicatedKey.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
	if cfg.LogLevel == "debug" {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DBURL), gcfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every billing table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&tenants.Tenant{},
		&tenants.Profile{},
		&billing.ExternalSubscription{},
		&billing.WebhookEvent{},
		&promos.PromoCode{},
		&promos.Redemption{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	log.Info().Msg("database migrated")
	return nil
}
