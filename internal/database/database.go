package database

import (
	"fmt"

	"market-simulator-go/internal/config"
	"market-simulator-go/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection, migrates the schema and
// seeds the initial instruments and demo user.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := Seed(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Instrument{},
		&models.PricePoint{},
		&models.User{},
		&models.Holding{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Seed populates the instruments table from the config and creates the
// seed user if configured. Seeding is idempotent: existing rows are left
// untouched, so restarting the process never resets prices or balances.
func Seed(db *gorm.DB, cfg *config.Config) error {
	for _, s := range cfg.Market.Instruments {
		inst := models.Instrument{
			Symbol:     s.Symbol,
			Name:       s.Name,
			Price:      s.Price,
			Drift:      s.Drift,
			Volatility: s.Volatility,
		}
		if err := db.FirstOrCreate(&inst, models.Instrument{Symbol: s.Symbol}).Error; err != nil {
			return fmt.Errorf("failed to seed instrument '%s': %w", s.Symbol, err)
		}
	}

	if cfg.Ledger.SeedUser != "" {
		user := models.User{
			Username: cfg.Ledger.SeedUser,
			Balance:  cfg.Ledger.InitialBalance,
		}
		if err := db.FirstOrCreate(&user, models.User{Username: cfg.Ledger.SeedUser}).Error; err != nil {
			return fmt.Errorf("failed to seed user '%s': %w", cfg.Ledger.SeedUser, err)
		}
	}

	return nil
}
