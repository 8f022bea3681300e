// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/mpnode/internal/config"
	"github.com/javajoker/mpnode/internal/models"
)

// GormConfig is shared by both drivers and the test databases.
// TranslateError turns unique violations into gorm.ErrDuplicatedKey.
func GormConfig(logLevel string) *gorm.Config {
	level := logger.Info
	switch logLevel {
	case "silent":
		level = logger.Silent
	case "error":
		level = logger.Error
	case "warn":
		level = logger.Warn
	}
	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}
}

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector := postgres.Open(cfg.DSN())
	if cfg.Driver == "sqlite" {
		dialector = sqlite.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, GormConfig(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"driver":   cfg.Driver,
		"host":     cfg.Host,
		"database": cfg.Database,
	}).Info("Database connection established")
	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed")
	}
}

// Models lists every persisted type in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Market{},
		&models.Profile{},
		&models.ItemCategory{},
		&models.ListingItemTemplate{},
		&models.ListingItem{},
		&models.ItemInformation{},
		&models.ShippingDestination{},
		&models.ItemImage{},
		&models.ItemImageData{},
		&models.PaymentInformation{},
		&models.MessagingInformation{},
		&models.ListingItemObject{},
		&models.ListingItemObjectData{},
		&models.Bid{},
		&models.BidData{},
		&models.Order{},
		&models.OrderItem{},
		&models.ActionMessage{},
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations")

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Category lookups walk parent + key/name
		"CREATE INDEX IF NOT EXISTS idx_item_categories_parent_key ON item_categories(parent_item_category_id, key)",
		"CREATE INDEX IF NOT EXISTS idx_item_categories_parent_name ON item_categories(parent_item_category_id, name)",

		// Listing items
		"CREATE INDEX IF NOT EXISTS idx_listing_items_market_created ON listing_items(market_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_item_informations_title ON item_informations(title)",

		// Bids
		"CREATE INDEX IF NOT EXISTS idx_bids_listing_bidder_action ON bids(listing_item_id, bidder, action)",
		"CREATE INDEX IF NOT EXISTS idx_bids_created_at ON bids(created_at DESC)",

		// Orders
		"CREATE INDEX IF NOT EXISTS idx_order_items_status ON order_items(status)",

		// Audit
		"CREATE INDEX IF NOT EXISTS idx_action_messages_listing_received ON action_messages(listing_item_id, received DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
