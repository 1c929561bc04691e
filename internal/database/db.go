package database

import (
	"fmt"
	"time"

	"erp/internal/config"
	"erp/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection opens the PostgreSQL pool and migrates the schema.
func NewConnection(cfg config.PostgresConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := Migrate(db); err != nil {
		log.Warn("Failed to auto-migrate models", zap.Error(err))
	}

	return db, nil
}

// Migrate creates or updates every table the application owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Customer{},
		&model.Supplier{},
		&model.Product{},
		&model.ProductSupplier{},
		&model.InventoryMovement{},
		&model.Order{},
		&model.OrderItem{},
		&model.PurchaseOrder{},
		&model.PurchaseOrderItem{},
		&model.Invoice{},
		&model.InvoiceItem{},
		&model.InvoicePayment{},
		&model.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
