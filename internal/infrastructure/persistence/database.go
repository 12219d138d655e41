package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tresoria/backend/internal/infrastructure/config"
	"github.com/tresoria/backend/internal/infrastructure/logger"
	"github.com/tresoria/backend/internal/infrastructure/persistence/models"
)

// Database wraps the gorm connection used by the embedded gateway
type Database struct {
	DB     *gorm.DB
	logger *zap.Logger
}

// NewDatabase opens the configured database. sqlite is the default for the
// embedded gateway; postgres is available for shared deployments.
func NewDatabase(cfg config.DatabaseConfig, zapLogger *zap.Logger, logLevel string) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(logLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	zapLogger.Info("database connected",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return &Database{DB: db, logger: zapLogger}, nil
}

// Migrate creates or updates the schema for every persisted model
func (d *Database) Migrate() error {
	return d.DB.AutoMigrate(
		&models.CurrencyModel{},
		&models.CompanySettingsModel{},
		&models.TreasuryAccountModel{},
		&models.ThirdPartyModel{},
		&models.InvoiceModel{},
		&models.ReceiptSheetModel{},
		&models.InvoiceLinkModel{},
		&models.SheetHistoryModel{},
	)
}

// Ping verifies the connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns the connection pool statistics
func (d *Database) Stats() sql.DBStats {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return sql.DBStats{}
	}
	return sqlDB.Stats()
}

// Close closes the underlying connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
