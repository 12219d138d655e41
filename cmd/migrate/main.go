package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tresoria/backend/internal/infrastructure/config"
	"github.com/tresoria/backend/internal/infrastructure/logger"
	"github.com/tresoria/backend/internal/infrastructure/persistence"
	"github.com/tresoria/backend/internal/infrastructure/persistence/models"
)

// migrate prepares the embedded-gateway database: it applies the schema and
// can bootstrap a company with its default currency so a fresh install can
// open sheets immediately.
func main() {
	var (
		companyID = flag.String("company", "", "company UUID to bootstrap (optional)")
		currency  = flag.String("currency", "EUR", "default currency code for the bootstrapped company")
		symbol    = flag.String("symbol", "€", "currency symbol")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	db, err := persistence.NewDatabase(cfg.Database, log, cfg.Log.Level)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("schema migrated", zap.String("driver", cfg.Database.Driver))

	if *companyID == "" {
		return
	}
	company, err := uuid.Parse(*companyID)
	if err != nil {
		log.Fatal("company must be a valid UUID", zap.String("company", *companyID))
	}
	if err := bootstrapCompany(db, company, *currency, *symbol); err != nil {
		log.Fatal("failed to bootstrap company", zap.Error(err))
	}
	log.Info("company bootstrapped",
		zap.String("company_id", company.String()),
		zap.String("currency", *currency))
}

// bootstrapCompany ensures the currency row exists and binds the company's
// settings to it. Running it twice is harmless.
func bootstrapCompany(db *persistence.Database, companyID uuid.UUID, code, symbol string) error {
	var existing models.CurrencyModel
	err := db.DB.First(&existing, "code = ?", code).Error
	if err != nil {
		existing = models.CurrencyModel{ID: uuid.New(), Code: code, Symbol: symbol}
		if err := db.DB.Create(&existing).Error; err != nil {
			return fmt.Errorf("failed to create currency: %w", err)
		}
	}

	var settings models.CompanySettingsModel
	if err := db.DB.First(&settings, "company_id = ?", companyID).Error; err == nil {
		return nil
	}
	settings = models.CompanySettingsModel{CompanyID: companyID, CurrencyID: existing.ID}
	if err := db.DB.Create(&settings).Error; err != nil {
		return fmt.Errorf("failed to create company settings: %w", err)
	}

	// Give a fresh company a first treasury account so the UI has a
	// selectable target
	now := time.Now()
	account := models.TreasuryAccountModel{
		CompanyModel: models.CompanyModel{
			BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			CompanyID: companyID,
		},
		Label:    "Compte principal",
		Currency: code,
	}
	return db.DB.Create(&account).Error
}
