package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"artis/internal/domain/ledger"
	"artis/internal/domain/sheetsync"
	"artis/internal/infrastructure/postgres"
	"artis/internal/infrastructure/sheets"
	httphandlers "artis/internal/interfaces/http"
	"artis/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	SyncHandler      *httphandlers.SyncHandler
	InventoryHandler *httphandlers.InventoryHandler

	// Sync core (for the scheduler)
	Engine   *sheetsync.Engine
	Archiver *sheetsync.Archiver
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logrus.Info("connected to database")

	// Initialize repositories
	ledgerStore := postgres.NewLedgerStore(db)
	productRepo := postgres.NewProductRepository(db)
	historyRepo := postgres.NewSyncHistoryRepository(db)

	// Initialize the sheets client and source map
	grid, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile)
	if err != nil {
		db.Close()
		return nil, err
	}
	sources := buildSources(cfg.Sheets)

	// Initialize the sync core
	engine := sheetsync.NewEngine(grid, sources, productRepo, ledgerStore, historyRepo)
	archiver := sheetsync.NewArchiver(grid, sources)
	setup := sheetsync.NewSheetSetup(grid, sources, productRepo)

	// Initialize domain services and handlers
	ledgerService := ledger.NewService(ledgerStore, productRepo)
	syncHandler := httphandlers.NewSyncHandler(engine, archiver, setup, historyRepo)
	inventoryHandler := httphandlers.NewInventoryHandler(ledgerService)

	return &Dependencies{
		DB:               db,
		SyncHandler:      syncHandler,
		InventoryHandler: inventoryHandler,
		Engine:           engine,
		Archiver:         archiver,
	}, nil
}

// buildSources maps each configured category to its live sheet ranges.
// The bounded row window is deliberately generous; the sheets have no
// reliable row count.
func buildSources(cfg config.SheetsConfig) sheetsync.Sources {
	sources := sheetsync.Sources{}
	add := func(syncType sheetsync.SyncType, spreadsheetID string) {
		if spreadsheetID == "" {
			return
		}
		sources[syncType] = sheetsync.Source{
			SpreadsheetID: spreadsheetID,
			DataRange:     "Sheet1!A2:E10000",
			FullRange:     "Sheet1!A1:Z10000",
			ClearRange:    "Sheet1!A2:Z10000",
		}
	}
	add(sheetsync.SyncConsumption, cfg.ConsumptionSpreadsheetID)
	add(sheetsync.SyncPurchases, cfg.PurchasesSpreadsheetID)
	add(sheetsync.SyncCorrections, cfg.CorrectionsSpreadsheetID)
	add(sheetsync.SyncInitialStock, cfg.InitialSpreadsheetID)
	return sources
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
