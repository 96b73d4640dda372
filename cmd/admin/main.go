package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"artis/internal/domain/sheetsync"
	"artis/internal/infrastructure/postgres"
	"artis/internal/infrastructure/sheets"
	"artis/internal/shared/config"
)

const usage = `Artis Admin CLI - Management commands for the Artis API

Usage:
  admin <command> [options]

Commands:
  recompute   Recompute cached stock and average consumption from the ledger
  sync        Run a sheet sync for one category (or all)
  setup       Reset a sheet tab to its expected headers
  clear       Delete every transaction and zero all product figures

Examples:
  # Recompute a single product
  admin recompute --product-id=p-flour

  # Recompute every product
  admin recompute --all

  # Sync the consumption sheet and archive it afterwards
  admin sync --type=consumption --archive="January 2026"

  # Run every category in order
  admin sync --type=all

  # Reset the purchases sheet headers
  admin setup --type=purchases

  # Wipe the ledger (irreversible)
  admin clear --confirm
`

const adminUserID = "admin-cli"

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "recompute":
		runRecompute(os.Args[2:])
	case "sync":
		runSync(os.Args[2:])
	case "setup":
		runSetup(os.Args[2:])
	case "clear":
		runClear(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func runRecompute(args []string) {
	fs := flag.NewFlagSet("recompute", flag.ExitOnError)

	productIDStr := fs.String("product-id", "", "Product ID(s) to recompute (comma-separated for multiple)")
	allProducts := fs.Bool("all", false, "Recompute every product")
	timeoutStr := fs.String("timeout", "10m", "Timeout for the operation (e.g., 5m, 1h)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *productIDStr == "" && !*allProducts {
		fmt.Println("Error: must specify --product-id or --all")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	_, db := mustConnect()
	defer db.Close()

	store := postgres.NewLedgerStore(db)
	products := postgres.NewProductRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var ids []string
	if *allProducts {
		all, err := products.ListAll(ctx)
		if err != nil {
			log.Fatalf("Failed to list products: %v", err)
		}
		for _, p := range all {
			ids = append(ids, p.ID)
		}
	} else {
		for _, p := range strings.Split(*productIDStr, ",") {
			if p = strings.TrimSpace(p); p != "" {
				ids = append(ids, p)
			}
		}
	}

	if len(ids) == 0 {
		log.Println("No products to process")
		return
	}

	startTime := time.Now()
	for _, id := range ids {
		figures, err := store.RecomputeProduct(ctx, id, true)
		if err != nil {
			log.Fatalf("Recompute failed for %s: %v", id, err)
		}
		fmt.Printf("  %s: stock=%s avg=%s\n", id, figures.CurrentStock, figures.AvgConsumption)
	}
	log.Printf("Recomputed %d product(s) in %v", len(ids), time.Since(startTime))
}

func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	typeStr := fs.String("type", "", "Sync category: consumption, purchases, corrections, initialStock or all")
	archiveLabel := fs.String("archive", "", "Archive the sheet under this label after a successful sync")
	timeoutStr := fs.String("timeout", "15m", "Timeout for the operation")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *typeStr == "" {
		fmt.Println("Error: must specify --type")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, db := mustConnect()
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	engine, archiver, _ := mustSheetCore(ctx, cfg, db)

	types := []sheetsync.SyncType{
		sheetsync.SyncConsumption,
		sheetsync.SyncPurchases,
		sheetsync.SyncCorrections,
		sheetsync.SyncInitialStock,
	}
	if *typeStr != "all" {
		types = []sheetsync.SyncType{sheetsync.SyncType(*typeStr)}
	}

	for _, syncType := range types {
		var result *sheetsync.Result
		var err error
		switch syncType {
		case sheetsync.SyncConsumption:
			result, err = engine.SyncConsumption(ctx, adminUserID)
		case sheetsync.SyncPurchases:
			result, err = engine.SyncPurchases(ctx, adminUserID)
		case sheetsync.SyncCorrections:
			result, err = engine.SyncCorrections(ctx, adminUserID)
		case sheetsync.SyncInitialStock:
			result, err = engine.SyncInitialStock(ctx, adminUserID)
		default:
			log.Fatalf("Unknown sync type: %s", syncType)
		}
		if err != nil {
			log.Fatalf("Sync %s failed: %v", syncType, err)
		}

		fmt.Printf("\n=== %s ===\n", syncType)
		fmt.Printf("  Added:    %d\n", result.Added)
		fmt.Printf("  Errors:   %d\n", len(result.Errors))
		fmt.Printf("  Warnings: %d\n", len(result.Warnings))
		for _, e := range result.Errors {
			fmt.Printf("    error: %s\n", e)
		}
		for _, w := range result.Warnings {
			fmt.Printf("    warning: %s\n", w)
		}

		if result.Added > 0 && *archiveLabel != "" {
			tab, err := archiver.ArchiveAndClear(ctx, syncType, *archiveLabel)
			if err != nil {
				log.Printf("Archive failed for %s: %v", syncType, err)
				continue
			}
			fmt.Printf("  Archived to: %s\n", tab)
		}
	}
}

func runSetup(args []string) {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)

	typeStr := fs.String("type", "", "Sheet category to reset: consumption, purchases, corrections or initialStock")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *typeStr == "" {
		fmt.Println("Error: must specify --type")
		fs.Usage()
		os.Exit(1)
	}

	cfg, db := mustConnect()
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	_, _, setup := mustSheetCore(ctx, cfg, db)

	rows, err := setup.Setup(ctx, sheetsync.SyncType(*typeStr))
	if err != nil {
		log.Fatalf("Setup failed: %v", err)
	}
	log.Printf("Sheet reset with %d seeded row(s)", rows)
}

func runClear(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)

	confirm := fs.Bool("confirm", false, "Required; deleting the ledger cannot be undone")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if !*confirm {
		fmt.Println("Error: clear deletes every transaction; pass --confirm to proceed")
		os.Exit(1)
	}

	_, db := mustConnect()
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store := postgres.NewLedgerStore(db)
	deleted, reset, err := store.ClearLedger(ctx)
	if err != nil {
		log.Fatalf("Clear failed: %v", err)
	}
	log.Printf("Deleted %d transaction(s), reset %d product(s)", deleted, reset)
}

func mustConnect() (*config.Config, *postgres.DB) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")
	return cfg, db
}

func mustSheetCore(ctx context.Context, cfg *config.Config, db *postgres.DB) (*sheetsync.Engine, *sheetsync.Archiver, *sheetsync.SheetSetup) {
	grid, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile)
	if err != nil {
		log.Fatalf("Failed to create sheets client: %v", err)
	}

	sources := sheetsync.Sources{}
	for syncType, id := range map[sheetsync.SyncType]string{
		sheetsync.SyncConsumption:  cfg.Sheets.ConsumptionSpreadsheetID,
		sheetsync.SyncPurchases:    cfg.Sheets.PurchasesSpreadsheetID,
		sheetsync.SyncCorrections:  cfg.Sheets.CorrectionsSpreadsheetID,
		sheetsync.SyncInitialStock: cfg.Sheets.InitialSpreadsheetID,
	} {
		if id == "" {
			continue
		}
		sources[syncType] = sheetsync.Source{
			SpreadsheetID: id,
			DataRange:     "Sheet1!A2:E10000",
			FullRange:     "Sheet1!A1:Z10000",
			ClearRange:    "Sheet1!A2:Z10000",
		}
	}

	store := postgres.NewLedgerStore(db)
	products := postgres.NewProductRepository(db)
	history := postgres.NewSyncHistoryRepository(db)

	engine := sheetsync.NewEngine(grid, sources, products, store, history)
	archiver := sheetsync.NewArchiver(grid, sources)
	setup := sheetsync.NewSheetSetup(grid, sources, products)
	return engine, archiver, setup
}
