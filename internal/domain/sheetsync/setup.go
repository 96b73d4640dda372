package sheetsync

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"artis/internal/domain/ledger"
)

// SheetSetup writes a category's header and starter rows into its live
// sheet so a blank spreadsheet becomes usable without manual formatting.
// Starter rows carry the placeholder markers the sync engine skips.
type SheetSetup struct {
	grid     Grid
	sources  Sources
	products ledger.ProductRepository
}

func NewSheetSetup(grid Grid, sources Sources, products ledger.ProductRepository) *SheetSetup {
	return &SheetSetup{grid: grid, sources: sources, products: products}
}

var sheetHeaders = map[SyncType][]interface{}{
	SyncConsumption:  {"Product Code", "Amount (kg)", "Month", "Notes"},
	SyncPurchases:    {"Product Code", "Date", "Amount (kg)", "Supplier", "Notes"},
	SyncCorrections:  {"Product Code", "Amount", "Type", "Date", "Reason"},
	SyncInitialStock: {"Product Code", "Amount (kg)", "Date", "Notes"},
}

// Setup overwrites the live sheet with the category's template. Consumption
// and initial stock sheets are pre-filled with one row per known product
// code; purchases and corrections get instruction rows instead, since their
// rows arrive ad hoc.
func (s *SheetSetup) Setup(ctx context.Context, syncType SyncType) (int, error) {
	src, err := s.sources.lookup(syncType)
	if err != nil {
		return 0, err
	}
	header, ok := sheetHeaders[syncType]
	if !ok {
		return 0, fmt.Errorf("no template for sync type: %s", syncType)
	}

	if err := s.grid.Clear(ctx, src.SpreadsheetID, src.ClearRange); err != nil {
		return 0, fmt.Errorf("failed to clear %s sheet before setup: %w", syncType, err)
	}

	values := [][]interface{}{header}
	switch syncType {
	case SyncConsumption, SyncInitialStock:
		products, err := s.products.ListAll(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to load products for %s template: %w", syncType, err)
		}
		for _, p := range products {
			if len(p.ArtisCodes) == 0 {
				continue
			}
			values = append(values, []interface{}{p.ArtisCodes[0], "", "", p.Name})
		}
	case SyncPurchases:
		values = append(values,
			[]interface{}{"Instructions: one row per delivery; date and amount are required", "", "", "", ""},
			[]interface{}{"Example: 1101", "15.1.2026", "250", "Acme Mills", "delivered to warehouse 2"},
		)
	case SyncCorrections:
		values = append(values,
			[]interface{}{"Instructions: amount is signed; +16 adds stock, -16 removes it", "", "", "", ""},
			[]interface{}{"Example: 1101", "+16 kg", "recount", "15.1.2026", "shelf count differed"},
		)
	}

	if err := s.grid.Update(ctx, src.SpreadsheetID, "Sheet1!A1", values); err != nil {
		return 0, fmt.Errorf("failed to write %s template: %w", syncType, err)
	}

	logrus.WithFields(logrus.Fields{
		"syncType": syncType,
		"rows":     len(values) - 1,
	}).Info("sheet template written")

	return len(values) - 1, nil
}
