package sheetsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"artis/internal/domain/ledger"
)

// Engine pulls one category of rows from the external sheet, validates and
// resolves them, and applies the resulting transactions to the ledger as a
// single atomic batch. Row-level problems skip the row and accumulate in the
// result; only source/database failures abort a batch.
//
// The engine performs no deduplication, within or across batches: re-running
// a sync against an unarchived, unchanged sheet double-counts. Idempotency
// is the caller's contract (archive-then-clear after a successful sync).
type Engine struct {
	grid     Grid
	sources  Sources
	products ledger.ProductRepository
	store    ledger.Store
	history  HistoryRepository

	// now is stubbed in tests.
	now func() time.Time
}

func NewEngine(grid Grid, sources Sources, products ledger.ProductRepository, store ledger.Store, history HistoryRepository) *Engine {
	return &Engine{
		grid:     grid,
		sources:  sources,
		products: products,
		store:    store,
		history:  history,
		now:      time.Now,
	}
}

// batch is the in-flight state of one sync invocation. The resolver cache is
// batch-local: rebuilt fresh on every call and discarded with it, so a
// long-running batch can never observe another invocation's cache.
type batch struct {
	id       string
	syncType SyncType
	userID   string
	rowsRead int

	cache   map[string]*ledger.Product
	txs     []ledger.CreateTransactionParams
	touched map[string]struct{}

	errors   []string
	warnings []string
}

func (b *batch) rowError(rowNum int, code, msg string) {
	b.errors = append(b.errors, fmt.Sprintf("Row %d (%s): %s", rowNum, code, msg))
}

func (b *batch) rowWarning(rowNum int, code, msg string) {
	b.warnings = append(b.warnings, fmt.Sprintf("Row %d (%s): %s", rowNum, code, msg))
}

// resolve looks the normalized code up in the batch-local cache.
func (b *batch) resolve(code string) *ledger.Product {
	return b.cache[code]
}

func (b *batch) add(params ledger.CreateTransactionParams) {
	params.SyncBatchID = &b.id
	// Ledger quantities carry two fractional digits.
	params.Quantity = params.Quantity.Round(2)
	b.txs = append(b.txs, params)
	b.touched[params.ProductID] = struct{}{}
}

func (b *batch) touchedIDs() []string {
	ids := make([]string, 0, len(b.touched))
	for id := range b.touched {
		ids = append(ids, id)
	}
	return ids
}

// begin generates the batch id, rebuilds the resolver cache and reads the
// category's data rows. A failure here is batch-fatal: a failed history
// record is written and the error propagates.
func (e *Engine) begin(ctx context.Context, syncType SyncType, userID string) (*batch, [][]interface{}, error) {
	b := &batch{
		id:       NewBatchID(syncType),
		syncType: syncType,
		userID:   userID,
		cache:    make(map[string]*ledger.Product),
		touched:  make(map[string]struct{}),
	}

	src, err := e.sources.lookup(syncType)
	if err != nil {
		return nil, nil, err
	}

	products, err := e.products.ListAll(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load product cache: %w", err)
		e.writeHistory(ctx, b, StatusFailed, err.Error())
		return nil, nil, err
	}
	for _, p := range products {
		for _, code := range p.ArtisCodes {
			b.cache[NormalizeCode(code)] = p
		}
	}

	rows, err := e.grid.Read(ctx, src.SpreadsheetID, src.DataRange)
	if err != nil {
		err = fmt.Errorf("failed to read %s sheet: %w", syncType, err)
		e.writeHistory(ctx, b, StatusFailed, err.Error())
		return nil, nil, err
	}
	b.rowsRead = len(rows)

	return b, rows, nil
}

// commit applies the batch atomically and writes its history record. All
// inserts and cache recomputations either persist together or roll back
// together; the history record is written either way.
func (e *Engine) commit(ctx context.Context, b *batch, updateAvg bool) (*Result, error) {
	if len(b.txs) > 0 {
		err := e.store.ApplyBatch(ctx, ledger.ApplyBatchParams{
			Transactions:      b.txs,
			TouchedProductIDs: b.touchedIDs(),
			UpdateAvg:         updateAvg,
		})
		if err != nil {
			err = fmt.Errorf("failed to apply %s batch: %w", b.syncType, err)
			e.writeHistory(ctx, b, StatusFailed, err.Error())
			batchesTotal.WithLabelValues(string(b.syncType), StatusFailed).Inc()
			return nil, err
		}
	}

	status := StatusCompleted
	if len(b.errors) > 0 {
		status = StatusFailed
	}
	e.writeHistory(ctx, b, status, "")

	batchesTotal.WithLabelValues(string(b.syncType), status).Inc()
	rowsIngested.WithLabelValues(string(b.syncType)).Add(float64(len(b.txs)))

	logrus.WithFields(logrus.Fields{
		"batchId":  b.id,
		"syncType": b.syncType,
		"rowsRead": b.rowsRead,
		"added":    len(b.txs),
		"errors":   len(b.errors),
		"warnings": len(b.warnings),
	}).Info("sync batch finished")

	return &Result{
		Added:    len(b.txs),
		Errors:   append([]string{}, b.errors...),
		Warnings: append([]string{}, b.warnings...),
	}, nil
}

// writeHistory appends the batch's audit record. fatalMsg, when non-empty,
// is the batch-fatal failure appended after any accumulated row errors;
// fatal records always carry an item count of zero because the database
// transaction rolled back.
func (e *Engine) writeHistory(ctx context.Context, b *batch, status, fatalMsg string) {
	record := &History{
		SyncBatchID: b.id,
		SyncType:    b.syncType,
		SyncDate:    e.now(),
		ItemCount:   len(b.txs),
		Status:      status,
		Errors:      append([]string{}, b.errors...),
		Warnings:    append([]string{}, b.warnings...),
		Metadata:    map[string]int{"rowsProcessed": b.rowsRead},
		UserID:      b.userID,
	}
	if fatalMsg != "" {
		record.ItemCount = 0
		record.Errors = append(record.Errors, fatalMsg)
	}

	if err := e.history.Create(ctx, record); err != nil {
		logrus.WithError(err).WithField("batchId", b.id).Error("failed to write sync history record")
	}
}

// SyncConsumption ingests monthly consumption rows as includable OUT
// transactions dated on the last day of the labelled month.
func (e *Engine) SyncConsumption(ctx context.Context, userID string) (*Result, error) {
	b, rows, err := e.begin(ctx, SyncConsumption, userID)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		rowNum := i + 2 // data starts under the header row
		code := cell(row, 0)
		amountRaw := cell(row, 1)
		monthLabel := cell(row, 2)
		notes := cell(row, 3)

		if code == "" || amountRaw == "" || isPlaceholderRow(code) {
			continue
		}
		code = NormalizeCode(code)

		v := ValidateConsumptionRow(amountRaw, monthLabel, e.now())
		if len(v.Warnings) > 0 {
			b.rowWarning(rowNum, code, strings.Join(v.Warnings, ", "))
		}
		if !v.Valid {
			b.rowError(rowNum, code, strings.Join(v.Errors, ", "))
			continue
		}

		product := b.resolve(code)
		if product == nil {
			b.rowError(rowNum, code, fmt.Sprintf("Product not found: %s", code))
			continue
		}

		quantity, _ := decimal.NewFromString(amountRaw)
		date, ok := ParseMonthLabel(monthLabel)
		if !ok {
			date = e.now()
		}
		if notes == "" {
			label := monthLabel
			if label == "" {
				label = e.now().Format("January 2006")
			}
			notes = fmt.Sprintf("Monthly consumption for %s", label)
		}

		b.add(ledger.CreateTransactionParams{
			ProductID:    product.ID,
			Type:         ledger.TxOut,
			Quantity:     quantity,
			Date:         date,
			Notes:        notes,
			IncludeInAvg: true,
		})
	}

	return e.commit(ctx, b, true)
}

// SyncPurchases ingests purchase rows as IN transactions dated on the
// purchase date.
func (e *Engine) SyncPurchases(ctx context.Context, userID string) (*Result, error) {
	b, rows, err := e.begin(ctx, SyncPurchases, userID)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		rowNum := i + 2
		code := cell(row, 0)
		dateRaw := cell(row, 1)
		amountRaw := cell(row, 2)
		supplier := cell(row, 3)
		notes := cell(row, 4)

		if code == "" || isPlaceholderRow(code) || dateRaw == "" || amountRaw == "" {
			continue
		}
		code = NormalizeCode(code)

		v := ValidatePurchaseRow(dateRaw, amountRaw, e.now())
		if len(v.Warnings) > 0 {
			b.rowWarning(rowNum, code, strings.Join(v.Warnings, ", "))
		}
		if !v.Valid {
			b.rowError(rowNum, code, strings.Join(v.Errors, ", "))
			continue
		}

		product := b.resolve(code)
		if product == nil {
			b.rowError(rowNum, code, fmt.Sprintf("Product not found: %s", code))
			continue
		}

		quantity, _ := decimal.NewFromString(amountRaw)
		date, _ := ParseDate(dateRaw)

		fullNotes := notes
		if supplier != "" {
			fullNotes = strings.TrimSpace(fmt.Sprintf("Supplier: %s. %s", supplier, notes))
		}

		b.add(ledger.CreateTransactionParams{
			ProductID: product.ID,
			Type:      ledger.TxIn,
			Quantity:  quantity,
			Date:      date,
			Notes:     fullNotes,
		})
	}

	return e.commit(ctx, b, false)
}

// SyncCorrections ingests correction rows as signed CORRECTION transactions.
// Rows whose extracted amount is exactly zero are dropped silently: a zero
// correction has no ledger effect.
func (e *Engine) SyncCorrections(ctx context.Context, userID string) (*Result, error) {
	b, rows, err := e.begin(ctx, SyncCorrections, userID)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		rowNum := i + 2
		code := cell(row, 0)
		amountRaw := cell(row, 1)
		dateRaw := cell(row, 3)
		reason := cell(row, 4)

		if code == "" || amountRaw == "" || isPlaceholderRow(code) {
			continue
		}
		code = NormalizeCode(code)

		v := ValidateCorrectionRow(amountRaw, dateRaw, e.now())
		if len(v.Warnings) > 0 {
			b.rowWarning(rowNum, code, strings.Join(v.Warnings, ", "))
		}
		if !v.Valid {
			b.rowError(rowNum, code, strings.Join(v.Errors, ", "))
			continue
		}

		product := b.resolve(code)
		if product == nil {
			b.rowError(rowNum, code, fmt.Sprintf("Product not found: %s", code))
			continue
		}

		amount, _ := ExtractCorrectionAmount(amountRaw)
		if amount.IsZero() {
			continue
		}

		date, ok := ParseDate(dateRaw)
		if !ok {
			date = e.now()
		}

		sign := ""
		if amount.IsPositive() {
			sign = "+"
		}
		notes := strings.TrimSpace(fmt.Sprintf("CORRECTION: %s%s kg. %s", sign, amount, reason))

		b.add(ledger.CreateTransactionParams{
			ProductID: product.ID,
			Type:      ledger.TxCorrection,
			Quantity:  amount,
			Date:      date,
			Notes:     notes,
		})
	}

	return e.commit(ctx, b, false)
}

// SyncInitialStock reconciles each row's requested stock level against the
// product's cached stock and synthesizes the difference as a single IN or
// OUT transaction. A row whose requested level already matches is a no-op,
// which makes re-applying an unchanged sheet idempotent.
func (e *Engine) SyncInitialStock(ctx context.Context, userID string) (*Result, error) {
	b, rows, err := e.begin(ctx, SyncInitialStock, userID)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		rowNum := i + 2
		code := cell(row, 0)
		amountRaw := cell(row, 1)
		dateRaw := cell(row, 2)
		notes := cell(row, 3)

		if code == "" || amountRaw == "" || isPlaceholderRow(code) {
			continue
		}
		code = NormalizeCode(code)

		v := ValidateInitialStockRow(amountRaw)
		if !v.Valid {
			b.rowError(rowNum, code, strings.Join(v.Errors, ", "))
			continue
		}

		product := b.resolve(code)
		if product == nil {
			b.rowError(rowNum, code, fmt.Sprintf("Product not found: %s", code))
			continue
		}

		requested, _ := decimal.NewFromString(amountRaw)
		difference := requested.Sub(product.CurrentStock)
		if difference.IsZero() {
			continue
		}

		txType := ledger.TxIn
		if difference.IsNegative() {
			txType = ledger.TxOut
		}

		date, ok := ParseDate(dateRaw)
		if !ok {
			date = e.now()
		}

		b.add(ledger.CreateTransactionParams{
			ProductID: product.ID,
			Type:      txType,
			Quantity:  difference.Abs(),
			Date:      date,
			Notes:     strings.TrimSpace(fmt.Sprintf("INITIAL STOCK: Set to %s kg. %s", requested, notes)),
		})
	}

	return e.commit(ctx, b, true)
}

// PendingSummary counts the rows currently sitting in each configured live
// sheet that would be considered for ingestion (required cells present,
// template placeholders excluded).
type PendingSummary struct {
	Consumption  int `json:"consumption"`
	Purchases    int `json:"purchases"`
	Corrections  int `json:"corrections"`
	InitialStock int `json:"initialStock"`
}

func (e *Engine) Pending(ctx context.Context) (*PendingSummary, error) {
	summary := &PendingSummary{}

	counts := []struct {
		syncType SyncType
		required []int
		dest     *int
	}{
		{SyncConsumption, []int{0, 1}, &summary.Consumption},
		{SyncPurchases, []int{0, 1, 2}, &summary.Purchases},
		{SyncCorrections, []int{0, 1}, &summary.Corrections},
		{SyncInitialStock, []int{0, 1}, &summary.InitialStock},
	}

	for _, c := range counts {
		src, err := e.sources.lookup(c.syncType)
		if err != nil {
			continue // category not configured
		}
		rows, err := e.grid.Read(ctx, src.SpreadsheetID, src.DataRange)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s sheet: %w", c.syncType, err)
		}
		for _, row := range rows {
			if isPlaceholderRow(cell(row, 0)) {
				continue
			}
			complete := true
			for _, idx := range c.required {
				if cell(row, idx) == "" {
					complete = false
					break
				}
			}
			if complete {
				*c.dest++
			}
		}
	}

	return summary, nil
}
