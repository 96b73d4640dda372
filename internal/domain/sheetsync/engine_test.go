package sheetsync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"artis/internal/domain/ledger"
)

type mockGrid struct {
	ReadFunc         func(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
	UpdateFunc       func(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error
	AppendFunc       func(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error
	ClearFunc        func(ctx context.Context, spreadsheetID, clearRange string) error
	CreateTabFunc    func(ctx context.Context, spreadsheetID, title string) error
	ListTabNamesFunc func(ctx context.Context, spreadsheetID string) ([]string, error)
}

func (m *mockGrid) Read(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, spreadsheetID, readRange)
	}
	return nil, nil
}

func (m *mockGrid) Update(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, spreadsheetID, writeRange, values)
	}
	return nil
}

func (m *mockGrid) Append(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, spreadsheetID, writeRange, values)
	}
	return nil
}

func (m *mockGrid) Clear(ctx context.Context, spreadsheetID, clearRange string) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, spreadsheetID, clearRange)
	}
	return nil
}

func (m *mockGrid) CreateTab(ctx context.Context, spreadsheetID, title string) error {
	if m.CreateTabFunc != nil {
		return m.CreateTabFunc(ctx, spreadsheetID, title)
	}
	return nil
}

func (m *mockGrid) ListTabNames(ctx context.Context, spreadsheetID string) ([]string, error) {
	if m.ListTabNamesFunc != nil {
		return m.ListTabNamesFunc(ctx, spreadsheetID)
	}
	return nil, nil
}

type mockProductRepo struct {
	GetByIDFunc func(ctx context.Context, id string) (*ledger.Product, error)
	ListAllFunc func(ctx context.Context) ([]*ledger.Product, error)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*ledger.Product, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, ledger.ErrProductNotFound
}

func (m *mockProductRepo) ListAll(ctx context.Context) ([]*ledger.Product, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return nil, nil
}

type mockStore struct {
	CreateTransactionFunc func(ctx context.Context, params ledger.CreateTransactionParams) (*ledger.Transaction, error)
	ApplyBatchFunc        func(ctx context.Context, params ledger.ApplyBatchParams) error
	RecomputeProductFunc  func(ctx context.Context, productID string, updateAvg bool) (ledger.StockFigures, error)
	UndoBatchFunc         func(ctx context.Context, syncBatchID string) (*ledger.UndoBatchResult, error)
	ListByProductFunc     func(ctx context.Context, productID string, limit, offset int) ([]*ledger.Transaction, error)
}

func (m *mockStore) CreateTransaction(ctx context.Context, params ledger.CreateTransactionParams) (*ledger.Transaction, error) {
	if m.CreateTransactionFunc != nil {
		return m.CreateTransactionFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockStore) ApplyBatch(ctx context.Context, params ledger.ApplyBatchParams) error {
	if m.ApplyBatchFunc != nil {
		return m.ApplyBatchFunc(ctx, params)
	}
	return nil
}

func (m *mockStore) RecomputeProduct(ctx context.Context, productID string, updateAvg bool) (ledger.StockFigures, error) {
	if m.RecomputeProductFunc != nil {
		return m.RecomputeProductFunc(ctx, productID, updateAvg)
	}
	return ledger.StockFigures{}, nil
}

func (m *mockStore) UndoBatch(ctx context.Context, syncBatchID string) (*ledger.UndoBatchResult, error) {
	if m.UndoBatchFunc != nil {
		return m.UndoBatchFunc(ctx, syncBatchID)
	}
	return &ledger.UndoBatchResult{}, nil
}

func (m *mockStore) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*ledger.Transaction, error) {
	if m.ListByProductFunc != nil {
		return m.ListByProductFunc(ctx, productID, limit, offset)
	}
	return nil, nil
}

type mockHistoryRepo struct {
	CreateFunc       func(ctx context.Context, record *History) error
	ListFunc         func(ctx context.Context, limit, offset int) ([]*History, int64, error)
	GetByBatchIDFunc func(ctx context.Context, syncBatchID string) (*History, error)
}

func (m *mockHistoryRepo) Create(ctx context.Context, record *History) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	return nil
}

func (m *mockHistoryRepo) List(ctx context.Context, limit, offset int) ([]*History, int64, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockHistoryRepo) GetByBatchID(ctx context.Context, syncBatchID string) (*History, error) {
	if m.GetByBatchIDFunc != nil {
		return m.GetByBatchIDFunc(ctx, syncBatchID)
	}
	return nil, nil
}

func testSources() Sources {
	s := Sources{}
	for _, t := range []SyncType{SyncConsumption, SyncPurchases, SyncCorrections, SyncInitialStock} {
		s[t] = Source{
			SpreadsheetID: "sheet-" + string(t),
			DataRange:     "Sheet1!A2:E10000",
			FullRange:     "Sheet1!A1:Z10000",
			ClearRange:    "Sheet1!A2:Z10000",
		}
	}
	return s
}

func testProducts() []*ledger.Product {
	return []*ledger.Product{
		{
			ID:           "p-flour",
			ArtisCodes:   []string{"1101", "1,101"},
			Name:         "Flour",
			CurrentStock: decimal.NewFromInt(100),
		},
		{
			ID:           "p-sugar",
			ArtisCodes:   []string{"1102"},
			Name:         "Sugar",
			CurrentStock: decimal.NewFromInt(50),
		},
	}
}

func newTestEngine(grid Grid, store ledger.Store, history HistoryRepository) *Engine {
	products := &mockProductRepo{
		ListAllFunc: func(ctx context.Context) ([]*ledger.Product, error) {
			return testProducts(), nil
		},
	}
	e := NewEngine(grid, testSources(), products, store, history)
	e.now = func() time.Time { return testNow }
	return e
}

func TestSyncConsumption(t *testing.T) {
	rows := [][]interface{}{
		{"1101", "100", "January 2026", ""},             // row 2: good
		{"Example: 1101", "50", "January 2026", ""},     // row 3: template placeholder
		{"", "", "", ""},                                // row 4: blank
		{"9999", "100", "January 2026", ""},             // row 5: unknown code
		{"1102", "abc", "January 2026", ""},             // row 6: bad amount
		{"1,102", "30", "not a month", "taken early"},   // row 7: comma code, bad month
	}

	var applied *ledger.ApplyBatchParams
	store := &mockStore{
		ApplyBatchFunc: func(ctx context.Context, params ledger.ApplyBatchParams) error {
			applied = &params
			return nil
		},
	}
	var recorded *History
	history := &mockHistoryRepo{
		CreateFunc: func(ctx context.Context, record *History) error {
			recorded = record
			return nil
		},
	}
	grid := &mockGrid{
		ReadFunc: func(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
			return rows, nil
		},
	}

	result, err := newTestEngine(grid, store, history).SyncConsumption(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Added != 2 {
		t.Fatalf("added = %d, want 2", result.Added)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", result.Errors)
	}
	if !containsMsg(result.Errors, "Row 5 (9999): Product not found: 9999") {
		t.Errorf("missing unknown-code error: %v", result.Errors)
	}
	if !containsMsg(result.Errors, "Row 6 (1102): Invalid consumption amount: abc") {
		t.Errorf("missing bad-amount error: %v", result.Errors)
	}
	if !containsMsg(result.Warnings, "Invalid month format: not a month") {
		t.Errorf("missing month warning: %v", result.Warnings)
	}

	if applied == nil {
		t.Fatal("batch never applied")
	}
	if !applied.UpdateAvg {
		t.Error("consumption batch must recompute averages")
	}
	if len(applied.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(applied.Transactions))
	}

	first := applied.Transactions[0]
	if first.ProductID != "p-flour" || first.Type != ledger.TxOut || !first.IncludeInAvg {
		t.Errorf("first tx: %+v", first)
	}
	wantDate := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	if !first.Date.Equal(wantDate) {
		t.Errorf("first tx date = %v, want %v", first.Date, wantDate)
	}
	if first.Notes != "Monthly consumption for January 2026" {
		t.Errorf("first tx notes = %q", first.Notes)
	}
	if first.SyncBatchID == nil || !strings.HasPrefix(*first.SyncBatchID, "consumption-") {
		t.Errorf("first tx batch id = %v", first.SyncBatchID)
	}

	// The unparseable month falls back to "now"; the comma in the code is
	// stripped before resolving.
	second := applied.Transactions[1]
	if second.ProductID != "p-sugar" {
		t.Errorf("second tx resolved to %s", second.ProductID)
	}
	if !second.Date.Equal(testNow) {
		t.Errorf("second tx date = %v, want now fallback", second.Date)
	}
	if second.Notes != "taken early" {
		t.Errorf("second tx notes = %q", second.Notes)
	}
	if *second.SyncBatchID != *first.SyncBatchID {
		t.Error("batch id must be shared across the batch")
	}

	if recorded == nil {
		t.Fatal("history never written")
	}
	if recorded.Status != StatusFailed {
		t.Errorf("history status = %s, want failed while row errors exist", recorded.Status)
	}
	if recorded.ItemCount != 2 {
		t.Errorf("history item count = %d, want 2", recorded.ItemCount)
	}
	if recorded.Metadata["rowsProcessed"] != len(rows) {
		t.Errorf("rowsProcessed = %d, want %d", recorded.Metadata["rowsProcessed"], len(rows))
	}
	if recorded.UserID != "user-1" {
		t.Errorf("history user = %q", recorded.UserID)
	}
}

func TestSyncConsumption_CleanBatchCompletes(t *testing.T) {
	grid := &mockGrid{
		ReadFunc: func(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
			return [][]interface{}{{"1101", "100", "January 2026", ""}}, nil
		},
	}
	var recorded *History
	history := &mockHistoryRepo{
		CreateFunc: func(ctx context.Context, record *History) error {
			recorded = record
			return nil
		},
	}

	result, err := newTestEngine(grid, &mockStore{}, history).SyncConsumption(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Added != 1 || len(result.Errors) != 0 {
		t.Fatalf("result: %+v", result)
	}
	if recorded.Status != StatusCompleted {
		t.Errorf("history status = %s, want completed", recorded.Status)
	}
}

func TestSyncPurchases(t *testing.T) {
	rows := [][]interface{}{
		{"1101", "15.3.2026", "250", "Acme Mills", "warehouse 2"},
		{"1102", "14.3.2026", "100", "", ""},
		{"1101", "", "50", "Acme Mills", ""}, // missing date: skipped silently
	}

	var applied *ledger.ApplyBatchParams
	store := &mockStore{
		ApplyBatchFunc: func(ctx context.Context, params ledger.ApplyBatchParams) error {
			applied = &params
			return nil
		},
	}
	grid := &mockGrid{
		ReadFunc: func(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
			return rows, nil
		},
	}

	result, err := newTestEngine(grid, store, &mockHistoryRepo{}).SyncPurchases(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Added != 2 || len(result.Errors) != 0 {
		t.Fatalf("result: %+v", result)
	}

	if applied.UpdateAvg {
		t.Error("purchases must not recompute averages")
	}
	first := applied.Transactions[0]
	if first.Type != ledger.TxIn || first.IncludeInAvg {
		t.Errorf("first tx: %+v", first)
	}
	if first.Notes != "Supplier: Acme Mills. warehouse 2" {
		t.Errorf("first tx notes = %q", first.Notes)
	}
	if !first.Date.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first tx date = %v", first.Date)
	}
	if applied.Transactions[1].Notes != "" {
		t.Errorf("second tx notes = %q, want empty without supplier", applied.Transactions[1].Notes)
	}
}

func TestSyncCorrections(t *testing.T) {
	rows := [][]interface{}{
		{"1101", "+16 kg", "add", "15.3.2026", "shelf recount"},
		{"1102", "-4.5", "remove", "", ""},
		{"1101", "0", "none", "", "noop"}, // zero corrections are dropped
		{"1101", "16.125", "add", "", "recount"},
	}

	var applied *ledger.ApplyBatchParams
	store := &mockStore{
		ApplyBatchFunc: func(ctx context.Context, params ledger.ApplyBatchParams) error {
			applied = &params
			return nil
		},
	}
	grid := &mockGrid{
		ReadFunc: func(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
			return rows, nil
		},
	}

	result, err := newTestEngine(grid, store, &mockHistoryRepo{}).SyncCorrections(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Added != 3 {
		t.Fatalf("added = %d, want 3 (zero correction dropped)", result.Added)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("zero correction must not produce an error: %v", result.Errors)
	}
	if !containsMsg(result.Warnings, "Zero correction amount") {
		t.Errorf("zero correction should warn: %v", result.Warnings)
	}

	if applied.UpdateAvg {
		t.Error("corrections must not recompute averages")
	}
	first := applied.Transactions[0]
	if first.Type != ledger.TxCorrection || first.Quantity.String() != "16" {
		t.Errorf("first tx: %+v", first)
	}
	if first.Notes != "CORRECTION: +16 kg. shelf recount" {
		t.Errorf("first tx notes = %q", first.Notes)
	}
	second := applied.Transactions[1]
	if second.Quantity.String() != "-4.5" {
		t.Errorf("second tx quantity = %s, want signed", second.Quantity)
	}
	if second.Notes != "CORRECTION: -4.5 kg." {
		t.Errorf("second tx notes = %q", second.Notes)
	}
	if !second.Date.Equal(testNow) {
		t.Errorf("second tx date = %v, want now fallback", second.Date)
	}
	third := applied.Transactions[2]
	if third.Quantity.String() != "16.13" {
		t.Errorf("third tx quantity = %s, want rounded to two places", third.Quantity)
	}
}

func TestSyncInitialStock(t *testing.T) {
	rows := [][]interface{}{
		{"1101", "120", "", "opening count"}, // cached 100 -> IN 20
		{"1102", "30", "", ""},               // cached 50 -> OUT 20
		{"1101", "100", "", ""},              // matches cache: no-op
	}

	var applied *ledger.ApplyBatchParams
	store := &mockStore{
		ApplyBatchFunc: func(ctx context.Context, params ledger.ApplyBatchParams) error {
			applied = &params
			return nil
		},
	}
	grid := &mockGrid{
		ReadFunc: func(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
			return rows, nil
		},
	}

	result, err := newTestEngine(grid, store, &mockHistoryRepo{}).SyncInitialStock(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Added != 2 {
		t.Fatalf("added = %d, want 2 (matching level is a no-op)", result.Added)
	}

	if !applied.UpdateAvg {
		t.Error("initial stock batch must recompute averages")
	}
	first := applied.Transactions[0]
	if first.Type != ledger.TxIn || first.Quantity.String() != "20" {
		t.Errorf("first tx: %+v", first)
	}
	if first.Notes != "INITIAL STOCK: Set to 120 kg. opening count" {
		t.Errorf("first tx notes = %q", first.Notes)
	}
	second := applied.Transactions[1]
	if second.Type != ledger.TxOut || second.Quantity.String() != "20" {
		t.Errorf("second tx: %+v", second)
	}
}

func TestSync_ReadFailureWritesFailedHistory(t *testing.T) {
	grid := &mockGrid{
		ReadFunc: func(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	var recorded *History
	history := &mockHistoryRepo{
		CreateFunc: func(ctx context.Context, record *History) error {
			recorded = record
			return nil
		},
	}

	_, err := newTestEngine(grid, &mockStore{}, history).SyncConsumption(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if recorded == nil {
		t.Fatal("failed batch must still write history")
	}
	if recorded.Status != StatusFailed || recorded.ItemCount != 0 {
		t.Errorf("history: %+v", recorded)
	}
	if !containsMsg(recorded.Errors, "quota exceeded") {
		t.Errorf("history errors = %v", recorded.Errors)
	}
}

func TestSync_ApplyFailureRollsBack(t *testing.T) {
	grid := &mockGrid{
		ReadFunc: func(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
			return [][]interface{}{{"1101", "100", "January 2026", ""}}, nil
		},
	}
	store := &mockStore{
		ApplyBatchFunc: func(ctx context.Context, params ledger.ApplyBatchParams) error {
			return errors.New("deadlock detected")
		},
	}
	var recorded *History
	history := &mockHistoryRepo{
		CreateFunc: func(ctx context.Context, record *History) error {
			recorded = record
			return nil
		},
	}

	_, err := newTestEngine(grid, store, history).SyncConsumption(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if recorded.Status != StatusFailed {
		t.Errorf("history status = %s", recorded.Status)
	}
	if recorded.ItemCount != 0 {
		t.Errorf("item count = %d, want 0 after rollback", recorded.ItemCount)
	}
	if !containsMsg(recorded.Errors, "deadlock detected") {
		t.Errorf("history errors = %v", recorded.Errors)
	}
}

func TestPending(t *testing.T) {
	grid := &mockGrid{
		ReadFunc: func(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
			switch spreadsheetID {
			case "sheet-consumption":
				return [][]interface{}{
					{"1101", "100", "January 2026"},
					{"Example: 1101", "50", "January 2026"},
					{"1102", ""}, // incomplete
				}, nil
			case "sheet-purchases":
				return [][]interface{}{{"1101", "15.3.2026", "250"}}, nil
			default:
				return nil, nil
			}
		},
	}

	summary, err := newTestEngine(grid, &mockStore{}, &mockHistoryRepo{}).Pending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Consumption != 1 || summary.Purchases != 1 || summary.Corrections != 0 || summary.InitialStock != 0 {
		t.Errorf("summary: %+v", summary)
	}
}

func TestUndo(t *testing.T) {
	records := map[string]*History{
		"consumption-x": {SyncBatchID: "consumption-x", Status: StatusCompleted, ItemCount: 3},
		"purchases-y":   {SyncBatchID: "purchases-y", Status: StatusUndone, ItemCount: 2},
		"corrections-z": {SyncBatchID: "corrections-z", Status: StatusCompleted, ItemCount: 0},
	}
	history := &mockHistoryRepo{
		GetByBatchIDFunc: func(ctx context.Context, syncBatchID string) (*History, error) {
			return records[syncBatchID], nil
		},
	}
	store := &mockStore{
		UndoBatchFunc: func(ctx context.Context, syncBatchID string) (*ledger.UndoBatchResult, error) {
			return &ledger.UndoBatchResult{TransactionsDeleted: 3, ProductsRecomputed: 2}, nil
		},
	}
	engine := newTestEngine(&mockGrid{}, store, history)

	result, err := engine.Undo(context.Background(), "consumption-x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TransactionsDeleted != 3 || result.ProductsRecomputed != 2 {
		t.Errorf("result: %+v", result)
	}

	if _, err := engine.Undo(context.Background(), "missing"); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("missing batch: %v", err)
	}
	if _, err := engine.Undo(context.Background(), "purchases-y"); !errors.Is(err, ErrAlreadyUndone) {
		t.Errorf("undone batch: %v", err)
	}
	if _, err := engine.Undo(context.Background(), "corrections-z"); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("empty batch: %v", err)
	}
}
