package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"artis/internal/domain/ledger"
)

func newInventoryHandler(store ledger.Store, products ledger.ProductRepository) *InventoryHandler {
	return NewInventoryHandler(ledger.NewService(store, products))
}

func knownProduct() *MockProductRepo {
	return &MockProductRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*ledger.Product, error) {
			if id == "p-flour" {
				return &ledger.Product{ID: "p-flour", Name: "Flour"}, nil
			}
			return nil, ledger.ErrProductNotFound
		},
	}
}

func TestHandleTransactions_Create(t *testing.T) {
	var stored ledger.CreateTransactionParams
	store := &MockLedgerStore{
		CreateTransactionFunc: func(ctx context.Context, params ledger.CreateTransactionParams) (*ledger.Transaction, error) {
			stored = params
			return &ledger.Transaction{
				ID:        "tx-1",
				ProductID: params.ProductID,
				Type:      params.Type,
				Quantity:  params.Quantity,
				Date:      params.Date,
				CreatedAt: time.Now(),
			}, nil
		},
	}

	handler := newInventoryHandler(store, knownProduct())

	body := bytes.NewBufferString(`{"productId":"p-flour","type":"IN","quantity":"25.504","notes":"delivery"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/inventory/transactions", body)
	rr := httptest.NewRecorder()

	handler.HandleTransactions(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if stored.Type != ledger.TxIn || stored.Quantity.String() != "25.5" {
		t.Errorf("stored params (quantity rounds to two places): %+v", stored)
	}
	if stored.Date.IsZero() {
		t.Error("missing date must default to now")
	}

	var resp ledger.Transaction
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.ID != "tx-1" {
		t.Errorf("response id = %q", resp.ID)
	}
}

func TestHandleTransactions_CreateRejectsBadInput(t *testing.T) {
	handler := newInventoryHandler(&MockLedgerStore{}, knownProduct())

	cases := []struct {
		name string
		body string
		want int
	}{
		{"unparseable quantity", `{"productId":"p-flour","type":"IN","quantity":"lots"}`, http.StatusBadRequest},
		{"negative OUT", `{"productId":"p-flour","type":"OUT","quantity":"-5"}`, http.StatusBadRequest},
		{"zero correction", `{"productId":"p-flour","type":"CORRECTION","quantity":"0"}`, http.StatusBadRequest},
		{"unknown type", `{"productId":"p-flour","type":"MOVE","quantity":"5"}`, http.StatusBadRequest},
		{"unknown product", `{"productId":"p-nope","type":"IN","quantity":"5"}`, http.StatusNotFound},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/inventory/transactions", bytes.NewBufferString(c.body))
			rr := httptest.NewRecorder()

			handler.HandleTransactions(rr, req)

			if rr.Code != c.want {
				t.Errorf("status = %d, want %d", rr.Code, c.want)
			}
		})
	}
}

func TestHandleTransactions_List(t *testing.T) {
	store := &MockLedgerStore{
		ListByProductFunc: func(ctx context.Context, productID string, limit, offset int) ([]*ledger.Transaction, error) {
			if productID != "p-flour" {
				t.Errorf("productID = %q", productID)
			}
			return []*ledger.Transaction{
				{ID: "tx-1", ProductID: productID, Type: ledger.TxOut, Quantity: decimal.NewFromInt(10)},
			}, nil
		},
	}

	handler := newInventoryHandler(store, knownProduct())

	req := httptest.NewRequest(http.MethodGet, "/api/inventory/transactions?productId=p-flour", nil)
	rr := httptest.NewRecorder()

	handler.HandleTransactions(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp struct {
		Transactions []*ledger.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Transactions) != 1 {
		t.Errorf("transactions = %v", resp.Transactions)
	}
}

func TestHandleTransactions_ListRequiresProductID(t *testing.T) {
	handler := newInventoryHandler(&MockLedgerStore{}, knownProduct())

	req := httptest.NewRequest(http.MethodGet, "/api/inventory/transactions", nil)
	rr := httptest.NewRecorder()

	handler.HandleTransactions(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleRecompute(t *testing.T) {
	store := &MockLedgerStore{
		RecomputeProductFunc: func(ctx context.Context, productID string, updateAvg bool) (ledger.StockFigures, error) {
			if !updateAvg {
				t.Error("standalone recompute must refresh the average")
			}
			return ledger.StockFigures{
				CurrentStock:   decimal.RequireFromString("975"),
				AvgConsumption: decimal.RequireFromString("108.33"),
			}, nil
		},
	}

	handler := newInventoryHandler(store, knownProduct())

	req := httptest.NewRequest(http.MethodPost, "/api/inventory/products/p-flour/recompute", nil)
	req.SetPathValue("id", "p-flour")
	rr := httptest.NewRecorder()

	handler.HandleRecompute(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var figures ledger.StockFigures
	if err := json.Unmarshal(rr.Body.Bytes(), &figures); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if figures.CurrentStock.String() != "975" {
		t.Errorf("currentStock = %s", figures.CurrentStock)
	}
}
