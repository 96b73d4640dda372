package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"artis/internal/domain/ledger"
)

// InventoryHandler covers the ledger operations outside a sheet sync:
// manual transaction entry, transaction listing and cache recomputation.
type InventoryHandler struct {
	service *ledger.Service
}

func NewInventoryHandler(service *ledger.Service) *InventoryHandler {
	return &InventoryHandler{service: service}
}

type CreateTransactionRequest struct {
	ProductID    string `json:"productId"`
	Type         string `json:"type"`
	Quantity     string `json:"quantity"`
	Date         string `json:"date,omitempty"`
	Notes        string `json:"notes,omitempty"`
	IncludeInAvg bool   `json:"includeInAvg,omitempty"`
}

// HandleTransactions routes the transaction collection endpoints.
func (h *InventoryHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListTransactions(w, r)
	case http.MethodPost:
		h.handleCreateTransaction(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *InventoryHandler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		http.Error(w, "Invalid quantity", http.StatusBadRequest)
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			http.Error(w, "Invalid date, expected RFC 3339", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	params := ledger.CreateTransactionParams{
		ProductID:    req.ProductID,
		Type:         ledger.TxType(req.Type),
		Quantity:     quantity,
		Date:         date,
		Notes:        req.Notes,
		IncludeInAvg: req.IncludeInAvg,
	}

	created, err := h.service.RecordTransaction(r.Context(), params)
	switch {
	case errors.Is(err, ledger.ErrProductNotFound):
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	case err != nil:
		if isValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logrus.WithError(err).Error("failed to record transaction")
		http.Error(w, "Failed to record transaction", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *InventoryHandler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	transactions, err := h.service.ListTransactions(r.Context(), productID, limit, offset)
	if err != nil {
		logrus.WithError(err).WithField("productId", productID).Error("failed to list transactions")
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []*ledger.Transaction{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// HandleRecompute re-derives one product's cached figures from its ledger.
func (h *InventoryHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	productID := r.PathValue("id")
	figures, err := h.service.Recompute(r.Context(), productID)
	switch {
	case errors.Is(err, ledger.ErrProductNotFound):
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	case err != nil:
		logrus.WithError(err).WithField("productId", productID).Error("recompute failed")
		http.Error(w, "Recompute failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, figures)
}

func isValidationError(err error) bool {
	return errors.Is(err, ledger.ErrInvalidTransaction)
}
