package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxType classifies a ledger entry. IN and OUT carry their sign implicitly;
// CORRECTION quantities are signed.
type TxType string

const (
	TxIn         TxType = "IN"
	TxOut        TxType = "OUT"
	TxCorrection TxType = "CORRECTION"
)

// IsValid reports whether t is one of the three known transaction types.
func (t TxType) IsValid() bool {
	return t == TxIn || t == TxOut || t == TxCorrection
}

// Transaction is one stock-affecting event. Rows are never edited in place;
// mistakes are fixed by appending CORRECTION entries.
type Transaction struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"productId"`
	Type         TxType          `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Date         time.Time       `json:"date"`
	Notes        string          `json:"notes,omitempty"`
	IncludeInAvg bool            `json:"includeInAvg"`
	SyncBatchID  *string         `json:"syncBatchId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// CreateTransactionParams carries the fields of a transaction to be inserted.
// The store assigns the id and creation timestamp.
type CreateTransactionParams struct {
	ProductID    string
	Type         TxType
	Quantity     decimal.Decimal
	Date         time.Time
	Notes        string
	IncludeInAvg bool
	SyncBatchID  *string
}

// Validate checks the parameters against the ledger's entry rules: IN/OUT
// quantities are non-negative magnitudes, CORRECTION quantities carry their
// own sign and must be non-zero.
func (p CreateTransactionParams) Validate() error {
	if p.ProductID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidTransaction)
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, p.Type)
	}
	if p.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidTransaction)
	}
	switch p.Type {
	case TxIn, TxOut:
		if p.Quantity.IsNegative() {
			return fmt.Errorf("%w: %s quantity must not be negative: %s", ErrInvalidTransaction, p.Type, p.Quantity)
		}
	case TxCorrection:
		if p.Quantity.IsZero() {
			return fmt.Errorf("%w: correction quantity must not be zero", ErrInvalidTransaction)
		}
	}
	return nil
}

// Product is the slice of the product record the ledger core touches.
// CurrentStock and AvgConsumption are derived caches, written only by the
// stock recomputation path; the transaction table stays the source of truth.
type Product struct {
	ID             string          `json:"id"`
	ArtisCodes     []string        `json:"artisCodes"`
	Name           string          `json:"name"`
	CurrentStock   decimal.Decimal `json:"currentStock"`
	AvgConsumption decimal.Decimal `json:"avgConsumption"`
}

// StockFigures holds the two derived figures for one product.
type StockFigures struct {
	CurrentStock   decimal.Decimal `json:"currentStock"`
	AvgConsumption decimal.Decimal `json:"avgConsumption"`
}
