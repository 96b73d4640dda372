package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Service exposes the ledger operations that are callable outside a sheet
// sync batch: manual transaction entry and standalone recomputation. Both
// paths funnel through the same store so cache figures always come from the
// full transaction log.
type Service struct {
	store    Store
	products ProductRepository
}

func NewService(store Store, products ProductRepository) *Service {
	return &Service{store: store, products: products}
}

// RecordTransaction validates and inserts one manually entered transaction.
// The store recomputes the product's cache figures in the same database
// transaction, so a successful return means the cache is current.
func (s *Service) RecordTransaction(ctx context.Context, params CreateTransactionParams) (*Transaction, error) {
	// Ledger quantities carry two fractional digits.
	params.Quantity = params.Quantity.Round(2)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, params.ProductID); err != nil {
		return nil, err
	}

	tx, err := s.store.CreateTransaction(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"productId": tx.ProductID,
		"type":      tx.Type,
		"quantity":  tx.Quantity,
	}).Info("recorded manual transaction")

	return tx, nil
}

// Recompute re-derives one product's stock and average-consumption figures
// from its complete transaction history and writes them to the cache fields.
func (s *Service) Recompute(ctx context.Context, productID string) (StockFigures, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return StockFigures{}, err
	}
	return s.store.RecomputeProduct(ctx, productID, true)
}

// ListTransactions returns a page of a product's transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, productID string, limit, offset int) ([]*Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByProduct(ctx, productID, limit, offset)
}
