package sheetsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"artis/internal/domain/ledger"
)

var (
	ErrBatchNotFound = errors.New("sync batch not found")
	ErrAlreadyUndone = errors.New("sync batch already undone")
	ErrNothingToUndo = errors.New("sync batch created no transactions")
)

// Undo reverses a previously applied batch: every transaction carrying the
// batch id is deleted, the affected products are recomputed from the
// remaining ledger, and the history record is marked undone. The reversal is
// a single database transaction.
func (e *Engine) Undo(ctx context.Context, syncBatchID string) (*ledger.UndoBatchResult, error) {
	record, err := e.history.GetByBatchID(ctx, syncBatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync history: %w", err)
	}
	if record == nil {
		return nil, ErrBatchNotFound
	}
	if record.Status == StatusUndone {
		return nil, ErrAlreadyUndone
	}
	if record.ItemCount == 0 {
		return nil, ErrNothingToUndo
	}

	result, err := e.store.UndoBatch(ctx, syncBatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to undo batch %s: %w", syncBatchID, err)
	}

	logrus.WithFields(logrus.Fields{
		"batchId":    syncBatchID,
		"deleted":    result.TransactionsDeleted,
		"recomputed": result.ProductsRecomputed,
	}).Info("sync batch undone")

	return result, nil
}
