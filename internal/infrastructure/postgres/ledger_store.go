package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"artis/internal/domain/ledger"
)

// LedgerStore is the ledger.Store implementation. Anything that touches both
// the transaction log and the cached product figures runs inside a single
// database transaction: the log is the source of truth and the cache must
// never drift from it.
type LedgerStore struct {
	db *DB
}

func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// querier is satisfied by both *DB and *Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *tracedRow
}

const insertTransactionQuery = `
	INSERT INTO transactions (id, product_id, type, quantity, date, notes, include_in_avg, sync_batch_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, product_id, type, quantity, date, notes, include_in_avg, sync_batch_id, created_at
`

func insertTransaction(ctx context.Context, q querier, params ledger.CreateTransactionParams) (*ledger.Transaction, error) {
	var t ledger.Transaction
	err := q.QueryRowContext(
		ctx, insertTransactionQuery,
		uuid.NewString(), params.ProductID, string(params.Type), params.Quantity,
		params.Date, params.Notes, params.IncludeInAvg, params.SyncBatchID,
	).Scan(
		&t.ID, &t.ProductID, &t.Type, &t.Quantity, &t.Date, &t.Notes,
		&t.IncludeInAvg, &t.SyncBatchID, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return &t, nil
}

// recompute re-derives a product's figures from the full transaction log and
// writes them back. Stock is the signed sum over every transaction; the
// average divides flagged OUT volume by the number of distinct calendar
// months it spans. Rounding to two decimals happens here, at the cache edge,
// never mid-sum.
func recompute(ctx context.Context, q querier, productID string, updateAvg bool) (ledger.StockFigures, error) {
	var figures ledger.StockFigures

	stockQuery := `
		SELECT COALESCE(SUM(CASE
			WHEN type = 'IN' THEN quantity
			WHEN type = 'OUT' THEN -quantity
			WHEN type = 'CORRECTION' THEN quantity
		END), 0)
		FROM transactions
		WHERE product_id = $1
	`
	if err := q.QueryRowContext(ctx, stockQuery, productID).Scan(&figures.CurrentStock); err != nil {
		return figures, fmt.Errorf("failed to compute stock for product %s: %w", productID, err)
	}
	figures.CurrentStock = figures.CurrentStock.Round(2)

	if !updateAvg {
		res, err := q.ExecContext(
			ctx,
			`UPDATE products SET current_stock = $1, updated_at = NOW() WHERE id = $2`,
			figures.CurrentStock, productID,
		)
		if err != nil {
			return figures, fmt.Errorf("failed to update product %s: %w", productID, err)
		}
		return figures, requireProduct(res, productID)
	}

	avgQuery := `
		SELECT
			COALESCE(SUM(quantity), 0),
			COUNT(DISTINCT DATE_TRUNC('month', date))
		FROM transactions
		WHERE product_id = $1 AND type = 'OUT' AND include_in_avg = TRUE
	`
	var total decimal.Decimal
	var months int64
	if err := q.QueryRowContext(ctx, avgQuery, productID).Scan(&total, &months); err != nil {
		return figures, fmt.Errorf("failed to compute average for product %s: %w", productID, err)
	}
	if months > 0 {
		figures.AvgConsumption = total.Div(decimal.NewFromInt(months)).Round(2)
	}

	res, err := q.ExecContext(
		ctx,
		`UPDATE products SET current_stock = $1, avg_consumption = $2, updated_at = NOW() WHERE id = $3`,
		figures.CurrentStock, figures.AvgConsumption, productID,
	)
	if err != nil {
		return figures, fmt.Errorf("failed to update product %s: %w", productID, err)
	}
	return figures, requireProduct(res, productID)
}

func requireProduct(res sql.Result, productID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of product %s: %w", productID, err)
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", productID, ledger.ErrProductNotFound)
	}
	return nil
}

func (s *LedgerStore) CreateTransaction(ctx context.Context, params ledger.CreateTransactionParams) (*ledger.Transaction, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	created, err := insertTransaction(ctx, tx, params)
	if err != nil {
		return nil, err
	}
	if _, err := recompute(ctx, tx, params.ProductID, true); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

func (s *LedgerStore) ApplyBatch(ctx context.Context, params ledger.ApplyBatchParams) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range params.Transactions {
		if _, err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, productID := range params.TouchedProductIDs {
		if _, err := recompute(ctx, tx, productID, params.UpdateAvg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *LedgerStore) RecomputeProduct(ctx context.Context, productID string, updateAvg bool) (ledger.StockFigures, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return ledger.StockFigures{}, err
	}
	defer tx.Rollback()

	figures, err := recompute(ctx, tx, productID, updateAvg)
	if err != nil {
		return ledger.StockFigures{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.StockFigures{}, fmt.Errorf("failed to commit recompute: %w", err)
	}
	return figures, nil
}

// ClearLedger deletes every transaction and zeroes all cached product
// figures in one database transaction. Maintenance operation for wiping an
// environment; not part of ledger.Store.
func (s *LedgerStore) ClearLedger(ctx context.Context) (transactionsDeleted, productsReset int64, err error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	transactionsDeleted, _ = res.RowsAffected()

	res, err = tx.ExecContext(
		ctx,
		`UPDATE products SET current_stock = 0, avg_consumption = 0, updated_at = NOW()`,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to reset product figures: %w", err)
	}
	productsReset, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit clear: %w", err)
	}
	return transactionsDeleted, productsReset, nil
}

func (s *LedgerStore) UndoBatch(ctx context.Context, syncBatchID string) (*ledger.UndoBatchResult, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(
		ctx,
		`DELETE FROM transactions WHERE sync_batch_id = $1 RETURNING product_id`,
		syncBatchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete batch transactions: %w", err)
	}

	result := &ledger.UndoBatchResult{}
	touched := map[string]struct{}{}
	for rows.Next() {
		var productID string
		if err := rows.Scan(&productID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan deleted transaction: %w", err)
		}
		result.TransactionsDeleted++
		touched[productID] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to delete batch transactions: %w", err)
	}

	for productID := range touched {
		if _, err := recompute(ctx, tx, productID, true); err != nil {
			return nil, err
		}
		result.ProductsRecomputed++
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE sync_histories SET status = 'undone' WHERE sync_batch_id = $1`,
		syncBatchID,
	); err != nil {
		return nil, fmt.Errorf("failed to mark sync history undone: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit undo: %w", err)
	}
	return result, nil
}

func (s *LedgerStore) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*ledger.Transaction, error) {
	query := `
		SELECT id, product_id, type, quantity, date, notes, include_in_avg, sync_batch_id, created_at
		FROM transactions
		WHERE product_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, productID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		if err := rows.Scan(
			&t.ID, &t.ProductID, &t.Type, &t.Quantity, &t.Date, &t.Notes,
			&t.IncludeInAvg, &t.SyncBatchID, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return transactions, nil
}
