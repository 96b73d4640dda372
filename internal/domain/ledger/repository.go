package ledger

import (
	"context"
	"errors"
)

var (
	// ErrProductNotFound is returned when a product id does not resolve.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidTransaction wraps every entry-rule violation so callers can
	// distinguish bad input from storage failures.
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// ApplyBatchParams is the unit of work for one sync batch: the transactions
// to insert plus the set of products whose cache figures must be recomputed
// afterwards. The store applies the whole batch in a single database
// transaction.
type ApplyBatchParams struct {
	Transactions []CreateTransactionParams
	// TouchedProductIDs lists every distinct product the batch affects.
	TouchedProductIDs []string
	// UpdateAvg recomputes avgConsumption alongside currentStock. Set for
	// consumption and initial-stock batches; purchases and corrections only
	// move stock.
	UpdateAvg bool
}

// UndoBatchResult reports what an undone sync batch removed.
type UndoBatchResult struct {
	TransactionsDeleted int64
	ProductsRecomputed  int
}

// Store is the ledger's persistence boundary.
type Store interface {
	// CreateTransaction inserts one manually entered transaction and
	// recomputes the product's cache figures in the same database
	// transaction.
	CreateTransaction(ctx context.Context, params CreateTransactionParams) (*Transaction, error)

	// ApplyBatch bulk-inserts a sync batch's transactions and recomputes
	// every touched product, all inside one database transaction. Either
	// everything persists or nothing does.
	ApplyBatch(ctx context.Context, params ApplyBatchParams) error

	// RecomputeProduct re-derives a product's cache figures from the full
	// transaction log and writes them back, returning what was written.
	RecomputeProduct(ctx context.Context, productID string, updateAvg bool) (StockFigures, error)

	// UndoBatch deletes every transaction carrying the given sync batch id,
	// marks the matching sync-history record undone and recomputes the
	// affected products, atomically.
	UndoBatch(ctx context.Context, syncBatchID string) (*UndoBatchResult, error)

	// ListByProduct returns a product's transactions, newest first.
	ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*Transaction, error)
}

// ProductRepository is the read/resolve surface the core needs from the
// product table. Product CRUD itself lives elsewhere.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// ListAll returns every product with its alias codes; used to rebuild
	// the per-batch resolver cache.
	ListAll(ctx context.Context) ([]*Product, error)
}
