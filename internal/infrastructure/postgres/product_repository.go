package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"artis/internal/domain/ledger"
)

type ProductRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*ledger.Product, error) {
	query := `
		SELECT id, artis_codes, name, current_stock, avg_consumption
		FROM products
		WHERE id = $1
	`

	var p ledger.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, pq.Array(&p.ArtisCodes), &p.Name, &p.CurrentStock, &p.AvgConsumption,
	)

	if err == sql.ErrNoRows {
		return nil, ledger.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

func (r *ProductRepository) ListAll(ctx context.Context) ([]*ledger.Product, error) {
	query := `
		SELECT id, artis_codes, name, current_stock, avg_consumption
		FROM products
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*ledger.Product
	for rows.Next() {
		var p ledger.Product
		if err := rows.Scan(
			&p.ID, pq.Array(&p.ArtisCodes), &p.Name, &p.CurrentStock, &p.AvgConsumption,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return products, nil
}
