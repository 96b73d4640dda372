package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"artis/internal/domain/sheetsync"
)

type SyncHistoryRepository struct {
	db *DB
}

func NewSyncHistoryRepository(db *DB) *SyncHistoryRepository {
	return &SyncHistoryRepository{db: db}
}

func (r *SyncHistoryRepository) Create(ctx context.Context, record *sheetsync.History) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode sync metadata: %w", err)
	}

	query := `
		INSERT INTO sync_histories (id, sync_batch_id, sync_type, sync_date, item_count, status, errors, warnings, metadata, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err = r.db.QueryRowContext(
		ctx, query,
		uuid.NewString(), record.SyncBatchID, string(record.SyncType), record.SyncDate,
		record.ItemCount, record.Status, pq.Array(record.Errors), pq.Array(record.Warnings),
		metadata, record.UserID,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to create sync history: %w", err)
	}

	return nil
}

func (r *SyncHistoryRepository) List(ctx context.Context, limit, offset int) ([]*sheetsync.History, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_histories`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sync histories: %w", err)
	}

	query := `
		SELECT id, sync_batch_id, sync_type, sync_date, item_count, status, errors, warnings, metadata, user_id
		FROM sync_histories
		ORDER BY sync_date DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sync histories: %w", err)
	}
	defer rows.Close()

	var records []*sheetsync.History
	for rows.Next() {
		record, err := scanHistory(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list sync histories: %w", err)
	}

	return records, total, nil
}

func (r *SyncHistoryRepository) GetByBatchID(ctx context.Context, syncBatchID string) (*sheetsync.History, error) {
	query := `
		SELECT id, sync_batch_id, sync_type, sync_date, item_count, status, errors, warnings, metadata, user_id
		FROM sync_histories
		WHERE sync_batch_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, syncBatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync history: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get sync history: %w", err)
		}
		return nil, nil
	}
	return scanHistory(rows)
}

func scanHistory(rows *sql.Rows) (*sheetsync.History, error) {
	var record sheetsync.History
	var metadata []byte
	if err := rows.Scan(
		&record.ID, &record.SyncBatchID, &record.SyncType, &record.SyncDate,
		&record.ItemCount, &record.Status, pq.Array(&record.Errors),
		pq.Array(&record.Warnings), &metadata, &record.UserID,
	); err != nil {
		return nil, fmt.Errorf("failed to scan sync history: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode sync metadata: %w", err)
		}
	}
	return &record, nil
}
