package sheetsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncType names the four external-row categories.
type SyncType string

const (
	SyncConsumption  SyncType = "consumption"
	SyncPurchases    SyncType = "purchases"
	SyncCorrections  SyncType = "corrections"
	SyncInitialStock SyncType = "initialStock"
)

// IsValid reports whether t is a known sync category.
func (t SyncType) IsValid() bool {
	switch t {
	case SyncConsumption, SyncPurchases, SyncCorrections, SyncInitialStock:
		return true
	}
	return false
}

// Batch statuses. A history record is written once and never edited, except
// for the completed -> undone transition performed by an undo.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusUndone    = "undone"
)

// History is one append-only audit record per batch attempt, written on both
// the success and failure paths. It links to the batch's transactions only
// through the shared SyncBatchID string, deliberately loose so the audit
// trail survives transaction purges.
type History struct {
	ID          string            `json:"id"`
	SyncBatchID string            `json:"syncBatchId"`
	SyncType    SyncType          `json:"syncType"`
	SyncDate    time.Time         `json:"syncDate"`
	ItemCount   int               `json:"itemCount"`
	Status      string            `json:"status"`
	Errors      []string          `json:"errors,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Metadata    map[string]int    `json:"metadata,omitempty"`
	UserID      string            `json:"userId,omitempty"`
}

// HistoryRepository persists and lists batch audit records.
type HistoryRepository interface {
	Create(ctx context.Context, record *History) error
	List(ctx context.Context, limit, offset int) ([]*History, int64, error)
	GetByBatchID(ctx context.Context, syncBatchID string) (*History, error)
}

// NewBatchID builds a human-diagnosable batch identifier: the category, a
// UTC timestamp and a short random suffix, e.g.
// "purchases-20240315T091204-3f9c2a1b".
func NewBatchID(syncType SyncType) string {
	return fmt.Sprintf("%s-%s-%s",
		syncType,
		time.Now().UTC().Format("20060102T150405"),
		uuid.NewString()[:8],
	)
}

// Result is what a batch returns to its caller.
type Result struct {
	Added    int      `json:"added"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
