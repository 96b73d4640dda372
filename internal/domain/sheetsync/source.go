package sheetsync

import (
	"context"
	"fmt"
	"strings"
)

// Grid is the external tabular source as the sync core sees it: an untyped
// grid of cells addressed by spreadsheet id and A1 range. All type coercion
// happens on this side of the boundary; credential handling lives with the
// implementation.
type Grid interface {
	Read(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
	Update(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error
	Append(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error
	Clear(ctx context.Context, spreadsheetID, clearRange string) error
	CreateTab(ctx context.Context, spreadsheetID, title string) error
	ListTabNames(ctx context.Context, spreadsheetID string) ([]string, error)
}

// Source addresses one category's live sheet. The read range is bounded but
// generously large because the sheet has no reliable row count.
type Source struct {
	SpreadsheetID string
	// DataRange covers the data rows (header excluded), e.g. "Sheet1!A2:E10000".
	DataRange string
	// FullRange covers header plus data, used by archiving.
	FullRange string
	// ClearRange is cleared after archiving, leaving the header row.
	ClearRange string
}

// Sources maps each sync category to its live sheet.
type Sources map[SyncType]Source

func (s Sources) lookup(syncType SyncType) (Source, error) {
	src, ok := s[syncType]
	if !ok || src.SpreadsheetID == "" {
		return Source{}, fmt.Errorf("no sheet configured for sync type %q", syncType)
	}
	return src, nil
}

// cell returns the trimmed string form of row[idx], tolerating short rows
// and non-string cells (the sheet API hands back untyped values).
func cell(row []interface{}, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

// isPlaceholderRow reports whether the row is part of the sheet template
// rather than operator data.
func isPlaceholderRow(code string) bool {
	return strings.Contains(code, "Example:") || strings.Contains(code, "Instructions:")
}
