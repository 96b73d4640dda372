package sheetsync

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const archivePrefix = "Archive_"

var archiveLabelRe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Archiver snapshots a live sheet into a new tab and clears the data rows,
// which is how a successful sync is made safe to re-run.
type Archiver struct {
	grid    Grid
	sources Sources
	now     func() time.Time
}

func NewArchiver(grid Grid, sources Sources) *Archiver {
	return &Archiver{grid: grid, sources: sources, now: time.Now}
}

// archiveTabName derives the tab title from the caller's label, or falls
// back to a timestamped default. Label characters outside [A-Za-z0-9] are
// removed so the result is always a valid tab title.
func (a *Archiver) archiveTabName(label string) string {
	label = archiveLabelRe.ReplaceAllString(label, "")
	if label == "" {
		return archivePrefix + a.now().Format("20060102_150405")
	}
	return label + "_Archive"
}

// ArchiveAndClear copies the sheet's full contents (header included) into a
// new tab, then clears the data rows of the live sheet. The clear only runs
// after the snapshot succeeds; on any failure the live rows are untouched.
// A sheet holding only its header row is left alone.
func (a *Archiver) ArchiveAndClear(ctx context.Context, syncType SyncType, label string) (string, error) {
	src, err := a.sources.lookup(syncType)
	if err != nil {
		return "", err
	}

	rows, err := a.grid.Read(ctx, src.SpreadsheetID, src.FullRange)
	if err != nil {
		return "", fmt.Errorf("failed to read %s sheet for archiving: %w", syncType, err)
	}
	if len(rows) <= 1 {
		return "", nil
	}

	tabName := a.archiveTabName(label)
	if err := a.grid.CreateTab(ctx, src.SpreadsheetID, tabName); err != nil {
		return "", fmt.Errorf("failed to create archive tab %s: %w", tabName, err)
	}
	if err := a.grid.Update(ctx, src.SpreadsheetID, tabName+"!A1", rows); err != nil {
		return "", fmt.Errorf("failed to copy rows into archive tab %s: %w", tabName, err)
	}
	if err := a.grid.Clear(ctx, src.SpreadsheetID, src.ClearRange); err != nil {
		return "", fmt.Errorf("failed to clear %s sheet after archiving: %w", syncType, err)
	}

	logrus.WithFields(logrus.Fields{
		"syncType": syncType,
		"tab":      tabName,
		"rows":     len(rows) - 1,
	}).Info("sheet archived and cleared")

	return tabName, nil
}

// ListArchives returns the spreadsheet's timestamped archive tabs, newest
// first. Tabs named by the caller are not listed.
func (a *Archiver) ListArchives(ctx context.Context, syncType SyncType) ([]string, error) {
	src, err := a.sources.lookup(syncType)
	if err != nil {
		return nil, err
	}

	tabs, err := a.grid.ListTabNames(ctx, src.SpreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s tabs: %w", syncType, err)
	}

	archives := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		if strings.HasPrefix(tab, archivePrefix) {
			archives = append(archives, tab)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(archives)))
	return archives, nil
}
