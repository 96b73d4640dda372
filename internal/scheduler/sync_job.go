package scheduler

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"artis/internal/domain/sheetsync"
)

// schedulerUserID marks batches initiated by the scheduler rather than an
// operator.
const schedulerUserID = "scheduler"

// SyncJob runs one category's sheet sync and, when rows were added,
// archives and clears the sheet the way the HTTP path does.
type SyncJob struct {
	syncType sheetsync.SyncType
	engine   *sheetsync.Engine
	archiver *sheetsync.Archiver
}

func NewSyncJob(syncType sheetsync.SyncType, engine *sheetsync.Engine, archiver *sheetsync.Archiver) *SyncJob {
	return &SyncJob{syncType: syncType, engine: engine, archiver: archiver}
}

func (j *SyncJob) Description() string {
	return fmt.Sprintf("sheet sync (%s)", j.syncType)
}

func (j *SyncJob) Execute(ctx context.Context) error {
	var result *sheetsync.Result
	var err error

	switch j.syncType {
	case sheetsync.SyncConsumption:
		result, err = j.engine.SyncConsumption(ctx, schedulerUserID)
	case sheetsync.SyncPurchases:
		result, err = j.engine.SyncPurchases(ctx, schedulerUserID)
	case sheetsync.SyncCorrections:
		result, err = j.engine.SyncCorrections(ctx, schedulerUserID)
	case sheetsync.SyncInitialStock:
		result, err = j.engine.SyncInitialStock(ctx, schedulerUserID)
	default:
		return fmt.Errorf("unknown sync type: %s", j.syncType)
	}
	if err != nil {
		return err
	}

	if result.Added > 0 {
		if _, err := j.archiver.ArchiveAndClear(ctx, j.syncType, ""); err != nil {
			// The batch is committed; only the cleanup failed.
			logrus.WithError(err).WithField("syncType", j.syncType).Error("post-sync archive failed")
		}
	}

	return nil
}

// SyncJobs builds one job per category in the order they should run.
// Initial stock runs last so level reconciliation sees the day's movements.
func SyncJobs(engine *sheetsync.Engine, archiver *sheetsync.Archiver) []Job {
	types := []sheetsync.SyncType{
		sheetsync.SyncConsumption,
		sheetsync.SyncPurchases,
		sheetsync.SyncCorrections,
		sheetsync.SyncInitialStock,
	}
	jobs := make([]Job, 0, len(types))
	for _, t := range types {
		jobs = append(jobs, NewSyncJob(t, engine, archiver))
	}
	return jobs
}
