package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragkb/internal/repo"
)

// IngestTaskCleanupJob drops finished ingest task rows once callers have had time to poll them.
type IngestTaskCleanupJob struct {
	tasks  *repo.IngestTaskRepo
	retain time.Duration
}

func NewIngestTaskCleanupJob(tasks *repo.IngestTaskRepo, retain time.Duration) *IngestTaskCleanupJob {
	return &IngestTaskCleanupJob{tasks: tasks, retain: retain}
}

func (j *IngestTaskCleanupJob) Name() string {
	return "ingest_task_cleanup"
}

func (j *IngestTaskCleanupJob) Run(ctx context.Context) error {
	if j.tasks == nil {
		return nil
	}
	retain := j.retain
	if retain <= 0 {
		retain = 7 * 24 * time.Hour
	}
	cutoff := time.Now().Add(-retain).UnixMilli()
	removed, err := j.tasks.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Debug("finished ingest tasks removed", zap.Int64("count", removed))
	return nil
}
