package job

import (
	"context"
	"time"

	"github.com/xxxsen/ragkb/internal/lifecycle"
)

type SessionReaperJob struct {
	reaper *lifecycle.Reaper
	maxAge time.Duration
}

func NewSessionReaperJob(reaper *lifecycle.Reaper, maxAge time.Duration) *SessionReaperJob {
	return &SessionReaperJob{reaper: reaper, maxAge: maxAge}
}

func (j *SessionReaperJob) Name() string {
	return "session_reaper"
}

func (j *SessionReaperJob) Run(ctx context.Context) error {
	_, err := j.reaper.Reap(ctx, j.maxAge, false)
	return err
}
