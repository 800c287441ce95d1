package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragkb/internal/filestore"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

type Result struct {
	Scanned int      `json:"scanned"`
	Removed int      `json:"removed"`
	Failed  int      `json:"failed"`
	Expired []string `json:"expired"`
}

// Reaper removes expired session folders together with their vectors and registry rows.
type Reaper struct {
	registry SessionRegistry
	vectors  VectorIndex
	files    FileTree
	layout   filestore.Layout
	now      func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewReaper(registry SessionRegistry, vectors VectorIndex, files FileTree, layout filestore.Layout) *Reaper {
	return &Reaper{registry: registry, vectors: vectors, files: files, layout: layout, now: time.Now}
}

type step struct {
	name string
	fn   func(ctx context.Context, sessionID string) error
}

func (r *Reaper) steps() []step {
	return []step{
		{name: "vectors", fn: r.vectors.DeleteBySession},
		{name: "files", fn: func(ctx context.Context, sessionID string) error {
			prefix, err := r.layout.SessionPrefix(sessionID)
			if err != nil {
				return err
			}
			return r.files.RemoveAll(ctx, prefix)
		}},
		{name: "registry", fn: r.registry.Delete},
	}
}

// Reap scans every session folder under the upload root. A folder is expired when its
// age, taken from registry activity or else the folder mtime, exceeds maxAge. Force
// clears all sessions and messages first and treats every folder as expired.
// Failures are counted per candidate and never stop the run.
func (r *Reaper) Reap(ctx context.Context, maxAge time.Duration, force bool) (*Result, error) {
	logger := logutil.GetLogger(ctx).With(zap.Duration("max_age", maxAge), zap.Bool("force", force))
	if force {
		maxAge = 0
		if err := r.registry.ClearAll(ctx); err != nil {
			logger.Error("clear session history failed", zap.Error(err))
		}
	}
	dirs, err := r.files.ListDirs(ctx, r.layout.UploadPrefix)
	if err != nil {
		return nil, fmt.Errorf("list session folders: %w", err)
	}
	now := r.now()
	res := &Result{Expired: make([]string, 0)}
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Scanned++
		age, source := r.age(ctx, dir, now)
		if !force && age <= maxAge {
			continue
		}
		res.Expired = append(res.Expired, dir.Name)
		logger.Info("session expired, cleaning up",
			zap.String("session_id", dir.Name), zap.String("age_source", source), zap.Duration("age", age))
		if err := r.remove(ctx, dir.Name); err != nil {
			res.Failed++
			logger.Error("cleanup session failed", zap.String("session_id", dir.Name), zap.Error(err))
			continue
		}
		res.Removed++
	}
	logger.Info("session reap finished", zap.Int("scanned", res.Scanned), zap.Int("removed", res.Removed), zap.Int("failed", res.Failed))
	return res, nil
}

func (r *Reaper) age(ctx context.Context, dir filestore.DirInfo, now time.Time) (time.Duration, string) {
	ts, ok, err := r.registry.LastActive(ctx, dir.Name)
	if err != nil {
		logutil.GetLogger(ctx).Warn("read session activity failed, using folder mtime",
			zap.String("session_id", dir.Name), zap.Error(err))
	}
	if err == nil && ok && ts > 0 {
		return now.Sub(time.UnixMilli(ts)), "registry"
	}
	return now.Sub(dir.ModTime), "mtime"
}

// remove runs the cleanup steps in order. Each step is idempotent, so a candidate that
// fails halfway is picked up again by the next run.
func (r *Reaper) remove(ctx context.Context, sessionID string) error {
	for _, s := range r.steps() {
		if err := s.fn(ctx, sessionID); err != nil {
			return fmt.Errorf("%s step: %w: %w", s.name, appErr.ErrPartialCleanup, err)
		}
	}
	return nil
}

// Trigger starts a reap off the caller's path and returns at once. It reports false,
// starting nothing, when a triggered run is still in progress.
func (r *Reaper) Trigger(ctx context.Context, maxAge time.Duration, force bool) bool {
	if !r.running.CompareAndSwap(false, true) {
		return false
	}
	bctx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)
		if _, err := r.Reap(bctx, maxAge, force); err != nil {
			logutil.GetLogger(bctx).Error("background session reap failed", zap.Error(err))
		}
	}()
	return true
}

// Wait blocks until triggered runs have returned.
func (r *Reaper) Wait() {
	r.wg.Wait()
}
