package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragkb/internal/ai"
	"github.com/xxxsen/ragkb/internal/extract"
	"github.com/xxxsen/ragkb/internal/filestore"
	"github.com/xxxsen/ragkb/internal/ingest"
	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
	"github.com/xxxsen/ragkb/internal/pkg/timeutil"
	"github.com/xxxsen/ragkb/internal/repo"
	"github.com/xxxsen/ragkb/internal/taskqueue"
)

type UploadRequest struct {
	Filename  string
	Data      []byte
	Category  model.Category
	SessionID string
}

type StaticIngestResult struct {
	Files  int `json:"files"`
	Chunks int `json:"chunks"`
	Failed int `json:"failed"`
}

// IngestService admits uploads, queues them and runs the queued work. It is the
// handler of the worker pool.
type IngestService struct {
	router    *ingest.Router
	files     filestore.Store
	layout    filestore.Layout
	tasks     *repo.IngestTaskRepo
	queue     taskqueue.Queue
	gate      *taskqueue.Gate
	settings  ai.Settings
	maxUpload int64
}

func NewIngestService(router *ingest.Router, files filestore.Store, layout filestore.Layout, tasks *repo.IngestTaskRepo, queue taskqueue.Queue, gate *taskqueue.Gate, settings ai.Settings, maxUpload int64) *IngestService {
	return &IngestService{
		router:    router,
		files:     files,
		layout:    layout,
		tasks:     tasks,
		queue:     queue,
		gate:      gate,
		settings:  settings,
		maxUpload: maxUpload,
	}
}

// Submit stores the upload and queues it for indexing. Format and backlog checks run
// before anything is written.
func (s *IngestService) Submit(ctx context.Context, req UploadRequest) (*model.IngestTask, error) {
	if err := ingest.Validate(req.Filename); err != nil {
		return nil, err
	}
	if s.maxUpload > 0 && int64(len(req.Data)) > s.maxUpload {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", s.maxUpload, appErr.ErrInvalid)
	}
	if req.Category == "" {
		req.Category = model.CategoryUser
	}
	if err := s.gate.Admit(ctx); err != nil {
		return nil, err
	}
	target, err := s.router.Place(ctx, ingest.Request{
		Filename:  req.Filename,
		Data:      req.Data,
		Category:  req.Category,
		SessionID: req.SessionID,
	})
	if err != nil {
		return nil, err
	}
	now := timeutil.NowMillis()
	task := &model.IngestTask{
		ID:        newTaskID(),
		Filename:  target.Filename,
		Category:  req.Category,
		SessionID: target.Policy.SessionID,
		Status:    model.TaskStatusPending,
		Ctime:     now,
		Mtime:     now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	msg := &taskqueue.Message{
		TaskID:    task.ID,
		Key:       target.Key,
		Filename:  target.Filename,
		Category:  req.Category,
		SessionID: target.Policy.SessionID,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		s.markFailed(ctx, task.ID, 0, err)
		return nil, err
	}
	logutil.GetLogger(ctx).Info("ingest task queued",
		zap.String("task_id", task.ID), zap.String("key", target.Key))
	return task, nil
}

func (s *IngestService) Task(ctx context.Context, taskID string) (*model.IngestTask, error) {
	return s.tasks.Get(ctx, taskID)
}

// Handle runs one indexing attempt for a queued upload.
func (s *IngestService) Handle(ctx context.Context, msg *taskqueue.Message, attempt int) error {
	if err := s.tasks.UpdateStatus(ctx, msg.TaskID, model.TaskStatusStarted, attempt, 0, "", timeutil.NowMillis()); err != nil {
		logutil.GetLogger(ctx).Warn("mark task started failed", zap.String("task_id", msg.TaskID), zap.Error(err))
	}
	target, err := s.router.Resolve(ctx, msg.Filename, msg.Category, msg.SessionID)
	if err != nil {
		return err
	}
	if target.Key != msg.Key {
		return fmt.Errorf("queued key %s does not match %s: %w", msg.Key, target.Key, appErr.ErrInvalid)
	}
	chunks, err := s.router.Index(ctx, s.settings, target)
	if err != nil {
		return err
	}
	// The chunks are stored; a retry here would index the file twice.
	if err := s.tasks.UpdateStatus(ctx, msg.TaskID, model.TaskStatusSuccess, attempt, len(chunks), "", timeutil.NowMillis()); err != nil {
		logutil.GetLogger(ctx).Error("mark task succeeded failed",
			zap.String("task_id", msg.TaskID), zap.Int("chunks", len(chunks)), zap.Error(err))
	}
	return nil
}

// Finish records a task that ran out of attempts. The stored file stays in place.
func (s *IngestService) Finish(ctx context.Context, msg *taskqueue.Message, attempts int, err error) {
	if err == nil {
		return
	}
	s.markFailed(ctx, msg.TaskID, attempts, err)
}

func (s *IngestService) markFailed(ctx context.Context, taskID string, attempts int, cause error) {
	if err := s.tasks.UpdateStatus(ctx, taskID, model.TaskStatusFailure, attempts, 0, cause.Error(), timeutil.NowMillis()); err != nil {
		logutil.GetLogger(ctx).Error("mark task failed failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

// IngestStatic indexes every supported file already under the static root. Running it
// twice indexes the files twice.
func (s *IngestService) IngestStatic(ctx context.Context) (*StaticIngestResult, error) {
	files, err := s.files.Walk(ctx, s.layout.StaticPrefix)
	if err != nil {
		return nil, fmt.Errorf("list static files: %w", err)
	}
	logger := logutil.GetLogger(ctx)
	res := &StaticIngestResult{}
	for _, f := range files {
		if !extract.Supported(f.Name()) || f.Key != s.layout.StaticPrefix+"/"+f.Name() {
			continue
		}
		res.Files++
		target, err := s.router.Resolve(ctx, f.Name(), model.CategoryStatic, "")
		if err == nil {
			var chunks []model.Chunk
			chunks, err = s.router.Index(ctx, s.settings, target)
			res.Chunks += len(chunks)
		}
		if err != nil {
			res.Failed++
			logger.Error("ingest static file failed", zap.String("key", f.Key), zap.Error(err))
			if errors.Is(err, appErr.ErrAIUnavailable) {
				return res, err
			}
			continue
		}
		logger.Info("static file ingested", zap.String("key", f.Key))
	}
	return res, nil
}
