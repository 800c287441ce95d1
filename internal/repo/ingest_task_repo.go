package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

var ingestTaskFields = []string{"id", "filename", "category", "session_id", "status", "attempts", "chunks", "error", "ctime", "mtime"}

type IngestTaskRepo struct {
	db *DB
}

func NewIngestTaskRepo(db *DB) *IngestTaskRepo {
	return &IngestTaskRepo{db: db}
}

func (r *IngestTaskRepo) Create(ctx context.Context, task *model.IngestTask) error {
	data := map[string]interface{}{
		"id":         task.ID,
		"filename":   task.Filename,
		"category":   string(task.Category),
		"session_id": task.SessionID,
		"status":     task.Status,
		"attempts":   task.Attempts,
		"chunks":     task.Chunks,
		"error":      task.Error,
		"ctime":      task.Ctime,
		"mtime":      task.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("ingest_tasks", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, sqlStr, args...)
	return err
}

func (r *IngestTaskRepo) Get(ctx context.Context, id string) (*model.IngestTask, error) {
	sqlStr, args, err := builder.BuildSelect("ingest_tasks", map[string]interface{}{"id": id}, ingestTaskFields)
	if err != nil {
		return nil, err
	}
	var task model.IngestTask
	var category string
	err = r.db.queryRow(ctx, sqlStr, args...).Scan(&task.ID, &task.Filename, &category, &task.SessionID,
		&task.Status, &task.Attempts, &task.Chunks, &task.Error, &task.Ctime, &task.Mtime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	task.Category = model.Category(category)
	return &task, nil
}

func (r *IngestTaskRepo) UpdateStatus(ctx context.Context, id, status string, attempts, chunks int, errMsg string, mtime int64) error {
	update := map[string]interface{}{
		"status":   status,
		"attempts": attempts,
		"chunks":   chunks,
		"error":    errMsg,
		"mtime":    mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("ingest_tasks", map[string]interface{}{"id": id}, update)
	if err != nil {
		return err
	}
	res, err := r.db.exec(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// CountPending counts tasks that have not reached a terminal status.
func (r *IngestTaskRepo) CountPending(ctx context.Context) (int, error) {
	where := map[string]interface{}{
		"status in": []interface{}{model.TaskStatusPending, model.TaskStatusStarted},
	}
	sqlStr, args, err := builder.BuildSelect("ingest_tasks", where, []string{"COUNT(1)"})
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.queryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteFinishedBefore drops terminal task rows last touched before cutoff.
func (r *IngestTaskRepo) DeleteFinishedBefore(ctx context.Context, cutoff int64) (int64, error) {
	where := map[string]interface{}{
		"status in": []interface{}{model.TaskStatusSuccess, model.TaskStatusFailure},
		"mtime <":   cutoff,
	}
	sqlStr, args, err := builder.BuildDelete("ingest_tasks", where)
	if err != nil {
		return 0, err
	}
	res, err := r.db.exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
