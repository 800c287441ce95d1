package job

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragkb/internal/filestore"
	"github.com/xxxsen/ragkb/internal/lifecycle"
	"github.com/xxxsen/ragkb/internal/model"
	"github.com/xxxsen/ragkb/internal/repo"
	"github.com/xxxsen/ragkb/internal/testutil"
	"github.com/xxxsen/ragkb/internal/vectorstore"
)

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	cache := repo.NewEmbeddingCacheRepo(db)
	ctx := context.Background()
	old := time.Now().Add(-40 * 24 * time.Hour).Unix()
	require.NoError(t, cache.Save(ctx, &model.CachedEmbedding{Model: "m", TaskType: "t", ContentHash: "old", Vector: []float32{1}, Ctime: old}))
	require.NoError(t, cache.Save(ctx, &model.CachedEmbedding{Model: "m", TaskType: "t", ContentHash: "new", Vector: []float32{1}, Ctime: time.Now().Unix()}))

	require.NoError(t, NewEmbeddingCacheCleanupJob(cache, 30).Run(ctx))
	_, ok, err := cache.Get(ctx, "m", "t", "old")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = cache.Get(ctx, "m", "t", "new")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIngestTaskCleanupJob(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	tasks := repo.NewIngestTaskRepo(db)
	ctx := context.Background()
	old := time.Now().Add(-8 * 24 * time.Hour).UnixMilli()
	for _, task := range []*model.IngestTask{
		{ID: "done-old", Filename: "a.txt", Category: model.CategoryUser, Status: model.TaskStatusSuccess, Ctime: old, Mtime: old},
		{ID: "pending-old", Filename: "b.txt", Category: model.CategoryUser, Status: model.TaskStatusPending, Ctime: old, Mtime: old},
		{ID: "done-new", Filename: "c.txt", Category: model.CategoryUser, Status: model.TaskStatusFailure, Ctime: time.Now().UnixMilli(), Mtime: time.Now().UnixMilli()},
	} {
		require.NoError(t, tasks.Create(ctx, task))
	}

	require.NoError(t, NewIngestTaskCleanupJob(tasks, 0).Run(ctx))
	_, err := tasks.Get(ctx, "done-old")
	require.Error(t, err)
	_, err = tasks.Get(ctx, "pending-old")
	require.NoError(t, err)
	_, err = tasks.Get(ctx, "done-new")
	require.NoError(t, err)
}

func TestSessionReaperJob(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	root := t.TempDir()
	files, err := filestore.NewLocal(root)
	require.NoError(t, err)
	layout := filestore.NewLayout("static", "uploads")
	for _, sessionID := range []string{"old", "recent"} {
		key, err := layout.UploadKey(sessionID, "notes.txt")
		require.NoError(t, err)
		require.NoError(t, files.Save(ctx, key, strings.NewReader("hello"), 5))
	}
	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "uploads", "old"), old, old))

	reaper := lifecycle.NewReaper(repo.NewSessionRepo(db), vectorstore.NewMemory(2), files, layout)
	job := NewSessionReaperJob(reaper, 21*24*time.Hour)
	require.Equal(t, "session_reaper", job.Name())
	require.NoError(t, job.Run(ctx))
	_, err = os.Stat(filepath.Join(root, "uploads", "old"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "uploads", "recent"))
	require.NoError(t, err)

	require.NoError(t, job.Run(ctx))
}
