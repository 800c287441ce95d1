package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragkb/internal/ai"
	"github.com/xxxsen/ragkb/internal/filestore"
	"github.com/xxxsen/ragkb/internal/ingest"
	"github.com/xxxsen/ragkb/internal/lifecycle"
	"github.com/xxxsen/ragkb/internal/model"
	"github.com/xxxsen/ragkb/internal/repo"
	"github.com/xxxsen/ragkb/internal/taskqueue"
	"github.com/xxxsen/ragkb/internal/testutil"
	"github.com/xxxsen/ragkb/internal/vectorstore"
)

const testDim = 32

type fixture struct {
	db        *repo.DB
	root      string
	files     filestore.Store
	layout    filestore.Layout
	vectors   vectorstore.Store
	embedder  *testutil.HashEmbedder
	generator *testutil.ScriptedGenerator
	router    *ingest.Router
	queue     taskqueue.Queue
	logs      *repo.QueryLogRepo
	tasks     *repo.IngestTaskRepo
	deleter   *lifecycle.Deleter
	sessions  *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, cleanup := testutil.OpenTestDB(t)
	t.Cleanup(cleanup)
	root := t.TempDir()
	files, err := filestore.NewLocal(root)
	require.NoError(t, err)
	layout := filestore.NewLayout("static", "uploads")
	vectors := vectorstore.NewMemory(testDim)
	sessionRepo := repo.NewSessionRepo(db)
	deleter := lifecycle.NewDeleter(sessionRepo, vectors, time.Second)
	return &fixture{
		db:        db,
		root:      root,
		files:     files,
		layout:    layout,
		vectors:   vectors,
		embedder:  testutil.NewHashEmbedder(testDim),
		generator: &testutil.ScriptedGenerator{Reply: "Revenue grew 12% [1]", Usage: ai.Usage{InputTokens: 120, OutputTokens: 8}},
		router:    ingest.NewRouter(files, layout, vectors),
		queue:     taskqueue.NewMemory(16),
		logs:      repo.NewQueryLogRepo(db),
		tasks:     repo.NewIngestTaskRepo(db),
		deleter:   deleter,
		sessions:  NewSessionService(sessionRepo, repo.NewMessageRepo(db), deleter),
	}
}

func (f *fixture) settings() ai.Settings {
	return ai.Settings{Embedder: f.embedder, Generator: f.generator, TopK: 3}
}

func (f *fixture) queryService(settings ai.Settings) *QueryService {
	return NewQueryService(settings, f.vectors, ai.NewManager(settings.Generator, ai.ManagerConfig{}), f.logs, f.sessions)
}

func (f *fixture) route(t *testing.T, name, text string, category model.Category, sessionID string) {
	t.Helper()
	_, err := f.router.Route(context.Background(), f.settings(), ingest.Request{
		Filename: name, Data: []byte(text), Category: category, SessionID: sessionID,
	})
	require.NoError(t, err)
}

func (f *fixture) countEvents(t *testing.T) int {
	t.Helper()
	n, err := f.logs.CountBetween(context.Background(), 0, time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, err)
	return n
}

func (f *fixture) put(t *testing.T, key, text string) {
	t.Helper()
	require.NoError(t, f.files.Save(context.Background(), key, strings.NewReader(text), int64(len(text))))
}
