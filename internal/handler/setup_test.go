package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/ragkb/internal/ai"
	"github.com/xxxsen/ragkb/internal/analytics"
	"github.com/xxxsen/ragkb/internal/filestore"
	"github.com/xxxsen/ragkb/internal/handler"
	"github.com/xxxsen/ragkb/internal/ingest"
	"github.com/xxxsen/ragkb/internal/lifecycle"
	"github.com/xxxsen/ragkb/internal/middleware"
	"github.com/xxxsen/ragkb/internal/model"
	"github.com/xxxsen/ragkb/internal/repo"
	"github.com/xxxsen/ragkb/internal/service"
	"github.com/xxxsen/ragkb/internal/taskqueue"
	"github.com/xxxsen/ragkb/internal/testutil"
	"github.com/xxxsen/ragkb/internal/vectorstore"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testApp struct {
	handler  http.Handler
	router   *ingest.Router
	settings ai.Settings
	queue    taskqueue.Queue
	queries  *service.QueryService
	reaper   *lifecycle.Reaper
	root     string
}

func setupRouter(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	t.Cleanup(cleanup)
	root := t.TempDir()
	files, err := filestore.NewLocal(root)
	require.NoError(t, err)
	layout := filestore.NewLayout("static", "uploads")
	vectors := vectorstore.NewMemory(32)
	settings := ai.Settings{
		Embedder:  testutil.NewHashEmbedder(32),
		Generator: &testutil.ScriptedGenerator{Reply: "Revenue grew 12% [1]"},
		TopK:      3,
	}

	sessionRepo := repo.NewSessionRepo(db)
	logs := repo.NewQueryLogRepo(db)
	deleter := lifecycle.NewDeleter(sessionRepo, vectors, time.Second)
	sessions := service.NewSessionService(sessionRepo, repo.NewMessageRepo(db), deleter)
	queries := service.NewQueryService(settings, vectors, nil, logs, sessions)
	router := ingest.NewRouter(files, layout, vectors)
	queue := taskqueue.NewMemory(8)
	ingestSvc := service.NewIngestService(router, files, layout, repo.NewIngestTaskRepo(db), queue, taskqueue.NewGate(queue, 50), settings, 1<<20)
	reaper := lifecycle.NewReaper(sessionRepo, vectors, files, layout)
	health := service.NewHealthService(true).AddProbe("database", db.PingContext)

	deps := handler.RouterDeps{
		Ingest:    handler.NewIngestHandler(ingestSvc, 1<<20),
		Query:     handler.NewQueryHandler(queries),
		History:   handler.NewHistoryHandler(sessions),
		Documents: handler.NewDocumentHandler(service.NewDocumentService(files, layout, time.UTC)),
		Analytics: handler.NewAnalyticsHandler(analytics.NewAggregator(logs, files, time.UTC)),
		Admin:     handler.NewAdminHandler(reaper, 21*24*time.Hour),
		Health:    handler.NewHealthHandler(health),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		queries.Wait()
		deleter.Wait()
		reaper.Wait()
	})
	return &testApp{
		handler:  handler.Mount(engine, deps.Health),
		router:   router,
		settings: settings,
		queue:    queue,
		queries:  queries,
		reaper:   reaper,
		root:     root,
	}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return a.serve(t, req)
}

func (a *testApp) upload(t *testing.T, filename, content string, fields map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return a.serve(t, req)
}

func (a *testApp) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	resp := httptest.NewRecorder()
	a.handler.ServeHTTP(resp, req)
	var env envelope
	if resp.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	}
	return resp, env
}

func (a *testApp) index(t *testing.T, filename, text string, category model.Category, sessionID string) {
	t.Helper()
	_, err := a.router.Route(context.Background(), a.settings, ingest.Request{
		Filename: filename, Data: []byte(text), Category: category, SessionID: sessionID,
	})
	require.NoError(t, err)
}
