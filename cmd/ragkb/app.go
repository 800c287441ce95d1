package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragkb/internal/ai"
	"github.com/xxxsen/ragkb/internal/analytics"
	"github.com/xxxsen/ragkb/internal/config"
	"github.com/xxxsen/ragkb/internal/embedcache"
	"github.com/xxxsen/ragkb/internal/filestore"
	"github.com/xxxsen/ragkb/internal/ingest"
	"github.com/xxxsen/ragkb/internal/lifecycle"
	"github.com/xxxsen/ragkb/internal/repo"
	"github.com/xxxsen/ragkb/internal/service"
	"github.com/xxxsen/ragkb/internal/taskqueue"
	"github.com/xxxsen/ragkb/internal/vectorstore"
)

const vectorDeleteTimeout = 30 * time.Second

// app holds every long lived component built from one config.
type app struct {
	cfg      *config.Config
	loc      *time.Location
	db       *repo.DB
	files    filestore.Store
	layout   filestore.Layout
	vectors  vectorstore.Store
	queue    taskqueue.Queue
	settings ai.Settings

	sessionRepo *repo.SessionRepo
	logs        *repo.QueryLogRepo
	tasks       *repo.IngestTaskRepo
	embedCache  *repo.EmbeddingCacheRepo

	deleter   *lifecycle.Deleter
	reaper    *lifecycle.Reaper
	sessions  *service.SessionService
	queries   *service.QueryService
	ingest    *service.IngestService
	documents *service.DocumentService
	health    *service.HealthService
	stats     *analytics.Aggregator
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := repo.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.ApplyMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	vectors, err := vectorstore.New(cfg.VectorStore, vectorstore.Deps{DB: db.DB, Driver: db.Driver})
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	if err := vectors.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure vector collection: %w", err)
	}
	queue, err := taskqueue.New(cfg.TaskQueue)
	if err != nil {
		return nil, fmt.Errorf("init task queue: %w", err)
	}

	a := &app{
		cfg:         cfg,
		loc:         cfg.Location(),
		db:          db,
		files:       files,
		layout:      filestore.NewLayout(cfg.FileStore.StaticPrefix, cfg.FileStore.UploadPrefix),
		vectors:     vectors,
		queue:       queue,
		sessionRepo: repo.NewSessionRepo(db),
		logs:        repo.NewQueryLogRepo(db),
		tasks:       repo.NewIngestTaskRepo(db),
		embedCache:  repo.NewEmbeddingCacheRepo(db),
	}
	if err := a.buildAI(); err != nil {
		return nil, err
	}

	a.deleter = lifecycle.NewDeleter(a.sessionRepo, vectors, vectorDeleteTimeout)
	a.reaper = lifecycle.NewReaper(a.sessionRepo, vectors, files, a.layout)
	a.sessions = service.NewSessionService(a.sessionRepo, repo.NewMessageRepo(db), a.deleter)
	manager := ai.NewManager(a.settings.Generator, ai.ManagerConfig{
		Timeout:       cfg.AI.TimeoutSeconds,
		MaxInputChars: cfg.AI.MaxInputChars,
	})
	a.queries = service.NewQueryService(a.settings, vectors, manager, a.logs, a.sessions)
	router := ingest.NewRouter(files, a.layout, vectors)
	gate := taskqueue.NewGate(queue, cfg.TaskQueue.MaxPending)
	a.ingest = service.NewIngestService(router, files, a.layout, a.tasks, queue, gate, a.settings, cfg.Ingest.MaxUploadBytes)
	a.documents = service.NewDocumentService(files, a.layout, a.loc)
	a.stats = analytics.NewAggregator(a.logs, files, a.loc)
	a.health = service.NewHealthService(a.settings.EmbedderConfigured()).
		AddProbe("database", db.PingContext).
		AddProbe("vector_store", vectors.Ping).
		AddProbe("task_queue", queue.Ping)
	return a, nil
}

func (a *app) buildAI() error {
	gen, emb, err := ai.Build(a.cfg.AI)
	if err != nil {
		return err
	}
	if emb != nil {
		opts := []embedcache.Option{
			embedcache.WithLRU(a.cfg.EmbedCache.LRUSize, time.Duration(a.cfg.EmbedCache.LRUTTLSeconds)*time.Second),
			embedcache.WithDimension(a.cfg.VectorStore.Dimension),
		}
		if a.cfg.EmbedCache.DB {
			opts = append(opts, embedcache.WithStore(a.embedCache))
		}
		emb = embedcache.New(ai.WrapRateLimitedEmbedder(emb, a.cfg.Ingest.EmbedQPS), opts...)
	} else {
		logutil.GetLogger(context.Background()).Warn("no embedder configured, ingestion and queries will be rejected")
	}
	a.settings = ai.Settings{Embedder: emb, Generator: gen, TopK: a.cfg.Retrieval.TopK}
	return nil
}

func (a *app) newPool() *taskqueue.Pool {
	return taskqueue.NewPool(a.queue, a.ingest, taskqueue.PoolConfig{
		Workers:        a.cfg.TaskQueue.Workers,
		MaxAttempts:    a.cfg.Ingest.MaxAttempts,
		InitialBackoff: time.Duration(a.cfg.Ingest.InitialBackoffMs) * time.Millisecond,
	})
}

// close waits for background work before releasing shared resources.
func (a *app) close() {
	a.queries.Wait()
	a.deleter.Wait()
	a.reaper.Wait()
	if err := a.queue.Close(); err != nil {
		logutil.GetLogger(context.Background()).Error("close task queue failed", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		logutil.GetLogger(context.Background()).Error("close db failed", zap.Error(err))
	}
}
