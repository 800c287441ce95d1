package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/ragkb/internal/handler"
	"github.com/xxxsen/ragkb/internal/job"
	"github.com/xxxsen/ragkb/internal/middleware"
	"github.com/xxxsen/ragkb/internal/schedule"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragkb",
		Short: "ragkb knowledge base server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragkb server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()
			return runServer(ctx, a)
		},
	}

	var force bool
	var maxAgeSeconds int64
	reapCmd := &cobra.Command{
		Use:   "reap",
		Short: "remove expired session uploads, vectors and history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()
			maxAge := cfg.Reaper.MaxAge()
			if maxAgeSeconds > 0 {
				maxAge = time.Duration(maxAgeSeconds) * time.Second
			}
			res, err := a.reaper.Reap(ctx, maxAge, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d removed=%d failed=%d\n", res.Scanned, res.Removed, res.Failed)
			return nil
		},
	}
	reapCmd.Flags().BoolVar(&force, "force", false, "clear all history and remove every session folder")
	reapCmd.Flags().Int64Var(&maxAgeSeconds, "max-age", 0, "override max session age in seconds")

	ingestStaticCmd := &cobra.Command{
		Use:   "ingest-static",
		Short: "index every file in the static document folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()
			res, err := a.ingest.IngestStatic(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "files=%d chunks=%d failed=%d\n", res.Files, res.Chunks, res.Failed)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, reapCmd, ingestStaticCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	logger := logutil.GetLogger(ctx)
	logger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("task_queue", cfg.TaskQueue.Type),
	)

	pool := a.newPool()
	pool.Start(ctx)
	defer pool.Stop()

	scheduler := schedule.NewCronScheduler(a.loc)
	jobs := []struct {
		task schedule.Job
		spec string
	}{
		{job.NewSessionReaperJob(a.reaper, cfg.Reaper.MaxAge()), cfg.Reaper.Cron},
		{job.NewEmbeddingCacheCleanupJob(a.embedCache, cfg.Jobs.EmbeddingCacheTTLDays), cfg.Jobs.EmbeddingCacheCron},
		{job.NewIngestTaskCleanupJob(a.tasks, time.Duration(cfg.Jobs.IngestTaskRetainHours)*time.Hour), cfg.Jobs.IngestTaskCleanupCron},
	}
	for _, item := range jobs {
		if err := scheduler.AddJob(item.task, item.spec); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Ingest:          handler.NewIngestHandler(a.ingest, cfg.Ingest.MaxUploadBytes),
		Query:           handler.NewQueryHandler(a.queries),
		History:         handler.NewHistoryHandler(a.sessions),
		Documents:       handler.NewDocumentHandler(a.documents),
		Analytics:       handler.NewAnalyticsHandler(a.stats),
		Admin:           handler.NewAdminHandler(a.reaper, cfg.Reaper.MaxAge()),
		Health:          handler.NewHealthHandler(a.health),
		RateLimit:       cfg.RateLimit.Limit,
		RateLimitWindow: time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf(":%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.Mount(engine, deps.Health),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
