// Package main is the executor manager: it claims queued runs from the
// backend's database, resolves their effective configuration, stages their
// input files onto a session workspace, and dispatches the prepared task to
// an executor worker. It also serves the live workspace tree the backend's
// workspace endpoints proxy to (SPEC_FULL.md §E.3.5).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentforge/controlplane/internal/common/config"
	"github.com/agentforge/controlplane/internal/common/httpmw"
	"github.com/agentforge/controlplane/internal/common/logger"
	dbpkg "github.com/agentforge/controlplane/internal/db"
	"github.com/agentforge/controlplane/internal/executormanager"
	"github.com/agentforge/controlplane/internal/objectstore"
	"github.com/agentforge/controlplane/internal/preset"
	"github.com/agentforge/controlplane/internal/resolver"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/serviceauth"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/internal/stager"
	"github.com/agentforge/controlplane/internal/tracing"
	"github.com/agentforge/controlplane/internal/userenv"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	workerID := os.Getenv("CTRLPLANE_WORKER_ID")
	if workerID == "" {
		workerID = "executor-manager-" + uuid.NewString()
	}
	log = log.With(zap.String("worker_id", workerID))
	log.Info("starting executor manager")

	tracing.Init("controlplane-executor-manager")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Warn("tracing shutdown error", zap.Error(err))
		}
	}()

	pool, err := dbpkg.Open(cfg.Database)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer pool.Close()

	runs := run.NewSQLRepository(pool)
	sessions := session.NewSQLRepository(pool)
	envRepo := userenv.NewSQLRepository(pool)
	mcpRepo := preset.NewSQLMcpRepository(pool)
	skillRepo := preset.NewSQLSkillRepository(pool)

	store, err := newObjectStore(cfg)
	if err != nil {
		log.Fatal("failed to initialize object store", zap.Error(err))
	}

	resolve := resolver.New(envRepo, mcpRepo, skillRepo)
	stage := stager.New(store, cfg.Stager.WorkspaceRoot, log)

	var issuer *serviceauth.Issuer
	if cfg.Auth.JWTSecret != "" {
		issuer = serviceauth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenDurationTime())
	}
	dispatcher := executormanager.NewDispatcher(cfg.ExecutorManager.BackendURL, cfg.ExecutorManager.DispatchTimeoutDuration(), issuer, log)

	manager := executormanager.New(runs, sessions, resolve, stage, dispatcher, cfg.ExecutorManager, workerID, log)

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)

	workspaceProxy := executormanager.NewWorkspaceProxy(cfg.Stager.WorkspaceRoot)
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(httpmw.RequestID(), httpmw.Recovery(log), httpmw.RequestLogger(log, "executor-manager"), httpmw.ErrorEnvelope(log))
	router.GET("/health", func(c *gin.Context) {
		httpmw.OK(c, http.StatusOK, gin.H{"status": "ok"})
	})
	workspaceProxy.Register(router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("executor manager workspace proxy listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down executor manager")
	cancel()
	manager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}
	log.Info("executor manager stopped")
}

func newObjectStore(cfg *config.Config) (objectstore.Store, error) {
	if cfg.ObjectStore.Bucket == "" {
		return objectstore.NewMemStore(), nil
	}
	return objectstore.NewS3Store(context.Background(), cfg.ObjectStore)
}
