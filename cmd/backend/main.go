// Package main is the control plane backend: the REST surface sessions,
// projects, and runs are driven through, plus the internal claim/start/fail
// and callback endpoints the executor manager consumes.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agentforge/controlplane/internal/api"
	"github.com/agentforge/controlplane/internal/callback"
	"github.com/agentforge/controlplane/internal/common/config"
	"github.com/agentforge/controlplane/internal/common/logger"
	dbpkg "github.com/agentforge/controlplane/internal/db"
	"github.com/agentforge/controlplane/internal/objectstore"
	"github.com/agentforge/controlplane/internal/project"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/run/reaper"
	"github.com/agentforge/controlplane/internal/serviceauth"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/internal/toolexec"
	"github.com/agentforge/controlplane/internal/tracing"
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

	log.Info("starting control plane backend")

	tracing.Init("controlplane-backend")
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

	if err := dbpkg.Migrate(pool); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("database migrated", zap.String("driver", pool.Driver()))

	sessions := session.NewSQLRepository(pool)
	projects := project.NewSQLRepository(pool)
	runs := run.NewSQLRepository(pool)
	tools := toolexec.NewSQLRepository(pool)

	store, err := newObjectStore(cfg)
	if err != nil {
		log.Fatal("failed to initialize object store", zap.Error(err))
	}

	sink := callback.New(pool)

	var verifier *serviceauth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = serviceauth.NewVerifier(cfg.Auth.JWTSecret)
	}

	orphanReaper := reaper.New(runs, log.With(zap.String("component", "reaper")), cfg.ExecutorManager.ClaimTTL)
	if err := orphanReaper.Start("0 * * * * *"); err != nil {
		log.Fatal("failed to start orphan reaper", zap.Error(err))
	}
	defer orphanReaper.Stop()

	server := api.NewServer(api.Deps{
		Sessions:            sessions,
		Projects:            projects,
		Runs:                runs,
		Tools:               tools,
		Store:               store,
		Sink:                sink,
		ServiceVerifier:     verifier,
		WorkspaceManagerURL: cfg.ExecutorManager.BackendURL,
		Logger:              log,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("backend listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down backend")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}
	log.Info("backend stopped")
}

// newObjectStore selects an S3-compatible store when an endpoint/bucket is
// configured, falling back to an in-memory store for local/dev runs.
func newObjectStore(cfg *config.Config) (objectstore.Store, error) {
	if cfg.ObjectStore.Bucket == "" {
		return objectstore.NewMemStore(), nil
	}
	return objectstore.NewS3Store(context.Background(), cfg.ObjectStore)
}
