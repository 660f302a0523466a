package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stockguard/server/internal/config"
	"github.com/stockguard/server/internal/db"
	"github.com/stockguard/server/internal/guard/service"
	"github.com/stockguard/server/internal/guard/store/sqlite"
	"github.com/stockguard/server/internal/httpapi"
)

func main() {
	cfg := config.FromEnv()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store handle: the one owned connection everything goes through, and
	// the thing a restore closes and reopens.
	handle, err := db.NewHandle(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer func() { _ = handle.Close() }()

	if cfg.Env == "dev" {
		conn, err := handle.DB()
		if err == nil {
			err = db.SeedDev(ctx, conn, db.SeedDevOptions{})
		}
		if err != nil {
			logger.Fatal("seed dev data", zap.Error(err))
		}
	}

	// Stores
	requestStore := sqlite.NewClearRequestStore(handle)
	auditStore := sqlite.NewAuditLogStore(handle)
	accountStore := sqlite.NewAccountStore(handle)

	// Services
	audit := service.NewAuditRecorder(auditStore, logger)
	snapshots := service.NewSnapshotService(handle, cfg.SnapshotDir, cfg.ReportDir, logger)
	executor := service.NewDestructiveActionExecutor(handle, logger)
	verifier := service.NewBcryptVerifier(accountStore)
	clearSvc := service.NewClearService(requestStore, snapshots, executor, verifier, audit, logger)
	restore := service.NewRestoreCoordinator(handle, cfg.SnapshotDir, audit, logger)

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:       logger,
		Addr:         cfg.HTTPAddr,
		ClearService: clearSvc,
		Snapshots:    snapshots,
		Restore:      restore,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
