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

	"github.com/vitaliisemenov/msg-store/internal/api"
	"github.com/vitaliisemenov/msg-store/internal/blob"
	"github.com/vitaliisemenov/msg-store/internal/config"
	"github.com/vitaliisemenov/msg-store/internal/core"
	"github.com/vitaliisemenov/msg-store/internal/storage"
	"github.com/vitaliisemenov/msg-store/pkg/logger"
	"github.com/vitaliisemenov/msg-store/pkg/metrics"
)

const gracefulShutdownTimeout = 30 * time.Second

// runServer wires config, logging, backends, the store facade and the
// HTTP router, then serves until SIGINT/SIGTERM.
func runServer(ctx context.Context) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("fatal config error: %w", err)
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	log.Info("starting msg-store",
		"version", serviceVersion,
		"database", cfg.Database,
		"node_id", cfg.NodeID,
		"file_storage", cfg.FileStorage,
	)

	db, err := storage.NewMsgStorage(cfg, log)
	if err != nil {
		return fmt.Errorf("fatal config error: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("closing message storage failed", "error", err)
		}
	}()

	var blobStore core.BlobStorage
	if cfg.FileStorage {
		fs, err := blob.NewFileStore(cfg.FileStoragePath, log)
		if err != nil {
			return fmt.Errorf("fatal config error: %w", err)
		}
		blobStore = fs
	}

	store, err := core.NewStore(core.StoreConfig{
		NodeID:      cfg.NodeID,
		MaxByteSize: cfg.MaxByteSize,
		Groups:      cfg.GroupCaps(),
		CacheSize:   cfg.CacheSize,
	}, db, blobStore, log, metrics.NewStoreMetrics())
	if err != nil {
		return fmt.Errorf("fatal config error: %w", err)
	}

	if err := store.Recover(ctx); err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	router := api.NewRouter(api.DefaultRouterConfig(store, cfg, log))
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  0, // streamed uploads may be slow; no read deadline
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		log.Info("shutting down", "reason", "context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
