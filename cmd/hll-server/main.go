package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"

	"github.com/sahithikokkula/sqlite-hll/pkg/aggregate"
	"github.com/sahithikokkula/sqlite-hll/pkg/api"
	"github.com/sahithikokkula/sqlite-hll/pkg/config"
	"github.com/sahithikokkula/sqlite-hll/pkg/extension"
	"github.com/sahithikokkula/sqlite-hll/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	manager, err := aggregate.NewManager(cfg.Policy())
	if err != nil {
		return err
	}

	// The function must be registered before the pool opens its first connection.
	ext := extension.New(manager, slog.Default())
	if err := extension.Register(ext); err != nil {
		return err
	}

	slog.Info("Using database", slog.String("path", cfg.DBPath))

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Pragmas for better performance
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storage.EnsureMetaTables(ctx, db); err != nil {
		return err
	}

	r := mux.NewRouter()
	api.RegisterRoutes(r, db, ext, cfg.QueryTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.QueryTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", slog.String("err", err.Error()))
		}
	}()

	slog.Info("HLL server listening", slog.String("addr", "http://localhost:"+cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("Server stopped")
	return nil
}
