// @title           Task API
// @version         1.0
// @description     Task management API with per-user response caching, soft delete and CSV export.
// @host            localhost:8080
// @BasePath        /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andrewabdallah/taskmanager/internal/app"
	"github.com/andrewabdallah/taskmanager/internal/config"
	"github.com/andrewabdallah/taskmanager/pkg/logger"

	_ "github.com/andrewabdallah/taskmanager/docs"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "config load failed", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "config loaded, connecting to DB and Redis")

	application, err := app.New(cfg)
	if err != nil {
		logger.Error(ctx, "app init failed", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "app ready, starting HTTP server")

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTP.Port,
		Handler:      application.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration(),
		IdleTimeout:  cfg.HTTP.IdleTimeout.Duration(),
	}

	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "HTTP server error", "error", err)
			panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		panic(err)
	}

	if err := application.Close(shutdownCtx); err != nil {
		panic(err)
	}
	logger.Info(ctx, "server stopped")
}
