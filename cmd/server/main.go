package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fruit-freedom/logsy/pkg/logsy/api"
	"github.com/fruit-freedom/logsy/pkg/logsy/config"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	components, err := cfg.Build(ctx)
	if err != nil {
		slog.Error("Failed to assemble service", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	taskHandler := api.NewTaskHandler(components.Service)
	objectHandler := api.NewObjectHandler(components.Service, components.Store)
	groupHandler := api.NewGroupHandler(components.Service)
	sourceCodeHandler := api.NewSourceCodeHandler(components.Service)
	storageHandler := api.NewStorageHandler(components.Store)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(cfg.RequestTimeout()))

	r.Mount("/api/tasks", taskHandler.Routes())
	r.Mount("/api/objects", objectHandler.Routes())
	r.Mount("/api/groups", groupHandler.Routes())
	r.Mount("/api/source-code", sourceCodeHandler.Routes())
	r.Mount("/api/storage", storageHandler.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exiting")
}
