package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"air-server/internal/api"
	"air-server/internal/api/handlers"
	"air-server/internal/config"
	"air-server/internal/database"
	"air-server/internal/pricing"
	"air-server/internal/version"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", os.Getenv("AIR_CONFIG"), "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	logger.Info("starting air server",
		"version", version.Version,
		"commit", version.Commit,
		"env", cfg.Server.Env,
		"config", *configPath,
	)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid dashboard timezone", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := database.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open audit log", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.NewRouter(api.Deps{
		Engine:    pricing.New(nil),
		Store:     store,
		StoreName: cfg.Database.Driver,
		Air: handlers.AirOptions{
			WriteTimeout:      cfg.Audit.WriteTimeout,
			StoreResponseBody: cfg.Audit.StoreResponseBody,
		},
		Stats: handlers.StatsOptions{
			PageSize: cfg.Dashboard.PageSize,
			Location: loc,
		},
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		store.Close()
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
