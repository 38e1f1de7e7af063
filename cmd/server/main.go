package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/digestmail/digestmail/internal/app"
	"github.com/digestmail/digestmail/internal/auth"
	"github.com/digestmail/digestmail/internal/config"
	"github.com/digestmail/digestmail/internal/handler"
	"github.com/digestmail/digestmail/internal/logger"
	"github.com/digestmail/digestmail/internal/middleware"
	"github.com/digestmail/digestmail/internal/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", handler.Version).Msg("starting digestmail compose server")

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	// Runs left "running" by a previous process can never finish
	if a.Runs != nil {
		if n, err := a.Runs.MarkStale(context.Background(), time.Now()); err != nil {
			log.Warn().Err(err).Msg("failed to mark stale runs")
		} else if n > 0 {
			log.Info().Int64("runs", n).Msg("marked interrupted runs as failed")
		}
	}

	// Initialize token service
	tokenSvc := auth.NewTokenService(cfg.Security)
	if !tokenSvc.Enabled() {
		log.Warn().Msg("security.token_secret is not set, API authentication is disabled")
	}

	// Initialize handlers
	var runs handler.RunLister
	if a.Runs != nil {
		runs = a.Runs
	}
	h := handler.New(a.DB, a.Redis, log, cfg, a.Compose, a.Progress, runs)

	// Initialize middleware
	mw := middleware.New(log, cfg)

	// Set up router
	r := router.New(h, mw, tokenSvc, cfg.Server.AllowedOrigins)

	// Create HTTP server
	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	if a.Compose.Sending() {
		log.Warn().Msg("a send run was still in progress at shutdown")
	}

	log.Info().Msg("server stopped")
}
