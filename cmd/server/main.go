package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/logging"
	"github.com/BioHazard786/meshroom/internal/server"
	"github.com/BioHazard786/meshroom/internal/signaling"
	"github.com/BioHazard786/meshroom/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	log := logging.Init(cfg.LogLevel, slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limits := signaling.Limits{
		MaxRoomIDLength:  cfg.MaxRoomIDLength,
		MaxContentLength: cfg.MaxContentLength,
	}
	hub := signaling.NewHub(log, signaling.NewLifecycle(log, limits, nil))

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.NewRouter(hub, server.OptionsFromConfig(cfg), log),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting signaling server", "addr", cfg.Addr, "version", version.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		stop()
		<-hubDone
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	<-hubDone

	log.Info("Server stopped cleanly")
	return nil
}
