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

	"github.com/sirupsen/logrus"

	"gameshub-server/internal/config"
	"gameshub-server/internal/server"
	"gameshub-server/internal/store"
)

const shutdownTimeout = 30 * time.Second

func gracefulShutdown(ctx context.Context, stop context.CancelFunc, log logrus.FieldLogger, hub *server.Server, httpServer *http.Server, done chan<- error) {
	<-ctx.Done()
	log.Info("shutdown signal received, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Players are told before the listener goes away.
	hubErr := hub.Shutdown(shutdownCtx)
	if hubErr != nil {
		log.WithError(hubErr).Error("error during hub shutdown")
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server forced to shutdown")
		done <- err
		return
	}
	done <- hubErr
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func run(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		Driver:      cfg.Store,
		DataDir:     cfg.DataDir,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	log.WithField("store", cfg.Store).Info("store ready")

	hub := server.New(cfg, st, log)
	hub.Start()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           hub.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go gracefulShutdown(ctx, stop, log, hub, httpServer, done)

	log.WithFields(logrus.Fields{"addr": cfg.Addr(), "url": cfg.BaseURL()}).Info("gameshub listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	err = <-done
	log.Info("graceful shutdown complete")
	return err
}

func main() {
	cmd := config.NewCommand(config.Default(), run)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
