// Command warpbrokerd wires the broker core into a running process: it
// opens the store, builds the orchestrator and push endpoint, starts the
// worker pool, and serves the push endpoint until signalled to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/warpdl/warpbroker/internal/app"
	"github.com/warpdl/warpbroker/internal/config"
	"github.com/warpdl/warpbroker/internal/daemon"
	"github.com/warpdl/warpbroker/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Println("warpbrokerd:", err.Error())
		os.Exit(1)
	}
}

func run() error {
	l := logger.NewStandardLogger(log.Default())
	defer l.Close()

	cfg := loadConfigFromEnv()

	broker, err := app.New(app.Options{
		Config: cfg,
		Log:    l,
		DBPath: envOr("WARPBROKER_DB_PATH", "./warpbroker.db"),
	})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	ctx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	if err := broker.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	runner := daemon.New(&daemon.Config{
		ServiceName:     daemon.DefaultServiceName,
		DisplayName:     daemon.DefaultDisplayName,
		Port:            cfg.Server.Port,
		ShutdownTimeout: 10 * time.Second,
	}, &daemon.Dependencies{
		ShutdownFunc: broker.Shutdown,
	})

	daemonErrCh := make(chan error, 1)
	go func() { daemonErrCh <- runner.Start(ctx) }()

	for !runner.IsRunning() {
		time.Sleep(10 * time.Millisecond)
	}

	mux := http.NewServeMux()
	mux.Handle("/push", broker.Push.Handler())
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(runner.Listener()); err != nil && err != http.ErrServerClosed {
			l.Error("push endpoint: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutting down")
	_ = srv.Close()
	// Shutdown stops the worker pool (letting in-flight transfers finish)
	// before the deferred cancelApp tears down the root context.
	if err := runner.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-daemonErrCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadConfigFromEnv() *config.Config {
	cfg := config.DefaultConfig()
	if dir := os.Getenv("WARPBROKER_DOWNLOAD_DIR"); dir != "" {
		cfg.Downloads.Directory = dir
	}
	if port := os.Getenv("WARPBROKER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	cfg.Host.Email = os.Getenv("WARPBROKER_HOST_EMAIL")
	cfg.Host.Password = os.Getenv("WARPBROKER_HOST_PASSWORD")
	cfg.Series.URL = os.Getenv("WARPBROKER_SONARR_URL")
	cfg.Series.APIKey = os.Getenv("WARPBROKER_SONARR_API_KEY")
	cfg.Series.Enabled = cfg.Series.URL != ""
	cfg.Movies.URL = os.Getenv("WARPBROKER_RADARR_URL")
	cfg.Movies.APIKey = os.Getenv("WARPBROKER_RADARR_API_KEY")
	cfg.Movies.Enabled = cfg.Movies.URL != ""
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
