package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/your-org/yaic/internal/api"
	"github.com/your-org/yaic/internal/api/ws"
	"github.com/your-org/yaic/internal/bridge"
	"github.com/your-org/yaic/internal/classify"
	"github.com/your-org/yaic/internal/config"
	"github.com/your-org/yaic/internal/observability"
	"github.com/your-org/yaic/internal/processor"
)

var version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to config file (optional, env vars take precedence)")
	flag.Parse()

	// Best effort: a local .env is a convenience, not a requirement.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	baseLogger := observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting yaic bridge",
		"version", version,
		"model", cfg.Classifier.Model,
		"language", cfg.Language,
		"topic_in", cfg.MQTT.TopicIn,
	)

	classifier := classify.New(classify.Options{
		APIKey:     cfg.Classifier.APIKey,
		Endpoint:   cfg.Classifier.Endpoint,
		Model:      cfg.Classifier.Model,
		Language:   cfg.Language,
		Timeout:    cfg.Classifier.Timeout,
		MaxRetries: cfg.Classifier.MaxRetries,
	})
	proc := processor.New(classifier)

	hub := ws.NewHub()
	go hub.Run()

	ctrl := bridge.New(cfg, proc, version, hub)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Connect(runCtx); err != nil {
		slog.Error("connect to mqtt", "error", err)
		os.Exit(1)
	}

	// Once the bus is up, ship log records there too.
	busHandler := bridge.NewBusLogHandler(ctrl.Publisher(), cfg.MQTT.TopicLog,
		observability.ParseLevel(cfg.Logging.Level))
	slog.SetDefault(slog.New(observability.Fanout(baseLogger.Handler(), busHandler)))

	router := api.NewRouter(api.RouterConfig{
		APIKey:  cfg.Server.APIKey,
		Bridge:  ctrl,
		Hub:     hub,
		Version: version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	cancel()

	// Offline statuses must go out before the transport drops, and the
	// bus log handler must be detached before the bus goes away.
	ctrl.Close()
	slog.SetDefault(baseLogger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown", "error", err)
	}

	slog.Info("yaic bridge stopped")
}
