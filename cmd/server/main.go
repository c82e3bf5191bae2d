// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/mapveto/internal/app"
	"github.com/jason-s-yu/mapveto/internal/audit"
	"github.com/jason-s-yu/mapveto/internal/config"
	"github.com/jason-s-yu/mapveto/internal/handlers"
	"github.com/jason-s-yu/mapveto/internal/metrics"
	"github.com/jason-s-yu/mapveto/internal/veto"
	"github.com/jason-s-yu/mapveto/internal/view"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.InitAuth(cfg, logger); err != nil {
		logger.Fatalf("auth: %v", err)
	}

	st, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	defer closeStore()

	bus, closeBus, err := app.OpenBus(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("events: %v", err)
	}
	defer closeBus()

	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		rec = metrics.NewRecorder()
	}

	api := &handlers.API{
		Service: veto.NewService(st, bus, rec, logger),
		Auditor: audit.New(st, bus, rec, logger, cfg.StaleAfter),
		Seeder:  st,
		Bus:     bus,
		Metrics: rec,
		Logger:  logger,
		Sync: view.SyncOptions{
			RefreshCooldown: cfg.RefreshCooldown,
			ConfirmDelay:    cfg.ConfirmDelay,
		},
		AllowedOrigins: cfg.AllowedOrigins,
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":   srv.Addr,
		"store":  cfg.StoreBackend,
		"events": cfg.EventBackend,
	}).Info("veto server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("server exited: %v", err)
	}
	logger.Info("veto server stopped")
}
