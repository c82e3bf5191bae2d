// cmd/auditor/main.go audits veto sessions on an interval and logs what it finds.
// It never remediates; resets go through the admin API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/mapveto/internal/app"
	"github.com/jason-s-yu/mapveto/internal/audit"
	"github.com/jason-s-yu/mapveto/internal/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()
	if cfg.StoreBackend == config.BackendMemory {
		logger.Fatal("the auditor reads the shared store; set STORE_BACKEND=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	defer closeStore()

	m := &audit.Monitor{
		Auditor:      audit.New(st, nil, nil, logger, cfg.StaleAfter),
		Interval:     cfg.AuditInterval,
		TournamentID: cfg.AuditScope(),
	}

	logger.WithFields(logrus.Fields{
		"interval":    m.Interval,
		"stale_after": cfg.StaleAfter,
	}).Info("veto auditor started")
	m.Run(ctx)
	logger.Info("veto auditor shutting down")
}
