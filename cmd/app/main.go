package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"stockdesk/internal/adapters/cli"
	"stockdesk/internal/ai"
	"stockdesk/internal/app"
	"stockdesk/internal/cache"
	"stockdesk/internal/config"
	"stockdesk/internal/core"
	"stockdesk/internal/db"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: app <command> [args]")
		fmt.Fprintln(os.Stderr, "Commands: stock, low-stock, order <id>, propose \"<request>\", execute, reconcile")
		os.Exit(2)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	ledger := core.NewStockLedger(log)
	orders := core.NewOrderService(pool, ledger, log)
	imports := core.NewImportService(pool, ledger, log)
	payments := core.NewPaymentService(pool, cfg.OverpayTolerance, log)
	catalog := core.NewCatalogService(pool)
	reporting := core.NewReportingService(pool, &cache.NoopReportCache{}, time.Duration(cfg.CacheTTLSeconds)*time.Second, log)
	reconcile := core.NewReconcileService(pool, log)

	var agent ai.AgentService
	if cfg.OpenAIAPIKey != "" {
		agent = ai.NewAgent(cfg.OpenAIAPIKey)
	}

	svc := app.NewAppService(orders, imports, payments, catalog, reporting, reconcile, agent, log)
	cli.Run(ctx, svc, os.Args[1:])
}
