package main

import (
	"context"
	"net/http"
	"time"

	webAdapter "stockdesk/internal/adapters/web"
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

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	var reportCache cache.ReportCache = &cache.NoopReportCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unreachable, falling back to no-op report cache")
		} else {
			reportCache = redisCache
			defer redisCache.Close()
		}
	}

	ledger := core.NewStockLedger(log)
	orders := core.NewOrderService(pool, ledger, log)
	imports := core.NewImportService(pool, ledger, log)
	payments := core.NewPaymentService(pool, cfg.OverpayTolerance, log)
	catalog := core.NewCatalogService(pool)
	reporting := core.NewReportingService(pool, reportCache, time.Duration(cfg.CacheTTLSeconds)*time.Second, log)
	reconcile := core.NewReconcileService(pool, log)

	var agent ai.AgentService
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY is not set, assistant endpoints disabled")
	} else {
		agent = ai.NewAgent(cfg.OpenAIAPIKey)
	}

	svc := app.NewAppService(orders, imports, payments, catalog, reporting, reconcile, agent, log)
	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins, log)

	log.WithField("addr", cfg.Address()).Info("server starting")
	if err := http.ListenAndServe(cfg.Address(), handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
