package main

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"stockdesk/internal/cache"
	"stockdesk/internal/config"
	"stockdesk/internal/core"
	"stockdesk/internal/db"
)

const lockKey = "stockdesk:reconcile"

// reconcile runs one reconciliation pass and exits. When Redis is configured
// the run is guarded by a distributed lock so overlapping cron schedules or
// multiple hosts cannot reconcile the same database concurrently.
func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisCache.Close()

		locker := redislock.New(redisCache.Client())
		ttl := time.Duration(cfg.ReconcileLockTTLSeconds) * time.Second
		lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			log.Warn("another reconciliation run holds the lock, exiting")
			return
		}
		if err != nil {
			log.Fatalf("lock: %v", err)
		}
		defer func() { _ = lock.Release(ctx) }()
	} else {
		log.Warn("REDIS_ADDR not set, running without a distributed lock")
	}

	report, err := core.NewReconcileService(pool, log).Reconcile(ctx)
	if err != nil {
		log.Fatalf("reconcile: %v", err)
	}

	log.WithFields(logrus.Fields{
		"orders_checked":   report.OrdersChecked,
		"deleted_payments": report.DeletedPayments,
		"shrunk_payments":  report.ShrunkPayments,
	}).Info("reconciliation finished")
	for _, note := range report.Notes {
		log.Info(note)
	}
}
