package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"stockdesk/internal/config"
	"stockdesk/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

// verify-db checks the invariants the services are supposed to uphold:
// stock counts never negative, payments never exceeding their order total,
// and stored waterfall remains matching a fresh recomputation. It exits
// non-zero when any check fails so it can run in CI or cron.
func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()

	failures := 0
	failures += checkNonNegativeStock(ctx, pool)
	failures += checkOrderTotals(ctx, pool)
	failures += checkPaymentCeilings(ctx, pool, cfg.OverpayTolerance)
	failures += checkWaterfallRemains(ctx, pool)
	failures += checkSeqNoUniqueness(ctx, pool)

	if failures > 0 {
		log.Printf("[FAIL] %d invariant violation(s) found", failures)
		os.Exit(1)
	}
	log.Println("[OK] all invariants hold")
}

func checkNonNegativeStock(ctx context.Context, pool *pgxpool.Pool) int {
	rows, err := pool.Query(ctx, "SELECT id, name, quantity FROM products WHERE quantity < 0")
	if err != nil {
		log.Fatalf("[STOCK] query failed: %v", err)
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var id, qty int
		var name string
		if err := rows.Scan(&id, &name, &qty); err != nil {
			log.Fatalf("[STOCK] scan failed: %v", err)
		}
		log.Printf("[STOCK] product %d (%s) has negative quantity %d", id, name, qty)
		violations++
	}
	if violations == 0 {
		log.Println("[STOCK] ok")
	}
	return violations
}

func checkOrderTotals(ctx context.Context, pool *pgxpool.Pool) int {
	rows, err := pool.Query(ctx, `
		SELECT o.id, o.total, COALESCE(SUM(l.qty * l.unit_price), 0)
		FROM orders o
		LEFT JOIN order_lines l ON l.order_id = o.id
		GROUP BY o.id, o.total
		HAVING o.total <> COALESCE(SUM(l.qty * l.unit_price), 0)`)
	if err != nil {
		log.Fatalf("[TOTALS] query failed: %v", err)
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var id int
		var stored, computed decimal.Decimal
		if err := rows.Scan(&id, &stored, &computed); err != nil {
			log.Fatalf("[TOTALS] scan failed: %v", err)
		}
		log.Printf("[TOTALS] order %d stores total %s but lines sum to %s", id, stored, computed)
		violations++
	}
	if violations == 0 {
		log.Println("[TOTALS] ok")
	}
	return violations
}

func checkPaymentCeilings(ctx context.Context, pool *pgxpool.Pool, tolerance decimal.Decimal) int {
	rows, err := pool.Query(ctx, `
		SELECT o.id, o.total, SUM(p.deposit)
		FROM orders o
		JOIN payments p ON p.order_id = o.id
		GROUP BY o.id, o.total`)
	if err != nil {
		log.Fatalf("[CEILING] query failed: %v", err)
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var id int
		var total, paid decimal.Decimal
		if err := rows.Scan(&id, &total, &paid); err != nil {
			log.Fatalf("[CEILING] scan failed: %v", err)
		}
		if paid.GreaterThan(total.Add(tolerance)) {
			log.Printf("[CEILING] order %d is overpaid: total %s, paid %s (run reconcile)", id, total, paid)
			violations++
		}
	}
	if violations == 0 {
		log.Println("[CEILING] ok")
	}
	return violations
}

func checkWaterfallRemains(ctx context.Context, pool *pgxpool.Pool) int {
	rows, err := pool.Query(ctx, `
		SELECT p.id, p.order_id, p.deposit, p.remain, o.total
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		ORDER BY p.order_id, p.pay_date, p.seq_no, p.id`)
	if err != nil {
		log.Fatalf("[WATERFALL] query failed: %v", err)
	}
	defer rows.Close()

	violations := 0
	currentOrder := 0
	running := decimal.Zero
	var orderTotal decimal.Decimal

	for rows.Next() {
		var id, orderID int
		var deposit, remain, total decimal.Decimal
		if err := rows.Scan(&id, &orderID, &deposit, &remain, &total); err != nil {
			log.Fatalf("[WATERFALL] scan failed: %v", err)
		}
		if orderID != currentOrder {
			currentOrder = orderID
			running = decimal.Zero
			orderTotal = total
		}
		running = running.Add(deposit)
		expected := orderTotal.Sub(running)
		if expected.IsNegative() {
			expected = decimal.Zero
		}
		if !remain.Equal(expected) {
			log.Printf("[WATERFALL] payment %d on order %d stores remain %s, expected %s", id, orderID, remain, expected)
			violations++
		}
	}
	if violations == 0 {
		log.Println("[WATERFALL] ok")
	}
	return violations
}

func checkSeqNoUniqueness(ctx context.Context, pool *pgxpool.Pool) int {
	rows, err := pool.Query(ctx, `
		SELECT order_id, seq_no, COUNT(*)
		FROM payments
		GROUP BY order_id, seq_no
		HAVING COUNT(*) > 1`)
	if err != nil {
		log.Fatalf("[SEQNO] query failed: %v", err)
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var orderID, seqNo, count int
		if err := rows.Scan(&orderID, &seqNo, &count); err != nil {
			log.Fatalf("[SEQNO] scan failed: %v", err)
		}
		log.Printf("[SEQNO] order %d has %d payments with seq_no %d", orderID, count, seqNo)
		violations++
	}
	if violations == 0 {
		log.Println("[SEQNO] ok")
	}
	return violations
}
