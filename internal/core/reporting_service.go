package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stockdesk/internal/cache"
)

// PaymentSummary aggregates payment activity over a date range.
type PaymentSummary struct {
	DateFrom   string          `json:"date_from,omitempty"`
	DateTo     string          `json:"date_to,omitempty"`
	Count      int             `json:"count"`
	SumTotal   decimal.Decimal `json:"sum_total"`
	SumDeposit decimal.Decimal `json:"sum_deposit"`
	SumRemain  decimal.Decimal `json:"sum_remain"`
}

// ReportingService serves the read-only aggregates. Results are cached under
// the "report:" prefix; mutations invalidate through InvalidateReports.
type ReportingService interface {
	PaymentSummary(ctx context.Context, dateFrom, dateTo *string) (*PaymentSummary, error)
	// LowStock lists active products at or below their reorder point.
	LowStock(ctx context.Context) ([]Product, error)
	InvalidateReports(ctx context.Context)
}

type reportingService struct {
	pool  *pgxpool.Pool
	cache cache.ReportCache
	ttl   time.Duration
	log   *logrus.Logger
}

func NewReportingService(pool *pgxpool.Pool, reportCache cache.ReportCache, ttl time.Duration, log *logrus.Logger) ReportingService {
	return &reportingService{pool: pool, cache: reportCache, ttl: ttl, log: log}
}

const reportCachePrefix = "report:"

func (s *reportingService) PaymentSummary(ctx context.Context, dateFrom, dateTo *string) (*PaymentSummary, error) {
	key := reportCachePrefix + "payment-summary:" + strOrAll(dateFrom) + ":" + strOrAll(dateTo)
	if cached, ok := s.cacheGet(ctx, key); ok {
		var summary PaymentSummary
		if err := json.Unmarshal(cached, &summary); err == nil {
			return &summary, nil
		}
	}

	query := `
		SELECT COUNT(*), COALESCE(SUM(total), 0), COALESCE(SUM(deposit), 0), COALESCE(SUM(remain), 0)
		FROM payments
		WHERE 1=1
	`
	var args []any
	if dateFrom != nil {
		args = append(args, *dateFrom)
		query += fmt.Sprintf(" AND pay_date >= $%d", len(args))
	}
	if dateTo != nil {
		args = append(args, *dateTo)
		query += fmt.Sprintf(" AND pay_date <= $%d", len(args))
	}

	summary := PaymentSummary{DateFrom: strOrEmpty(dateFrom), DateTo: strOrEmpty(dateTo)}
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&summary.Count, &summary.SumTotal, &summary.SumDeposit, &summary.SumRemain)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payments: %w", err)
	}

	s.cacheSet(ctx, key, summary)
	return &summary, nil
}

func (s *reportingService) LowStock(ctx context.Context) ([]Product, error) {
	key := reportCachePrefix + "low-stock"
	if cached, ok := s.cacheGet(ctx, key); ok {
		var products []Product
		if err := json.Unmarshal(cached, &products); err == nil {
			return products, nil
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, unit_price, quantity, reorder_point, is_active, created_at
		FROM products
		WHERE is_active = true AND quantity <= reorder_point
		ORDER BY quantity, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Quantity, &p.ReorderPoint, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, products)
	return products, nil
}

func (s *reportingService) InvalidateReports(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, reportCachePrefix); err != nil {
		s.log.WithError(err).Warn("report cache invalidation failed")
	}
}

// Cache failures degrade to a database read, never to an error.

func (s *reportingService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("report cache read failed")
		return nil, false
	}
	return val, ok
}

func (s *reportingService) cacheSet(ctx context.Context, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("report cache write failed")
	}
}

func strOrAll(s *string) string {
	if s == nil {
		return "all"
	}
	return *s
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
