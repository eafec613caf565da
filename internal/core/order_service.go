package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderService manages sales orders. Every mutation runs in a single
// transaction that also carries its stock movements, so an order and the
// quantities it consumed can never disagree.
type OrderService interface {
	Create(ctx context.Context, input OrderInput) (*Order, error)
	// Update replaces header fields and, when upd.Lines is non-nil, the full
	// line set. Replaced lines restore their stock before the new lines are
	// validated and applied; any failure rolls the order back untouched.
	Update(ctx context.Context, orderID int, upd OrderUpdate) (*Order, error)
	// Delete restores the order's stock and removes it. Refuses with
	// OrderHasPaymentsError when payments reference the order.
	Delete(ctx context.Context, orderID int) error
	// ForceDelete removes the order's payments first, then deletes like Delete.
	ForceDelete(ctx context.Context, orderID int) error
	Get(ctx context.Context, orderID int) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
}

// OrderFilter narrows List results. Nil fields match everything. Unpaid
// selects orders that have no payment rows at all.
type OrderFilter struct {
	StaffID    *int
	CustomerID *int
	DateFrom   *string // YYYY-MM-DD inclusive
	DateTo     *string // YYYY-MM-DD inclusive
	Unpaid     bool
}

type orderService struct {
	pool   *pgxpool.Pool
	ledger StockLedger
	log    *logrus.Logger
}

func NewOrderService(pool *pgxpool.Pool, ledger StockLedger, log *logrus.Logger) OrderService {
	return &orderService{pool: pool, ledger: ledger, log: log}
}

// ── Mutations ────────────────────────────────────────────────────────────────

func (s *orderService) Create(ctx context.Context, input OrderInput) (*Order, error) {
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}
	ordDate, err := time.Parse("2006-01-02", input.OrdDate)
	if err != nil {
		return nil, fmt.Errorf("invalid order date %q: %w", input.OrdDate, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	customerName, err := resolveCustomerName(ctx, tx, input.CustomerID, input.CustomerName)
	if err != nil {
		return nil, err
	}

	products, err := s.ledger.LockProducts(ctx, tx, lineProductIDs(input.Lines))
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, line := range input.Lines {
		if err := s.ledger.Decrement(ctx, tx, products[line.ProductID], line.Qty); err != nil {
			return nil, err
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
	}

	orderNumber, err := nextDocumentNumber(ctx, tx, numberKindOrder, ordDate.Year())
	if err != nil {
		return nil, err
	}

	var orderID int
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, ord_date, staff_id, customer_id, customer_name,
		                    total, subtotal, tax, tax_percent, discount, discount_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, orderNumber, input.OrdDate, input.StaffID, input.CustomerID, customerName,
		total, input.Subtotal, input.Tax, input.TaxPercent, input.Discount, input.DiscountPercent,
	).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertOrderLines(ctx, tx, orderID, input.Lines, products); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order create: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":     orderID,
		"order_number": orderNumber,
		"total":        total.StringFixed(2),
		"lines":        len(input.Lines),
	}).Info("order created")

	return s.Get(ctx, orderID)
}

func (s *orderService) Update(ctx context.Context, orderID int, upd OrderUpdate) (*Order, error) {
	if upd.Lines != nil {
		if err := validateLines(upd.Lines); err != nil {
			return nil, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrderRow(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	ordDate := order.OrdDate
	if upd.OrdDate != nil {
		if _, err := time.Parse("2006-01-02", *upd.OrdDate); err != nil {
			return nil, fmt.Errorf("invalid order date %q: %w", *upd.OrdDate, err)
		}
		ordDate = *upd.OrdDate
	}
	staffID := order.StaffID
	if upd.StaffID != nil {
		staffID = *upd.StaffID
	}
	customerID := order.CustomerID
	customerName := order.CustomerName
	if upd.CustomerID != nil {
		customerID = upd.CustomerID
		customerName, err = resolveCustomerName(ctx, tx, customerID, "")
		if err != nil {
			return nil, err
		}
	} else if upd.CustomerName != nil {
		customerID = nil
		customerName = *upd.CustomerName
	}

	total := order.Total
	if upd.Lines != nil {
		oldLines, err := fetchOrderLines(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}

		// Lock the union of old and new products up front, then return the
		// old quantities before checking availability for the new set. An
		// unchanged line therefore never fails the availability check.
		ids := lineProductIDs(upd.Lines)
		for _, ol := range oldLines {
			ids = append(ids, ol.ProductID)
		}
		products, err := s.ledger.LockProducts(ctx, tx, ids)
		if err != nil {
			return nil, err
		}
		for _, ol := range oldLines {
			if err := s.ledger.Increment(ctx, tx, ol.ProductID, ol.Qty); err != nil {
				return nil, err
			}
			p := products[ol.ProductID]
			p.Quantity += ol.Qty
			products[ol.ProductID] = p
		}
		if _, err := tx.Exec(ctx, "DELETE FROM order_lines WHERE order_id = $1", orderID); err != nil {
			return nil, fmt.Errorf("failed to clear order lines: %w", err)
		}

		total = decimal.Zero
		for _, line := range upd.Lines {
			if err := s.ledger.Decrement(ctx, tx, products[line.ProductID], line.Qty); err != nil {
				return nil, err
			}
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
		}
		if err := insertOrderLines(ctx, tx, orderID, upd.Lines, products); err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET ord_date = $1, staff_id = $2, customer_id = $3, customer_name = $4,
		    total = $5, updated_at = NOW()
		WHERE id = $6
	`, ordDate, staffID, customerID, customerName, total, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %d: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"total":    total.StringFixed(2),
	}).Info("order updated")

	return s.Get(ctx, orderID)
}

func (s *orderService) Delete(ctx context.Context, orderID int) error {
	return s.delete(ctx, orderID, false)
}

func (s *orderService) ForceDelete(ctx context.Context, orderID int) error {
	return s.delete(ctx, orderID, true)
}

func (s *orderService) delete(ctx context.Context, orderID int, force bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockOrderRow(ctx, tx, orderID); err != nil {
		return err
	}

	var paymentsCount int
	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM payments WHERE order_id = $1", orderID).Scan(&paymentsCount); err != nil {
		return fmt.Errorf("failed to count payments: %w", err)
	}
	if paymentsCount > 0 {
		if !force {
			return &OrderHasPaymentsError{OrderID: orderID, PaymentsCount: paymentsCount}
		}
		if _, err := tx.Exec(ctx, "DELETE FROM payments WHERE order_id = $1", orderID); err != nil {
			return fmt.Errorf("failed to delete payments of order %d: %w", orderID, err)
		}
	}

	lines, err := fetchOrderLines(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		if _, err := s.ledger.LockProducts(ctx, tx, orderLineProductIDs(lines)); err != nil {
			return err
		}
		for _, line := range lines {
			if err := s.ledger.Increment(ctx, tx, line.ProductID, line.Qty); err != nil {
				return err
			}
		}
	}

	// Lines cascade.
	if _, err := tx.Exec(ctx, "DELETE FROM orders WHERE id = $1", orderID); err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order delete: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":         orderID,
		"force":            force,
		"payments_removed": paymentsCount,
	}).Info("order deleted")
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *orderService) Get(ctx context.Context, orderID int) (*Order, error) {
	var o Order
	err := s.pool.QueryRow(ctx, `
		SELECT o.id, o.order_number, o.ord_date::text, o.staff_id, st.full_name,
		       o.customer_id, COALESCE(o.customer_name, ''),
		       o.total, o.subtotal, o.tax, o.tax_percent, o.discount, o.discount_percent,
		       o.created_at
		FROM orders o
		JOIN staff st ON st.id = o.staff_id
		WHERE o.id = $1
	`, orderID).Scan(
		&o.ID, &o.OrderNumber, &o.OrdDate, &o.StaffID, &o.StaffName,
		&o.CustomerID, &o.CustomerName,
		&o.Total, &o.Subtotal, &o.Tax, &o.TaxPercent, &o.Discount, &o.DiscountPercent,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "order", ID: orderID}
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	lines, err := fetchOrderLines(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func (s *orderService) List(ctx context.Context, filter OrderFilter) ([]Order, error) {
	query := `
		SELECT o.id, o.order_number, o.ord_date::text, o.staff_id, st.full_name,
		       o.customer_id, COALESCE(o.customer_name, ''),
		       o.total, o.subtotal, o.tax, o.tax_percent, o.discount, o.discount_percent,
		       o.created_at
		FROM orders o
		JOIN staff st ON st.id = o.staff_id
		WHERE 1=1
	`
	var args []any
	if filter.StaffID != nil {
		args = append(args, *filter.StaffID)
		query += fmt.Sprintf(" AND o.staff_id = $%d", len(args))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		query += fmt.Sprintf(" AND o.customer_id = $%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += fmt.Sprintf(" AND o.ord_date >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += fmt.Sprintf(" AND o.ord_date <= $%d", len(args))
	}
	if filter.Unpaid {
		query += " AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.order_id = o.id)"
	}
	query += " ORDER BY o.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.OrdDate, &o.StaffID, &o.StaffName,
			&o.CustomerID, &o.CustomerName,
			&o.Total, &o.Subtotal, &o.Tax, &o.TaxPercent, &o.Discount, &o.DiscountPercent,
			&o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return errors.New("at least one line is required")
	}
	seen := make(map[int]bool, len(lines))
	for i, line := range lines {
		if line.ProductID <= 0 {
			return fmt.Errorf("line %d: product id is required", i+1)
		}
		if line.Qty <= 0 {
			return fmt.Errorf("line %d: quantity must be positive", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("line %d: unit price cannot be negative", i+1)
		}
		if seen[line.ProductID] {
			return fmt.Errorf("line %d: duplicate product %d", i+1, line.ProductID)
		}
		seen[line.ProductID] = true
	}
	return nil
}

func lineProductIDs(lines []LineInput) []int {
	ids := make([]int, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func orderLineProductIDs(lines []OrderLine) []int {
	ids := make([]int, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func resolveCustomerName(ctx context.Context, tx pgx.Tx, customerID *int, fallback string) (string, error) {
	if customerID == nil {
		return fallback, nil
	}
	var name string
	err := tx.QueryRow(ctx, "SELECT name FROM customers WHERE id = $1", *customerID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", &NotFoundError{Kind: "customer", ID: *customerID}
		}
		return "", fmt.Errorf("failed to resolve customer %d: %w", *customerID, err)
	}
	return name, nil
}

func insertOrderLines(ctx context.Context, tx pgx.Tx, orderID int, lines []LineInput, products map[int]Product) error {
	for i, line := range lines {
		amount := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
		_, err := tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, product_id, product_name, qty, unit_price, amount)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, line.ProductID, products[line.ProductID].Name, line.Qty, line.UnitPrice, amount)
		if err != nil {
			return fmt.Errorf("failed to insert order line %d: %w", i+1, err)
		}
	}
	return nil
}

// rowQuerier is the subset of pool and tx used by shared line fetches.
type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func fetchOrderLines(ctx context.Context, q rowQuerier, orderID int) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, qty, unit_price, amount
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Qty, &l.UnitPrice, &l.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
