package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// StockLedger is the single gate through which on-hand quantities change.
// Every method is TX-scoped: the caller owns the transaction so stock moves
// commit or roll back together with the order or import that caused them.
// Product rows are locked with FOR UPDATE before any read-check-write.
type StockLedger interface {
	// LockProducts acquires row locks on the given products in ascending id
	// order and returns their current state. Missing ids yield NotFoundError.
	LockProducts(ctx context.Context, tx pgx.Tx, productIDs []int) (map[int]Product, error)
	// Decrement subtracts qty from a product after verifying availability.
	// The product row must already be locked via LockProducts.
	Decrement(ctx context.Context, tx pgx.Tx, product Product, qty int) error
	// DecrementClamped subtracts qty but floors the result at zero, logging a
	// warning when units are lost. Used when reversing imports whose stock
	// was already sold.
	DecrementClamped(ctx context.Context, tx pgx.Tx, product Product, qty int) error
	// Increment adds qty to a product.
	Increment(ctx context.Context, tx pgx.Tx, productID, qty int) error
}

type stockLedger struct {
	log *logrus.Logger
}

func NewStockLedger(log *logrus.Logger) StockLedger {
	return &stockLedger{log: log}
}

func (l *stockLedger) LockProducts(ctx context.Context, tx pgx.Tx, productIDs []int) (map[int]Product, error) {
	// Dedupe and sort so concurrent transactions lock in the same order.
	seen := make(map[int]bool, len(productIDs))
	ids := make([]int, 0, len(productIDs))
	for _, id := range productIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	rows, err := tx.Query(ctx, `
		SELECT id, name, unit_price, quantity, reorder_point, is_active, created_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Quantity, &p.ReorderPoint, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		if lockContention(err) {
			return nil, &ConcurrentModificationError{Err: err}
		}
		return nil, fmt.Errorf("failed to read locked products: %w", err)
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, &NotFoundError{Kind: "product", ID: id}
		}
	}
	return products, nil
}

func (l *stockLedger) Decrement(ctx context.Context, tx pgx.Tx, product Product, qty int) error {
	if product.Quantity < qty {
		return &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Quantity,
			Requested:   qty,
		}
	}
	tag, err := tx.Exec(ctx,
		"UPDATE products SET quantity = quantity - $1 WHERE id = $2", qty, product.ID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for product %d: %w", product.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Kind: "product", ID: product.ID}
	}
	return nil
}

func (l *stockLedger) DecrementClamped(ctx context.Context, tx pgx.Tx, product Product, qty int) error {
	effective := qty
	if product.Quantity < qty {
		effective = product.Quantity
		l.log.WithFields(logrus.Fields{
			"product_id": product.ID,
			"on_hand":    product.Quantity,
			"reversal":   qty,
			"lost_units": qty - product.Quantity,
		}).Warn("stock reversal clamped at zero; units were already sold")
	}
	if effective == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		"UPDATE products SET quantity = quantity - $1 WHERE id = $2", effective, product.ID)
	if err != nil {
		return fmt.Errorf("failed to reverse stock for product %d: %w", product.ID, err)
	}
	return nil
}

func (l *stockLedger) Increment(ctx context.Context, tx pgx.Tx, productID, qty int) error {
	tag, err := tx.Exec(ctx,
		"UPDATE products SET quantity = quantity + $1 WHERE id = $2", qty, productID)
	if err != nil {
		return fmt.Errorf("failed to increment stock for product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Kind: "product", ID: productID}
	}
	return nil
}

// lockOrderRow locks one order header row and returns it without lines.
// Payment and order mutations both start here so they serialize per order.
func lockOrderRow(ctx context.Context, tx pgx.Tx, orderID int) (*Order, error) {
	var o Order
	err := tx.QueryRow(ctx, `
		SELECT id, order_number, ord_date::text, staff_id, customer_id, customer_name,
		       total, subtotal, tax, tax_percent, discount, discount_percent, created_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(&o.ID, &o.OrderNumber, &o.OrdDate, &o.StaffID, &o.CustomerID, &o.CustomerName,
		&o.Total, &o.Subtotal, &o.Tax, &o.TaxPercent, &o.Discount, &o.DiscountPercent, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "order", ID: orderID}
		}
		if lockContention(err) {
			return nil, &ConcurrentModificationError{Err: err}
		}
		return nil, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	return &o, nil
}
