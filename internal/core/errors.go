package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// The stock and payment engines report business-rule violations as typed
// errors so callers can map them to user-facing responses without parsing
// message strings. Plumbing failures stay plain wrapped errors.

// NotFoundError reports a missing entity by kind and id.
type NotFoundError struct {
	Kind string // "order", "product", "import", "payment", ...
	ID   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// InsufficientStockError reports an order line that asked for more units
// than the product has on hand.
type InsufficientStockError struct {
	ProductID   int
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for product: %s. Available: %d, Requested: %d",
		e.ProductName, e.Available, e.Requested)
}

// ExceedsOrderTotalError reports a single deposit larger than the order total.
type ExceedsOrderTotalError struct {
	Deposit    decimal.Decimal
	OrderTotal decimal.Decimal
}

func (e *ExceedsOrderTotalError) Error() string {
	return fmt.Sprintf("Deposit amount ($%s) cannot exceed order total ($%s)",
		e.Deposit.StringFixed(2), e.OrderTotal.StringFixed(2))
}

// ExceedsRemainingBalanceError reports a deposit that would push the sum of
// payments past the order total. MaxAllowed is the largest deposit the order
// can still accept.
type ExceedsRemainingBalanceError struct {
	Deposit    decimal.Decimal
	TotalPaid  decimal.Decimal
	OrderTotal decimal.Decimal
	MaxAllowed decimal.Decimal
}

func (e *ExceedsRemainingBalanceError) Error() string {
	return fmt.Sprintf("Payment would exceed order total. Current total paid: $%s, Order total: $%s. Maximum allowed: $%s",
		e.TotalPaid.StringFixed(2), e.OrderTotal.StringFixed(2), e.MaxAllowed.StringFixed(2))
}

// AlreadyFullyPaidError reports a deposit against an order whose remaining
// balance is below the payment tolerance.
type AlreadyFullyPaidError struct {
	TotalPaid  decimal.Decimal
	OrderTotal decimal.Decimal
}

func (e *AlreadyFullyPaidError) Error() string {
	return fmt.Sprintf("Order is already fully paid. Total paid: $%s, Order total: $%s",
		e.TotalPaid.StringFixed(2), e.OrderTotal.StringFixed(2))
}

// OrderHasPaymentsError reports a plain order delete that was refused because
// payments reference the order. Force deletion removes them.
type OrderHasPaymentsError struct {
	OrderID       int
	PaymentsCount int
}

func (e *OrderHasPaymentsError) Error() string {
	return fmt.Sprintf("order %d has %d payment(s); delete them first or force delete",
		e.OrderID, e.PaymentsCount)
}

// ConcurrentModificationError reports a row-lock acquisition that timed out
// because another transaction held the same order or product rows.
type ConcurrentModificationError struct {
	Err error
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification, retry the operation: %v", e.Err)
}

func (e *ConcurrentModificationError) Unwrap() error { return e.Err }

// lockContention reports whether err is a Postgres lock_not_available or
// deadlock_detected failure, the two shapes FOR UPDATE contention takes.
func lockContention(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "55P03" || pgErr.Code == "40P01"
}
