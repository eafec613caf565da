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

// PaymentService allocates deposits against orders. The order row is locked
// FOR UPDATE before the prior-sum read, so two concurrent deposits on the
// same order serialize and the ceiling check always sees committed state.
//
// tolerance absorbs cent-level rounding: an order is considered fully paid
// once its remaining balance drops below it, and a deposit may overshoot the
// total by at most that much.
type PaymentService interface {
	Create(ctx context.Context, input PaymentInput) (*PaymentReceipt, error)
	Update(ctx context.Context, paymentID int, upd PaymentUpdate) (*PaymentReceipt, error)
	// Delete removes a single payment without touching its siblings' remains;
	// the reconciliation pass repairs the waterfall.
	Delete(ctx context.Context, paymentID int) error
	Get(ctx context.Context, paymentID int) (*Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]Payment, error)
	OrderPaymentStatus(ctx context.Context, orderID int) (*OrderPaymentStatus, error)
}

// PaymentFilter narrows List results. Nil fields match everything.
type PaymentFilter struct {
	OrderID  *int
	StaffID  *int
	DateFrom *string // YYYY-MM-DD inclusive
	DateTo   *string // YYYY-MM-DD inclusive
}

type paymentService struct {
	pool      *pgxpool.Pool
	tolerance decimal.Decimal
	log       *logrus.Logger
}

func NewPaymentService(pool *pgxpool.Pool, tolerance decimal.Decimal, log *logrus.Logger) PaymentService {
	return &paymentService{pool: pool, tolerance: tolerance, log: log}
}

// ── Mutations ────────────────────────────────────────────────────────────────

func (s *paymentService) Create(ctx context.Context, input PaymentInput) (*PaymentReceipt, error) {
	if !input.Deposit.IsPositive() {
		return nil, errors.New("deposit must be positive")
	}
	if _, err := time.Parse("2006-01-02", input.PayDate); err != nil {
		return nil, fmt.Errorf("invalid payment date %q: %w", input.PayDate, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrderRow(ctx, tx, input.OrderID)
	if err != nil {
		return nil, err
	}

	priorSum, err := sumDeposits(ctx, tx, order.ID, 0)
	if err != nil {
		return nil, err
	}
	if err := s.checkCeiling(order.Total, priorSum, input.Deposit); err != nil {
		return nil, err
	}

	var seqNo int
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(seq_no), 0) + 1 FROM payments WHERE order_id = $1", order.ID).Scan(&seqNo)
	if err != nil {
		return nil, fmt.Errorf("failed to assign payment sequence: %w", err)
	}

	var paymentID int
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (order_id, staff_id, pay_date, total, deposit, remain, seq_no)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		RETURNING id
	`, order.ID, input.StaffID, input.PayDate, order.Total, input.Deposit, seqNo).Scan(&paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	if err := recomputeOrderWaterfall(ctx, tx, order.ID, order.Total); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment create: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"order_id":   order.ID,
		"deposit":    input.Deposit.StringFixed(2),
		"seq_no":     seqNo,
	}).Info("payment recorded")

	return s.receipt(ctx, paymentID, order.Total, priorSum.Add(input.Deposit))
}

func (s *paymentService) Update(ctx context.Context, paymentID int, upd PaymentUpdate) (*PaymentReceipt, error) {
	if upd.Deposit != nil && !upd.Deposit.IsPositive() {
		return nil, errors.New("deposit must be positive")
	}
	if upd.PayDate != nil {
		if _, err := time.Parse("2006-01-02", *upd.PayDate); err != nil {
			return nil, fmt.Errorf("invalid payment date %q: %w", *upd.PayDate, err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cur Payment
	err = tx.QueryRow(ctx, `
		SELECT id, order_id, staff_id, pay_date::text, total, deposit, remain, seq_no
		FROM payments
		WHERE id = $1
	`, paymentID).Scan(&cur.ID, &cur.OrderID, &cur.StaffID, &cur.PayDate,
		&cur.Total, &cur.Deposit, &cur.Remain, &cur.SeqNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "payment", ID: paymentID}
		}
		return nil, fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}

	targetOrderID := cur.OrderID
	if upd.OrderID != nil {
		targetOrderID = *upd.OrderID
	}

	// On a cross-order move both rows are locked in ascending id order, so
	// two opposed moves cannot deadlock against each other.
	var order, src *Order
	switch {
	case targetOrderID == cur.OrderID:
		order, err = lockOrderRow(ctx, tx, targetOrderID)
	case cur.OrderID < targetOrderID:
		if src, err = lockOrderRow(ctx, tx, cur.OrderID); err == nil {
			order, err = lockOrderRow(ctx, tx, targetOrderID)
		}
	default:
		if order, err = lockOrderRow(ctx, tx, targetOrderID); err == nil {
			src, err = lockOrderRow(ctx, tx, cur.OrderID)
		}
	}
	if err != nil {
		return nil, err
	}

	deposit := cur.Deposit
	if upd.Deposit != nil {
		deposit = *upd.Deposit
	}
	staffID := cur.StaffID
	if upd.StaffID != nil {
		staffID = *upd.StaffID
	}
	payDate := cur.PayDate
	if upd.PayDate != nil {
		payDate = *upd.PayDate
	}

	// Revalidate against the target order with this payment's own deposit
	// excluded, so shrinking a deposit is always allowed.
	excludeID := paymentID
	if targetOrderID != cur.OrderID {
		excludeID = 0
	}
	priorSum, err := sumDeposits(ctx, tx, targetOrderID, excludeID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCeiling(order.Total, priorSum, deposit); err != nil {
		return nil, err
	}

	seqNo := cur.SeqNo
	if targetOrderID != cur.OrderID {
		err = tx.QueryRow(ctx,
			"SELECT COALESCE(MAX(seq_no), 0) + 1 FROM payments WHERE order_id = $1", targetOrderID).Scan(&seqNo)
		if err != nil {
			return nil, fmt.Errorf("failed to assign payment sequence: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE payments
		SET order_id = $1, staff_id = $2, pay_date = $3, total = $4, deposit = $5, seq_no = $6
		WHERE id = $7
	`, targetOrderID, staffID, payDate, order.Total, deposit, seqNo, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment %d: %w", paymentID, err)
	}

	if err := recomputeOrderWaterfall(ctx, tx, targetOrderID, order.Total); err != nil {
		return nil, err
	}
	if src != nil {
		// The source order also needs its waterfall refreshed.
		if err := recomputeOrderWaterfall(ctx, tx, src.ID, src.Total); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment update: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"order_id":   targetOrderID,
		"deposit":    deposit.StringFixed(2),
	}).Info("payment updated")

	return s.receipt(ctx, paymentID, order.Total, priorSum.Add(deposit))
}

func (s *paymentService) Delete(ctx context.Context, paymentID int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM payments WHERE id = $1", paymentID)
	if err != nil {
		return fmt.Errorf("failed to delete payment %d: %w", paymentID, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Kind: "payment", ID: paymentID}
	}
	s.log.WithField("payment_id", paymentID).Info("payment deleted")
	return nil
}

// checkCeiling enforces the payment ceiling for one prospective deposit. The
// fully-paid rejection only applies when the deposit would actually overshoot;
// a sub-tolerance top-up on a settled order passes.
func (s *paymentService) checkCeiling(orderTotal, priorSum, deposit decimal.Decimal) error {
	if deposit.GreaterThan(orderTotal) {
		return &ExceedsOrderTotalError{Deposit: deposit, OrderTotal: orderTotal}
	}
	if priorSum.Add(deposit).GreaterThan(orderTotal.Add(s.tolerance)) {
		remaining := orderTotal.Sub(priorSum)
		if remaining.LessThan(s.tolerance) {
			return &AlreadyFullyPaidError{TotalPaid: priorSum, OrderTotal: orderTotal}
		}
		return &ExceedsRemainingBalanceError{
			Deposit:    deposit,
			TotalPaid:  priorSum,
			OrderTotal: orderTotal,
			MaxAllowed: remaining,
		}
	}
	return nil
}

func (s *paymentService) receipt(ctx context.Context, paymentID int, orderTotal, totalPaid decimal.Decimal) (*PaymentReceipt, error) {
	p, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	remaining := orderTotal.Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	fullyPaid := remaining.LessThan(s.tolerance)
	message := fmt.Sprintf("Payment recorded. Remaining balance: $%s", remaining.StringFixed(2))
	if fullyPaid {
		message = "Payment recorded. Order is now fully paid."
	}
	return &PaymentReceipt{
		Payment:        *p,
		OrderRemaining: remaining,
		FullyPaid:      fullyPaid,
		Message:        message,
	}, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *paymentService) Get(ctx context.Context, paymentID int) (*Payment, error) {
	var p Payment
	err := s.pool.QueryRow(ctx, `
		SELECT p.id, p.order_id, p.staff_id, st.full_name, p.pay_date::text,
		       p.total, p.deposit, p.remain, p.seq_no, p.created_at
		FROM payments p
		JOIN staff st ON st.id = p.staff_id
		WHERE p.id = $1
	`, paymentID).Scan(&p.ID, &p.OrderID, &p.StaffID, &p.StaffName, &p.PayDate,
		&p.Total, &p.Deposit, &p.Remain, &p.SeqNo, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "payment", ID: paymentID}
		}
		return nil, fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}
	return &p, nil
}

func (s *paymentService) List(ctx context.Context, filter PaymentFilter) ([]Payment, error) {
	query := `
		SELECT p.id, p.order_id, p.staff_id, st.full_name, p.pay_date::text,
		       p.total, p.deposit, p.remain, p.seq_no, p.created_at
		FROM payments p
		JOIN staff st ON st.id = p.staff_id
		WHERE 1=1
	`
	var args []any
	if filter.OrderID != nil {
		args = append(args, *filter.OrderID)
		query += fmt.Sprintf(" AND p.order_id = $%d", len(args))
	}
	if filter.StaffID != nil {
		args = append(args, *filter.StaffID)
		query += fmt.Sprintf(" AND p.staff_id = $%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += fmt.Sprintf(" AND p.pay_date >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += fmt.Sprintf(" AND p.pay_date <= $%d", len(args))
	}
	query += " ORDER BY p.pay_date, p.seq_no, p.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.StaffID, &p.StaffName, &p.PayDate,
			&p.Total, &p.Deposit, &p.Remain, &p.SeqNo, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *paymentService) OrderPaymentStatus(ctx context.Context, orderID int) (*OrderPaymentStatus, error) {
	var orderTotal decimal.Decimal
	err := s.pool.QueryRow(ctx, "SELECT total FROM orders WHERE id = $1", orderID).Scan(&orderTotal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "order", ID: orderID}
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	payments, err := s.List(ctx, PaymentFilter{OrderID: &orderID})
	if err != nil {
		return nil, err
	}
	totalPaid := decimal.Zero
	for _, p := range payments {
		totalPaid = totalPaid.Add(p.Deposit)
	}
	remaining := orderTotal.Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return &OrderPaymentStatus{
		OrderID:       orderID,
		OrderTotal:    orderTotal,
		PaymentsCount: len(payments),
		TotalPaid:     totalPaid,
		Remaining:     remaining,
		Payments:      payments,
	}, nil
}

// ── Shared helpers ───────────────────────────────────────────────────────────

// sumDeposits totals the committed deposits on an order, optionally excluding
// one payment (0 excludes nothing). Caller must hold the order-row lock.
func sumDeposits(ctx context.Context, tx pgx.Tx, orderID, excludePaymentID int) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(deposit), 0)
		FROM payments
		WHERE order_id = $1 AND id <> $2
	`, orderID, excludePaymentID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum deposits for order %d: %w", orderID, err)
	}
	return sum, nil
}

// recomputeOrderWaterfall rewrites the remain of every payment on an order so
// the stored values match the allocation math. Caller must hold the order-row
// lock.
func recomputeOrderWaterfall(ctx context.Context, tx pgx.Tx, orderID int, orderTotal decimal.Decimal) error {
	rows, err := tx.Query(ctx, `
		SELECT id, pay_date::text, deposit, remain, seq_no
		FROM payments
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return fmt.Errorf("failed to load payments for recompute: %w", err)
	}
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.PayDate, &p.Deposit, &p.Remain, &p.SeqNo); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan payment for recompute: %w", err)
		}
		payments = append(payments, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read payments for recompute: %w", err)
	}

	recomputeRemains(orderTotal, payments)
	for _, p := range payments {
		if _, err := tx.Exec(ctx,
			"UPDATE payments SET remain = $1, total = $2 WHERE id = $3", p.Remain, orderTotal, p.ID); err != nil {
			return fmt.Errorf("failed to rewrite remain for payment %d: %w", p.ID, err)
		}
	}
	return nil
}
