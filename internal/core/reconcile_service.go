package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReconcileService repairs payment state that drifted from the order it
// belongs to: overpayments are trimmed newest-first, stale total snapshots
// are refreshed, and every remain is recomputed from the waterfall. Each
// order is repaired in its own transaction, so a failure on one order leaves
// the others fixed. Running it twice in a row is a no-op the second time.
type ReconcileService interface {
	Reconcile(ctx context.Context) (*ReconcileReport, error)
}

type reconcileService struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

func NewReconcileService(pool *pgxpool.Pool, log *logrus.Logger) ReconcileService {
	return &reconcileService{pool: pool, log: log}
}

func (s *reconcileService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT order_id FROM payments ORDER BY order_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list orders with payments: %w", err)
	}
	var orderIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		orderIDs = append(orderIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders with payments: %w", err)
	}

	report := &ReconcileReport{}
	for _, orderID := range orderIDs {
		if err := s.reconcileOrder(ctx, orderID, report); err != nil {
			return nil, fmt.Errorf("reconcile order %d: %w", orderID, err)
		}
		report.OrdersChecked++
	}

	s.log.WithFields(logrus.Fields{
		"orders_checked":   report.OrdersChecked,
		"deleted_payments": report.DeletedPayments,
		"shrunk_payments":  report.ShrunkPayments,
	}).Info("reconciliation finished")
	return report, nil
}

func (s *reconcileService) reconcileOrder(ctx context.Context, orderID int, report *ReconcileReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrderRow(ctx, tx, orderID)
	if err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, pay_date::text, total, deposit, remain, seq_no
		FROM payments
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.PayDate, &p.Total, &p.Deposit, &p.Remain, &p.SeqNo); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read payments: %w", err)
	}
	if len(payments) == 0 {
		return tx.Commit(ctx)
	}

	plan := planOverpaymentTrim(order.Total, payments)
	for _, action := range plan {
		if action.Delete {
			if _, err := tx.Exec(ctx, "DELETE FROM payments WHERE id = $1", action.PaymentID); err != nil {
				return fmt.Errorf("failed to delete payment %d: %w", action.PaymentID, err)
			}
			report.DeletedPayments++
			report.Notes = append(report.Notes,
				fmt.Sprintf("order %d: deleted excess payment %d", orderID, action.PaymentID))
			continue
		}
		if _, err := tx.Exec(ctx,
			"UPDATE payments SET deposit = $1 WHERE id = $2", action.NewDeposit, action.PaymentID); err != nil {
			return fmt.Errorf("failed to shrink payment %d: %w", action.PaymentID, err)
		}
		report.ShrunkPayments++
		report.Notes = append(report.Notes,
			fmt.Sprintf("order %d: shrunk payment %d to %s", orderID, action.PaymentID, action.NewDeposit.StringFixed(2)))
	}

	// Recompute over the surviving payments with their post-trim deposits and
	// rewrite remain and the total snapshot in one pass.
	surviving := applyTrimPlan(payments, plan)
	recomputeRemains(order.Total, surviving)
	for _, p := range surviving {
		if _, err := tx.Exec(ctx,
			"UPDATE payments SET total = $1, deposit = $2, remain = $3 WHERE id = $4",
			order.Total, p.Deposit, p.Remain, p.ID); err != nil {
			return fmt.Errorf("failed to rewrite payment %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reconcile: %w", err)
	}

	if len(plan) > 0 {
		paid := decimal.Zero
		for _, p := range surviving {
			paid = paid.Add(p.Deposit)
		}
		s.log.WithFields(logrus.Fields{
			"order_id":   orderID,
			"total":      order.Total.StringFixed(2),
			"total_paid": paid.StringFixed(2),
			"trims":      len(plan),
		}).Warn("overpaid order repaired")
	}
	return nil
}
