package core_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"stockdesk/internal/core"
)

func TestReconcileService_TrimsOverpaidOrder(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ordSvc := newOrderService(pool)
	paySvc := newPaymentService(pool)
	recSvc := core.NewReconcileService(pool, testLogger())
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	first, err := paySvc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	second, err := paySvc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-03", Deposit: decimal.NewFromInt(60),
	})
	if err != nil {
		t.Fatalf("second payment failed: %v", err)
	}

	// Shrinking the order to 30 leaves 110 paid against a 30 total.
	if _, err := ordSvc.Update(ctx, order.ID, core.OrderUpdate{
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 3, UnitPrice: decimal.NewFromInt(10)},
		},
	}); err != nil {
		t.Fatalf("order update failed: %v", err)
	}

	report, err := recSvc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.DeletedPayments != 1 {
		t.Errorf("deleted payments = %d, want 1 (the newest, 60)", report.DeletedPayments)
	}
	if report.ShrunkPayments != 1 {
		t.Errorf("shrunk payments = %d, want 1 (40 down to 30)", report.ShrunkPayments)
	}

	if _, err := paySvc.Get(ctx, second.Payment.ID); err == nil {
		t.Error("newest payment should have been deleted")
	}
	surviving, err := paySvc.Get(ctx, first.Payment.ID)
	if err != nil {
		t.Fatalf("get surviving payment failed: %v", err)
	}
	if !surviving.Deposit.Equal(decimal.NewFromInt(30)) {
		t.Errorf("surviving deposit = %s, want 30", surviving.Deposit)
	}
	if !surviving.Total.Equal(decimal.NewFromInt(30)) {
		t.Errorf("surviving total snapshot = %s, want 30", surviving.Total)
	}
	if !surviving.Remain.Equal(decimal.Zero) {
		t.Errorf("surviving remain = %s, want 0", surviving.Remain)
	}
}

func TestReconcileService_Idempotent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ordSvc := newOrderService(pool)
	paySvc := newPaymentService(pool)
	recSvc := core.NewReconcileService(pool, testLogger())
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	if _, err := paySvc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(80),
	}); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if _, err := ordSvc.Update(ctx, order.ID, core.OrderUpdate{
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 5, UnitPrice: decimal.NewFromInt(10)},
		},
	}); err != nil {
		t.Fatalf("order update failed: %v", err)
	}

	first, err := recSvc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	if first.ShrunkPayments != 1 {
		t.Fatalf("first pass shrunk = %d, want 1", first.ShrunkPayments)
	}

	second, err := recSvc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if second.DeletedPayments != 0 || second.ShrunkPayments != 0 {
		t.Errorf("second pass changed state: %+v", second)
	}
}

func TestReconcileService_RepairsWaterfallAfterPaymentDelete(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	paySvc := newPaymentService(pool)
	recSvc := core.NewReconcileService(pool, testLogger())
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	first, err := paySvc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	second, err := paySvc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-03", Deposit: decimal.NewFromInt(30),
	})
	if err != nil {
		t.Fatalf("second payment failed: %v", err)
	}

	if err := paySvc.Delete(ctx, first.Payment.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := recSvc.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	repaired, err := paySvc.Get(ctx, second.Payment.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !repaired.Remain.Equal(decimal.NewFromInt(70)) {
		t.Errorf("repaired remain = %s, want 70", repaired.Remain)
	}
}

func TestReconcileService_LeavesHealthyOrdersAlone(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	paySvc := newPaymentService(pool)
	recSvc := core.NewReconcileService(pool, testLogger())
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	receipt, err := paySvc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	report, err := recSvc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.OrdersChecked != 1 || report.DeletedPayments != 0 || report.ShrunkPayments != 0 {
		t.Errorf("healthy order modified: %+v", report)
	}

	unchanged, err := paySvc.Get(ctx, receipt.Payment.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !unchanged.Deposit.Equal(decimal.NewFromInt(50)) || !unchanged.Remain.Equal(decimal.NewFromInt(50)) {
		t.Errorf("payment changed: deposit %s remain %s", unchanged.Deposit, unchanged.Remain)
	}
}
