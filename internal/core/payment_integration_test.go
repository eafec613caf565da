package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"stockdesk/internal/core"
)

// seedOrder creates an order totalling qty × 10 against product 1.
func seedOrder(t *testing.T, pool *pgxpool.Pool, qty int) *core.Order {
	t.Helper()
	order, err := newOrderService(pool).Create(context.Background(), core.OrderInput{
		OrdDate:      "2026-02-01",
		StaffID:      1,
		CustomerName: "Walk-in",
		Lines: []core.LineInput{
			{ProductID: 1, Qty: qty, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("seed order failed: %v", err)
	}
	return order
}

func newPaymentService(pool *pgxpool.Pool) core.PaymentService {
	return core.NewPaymentService(pool, decimal.NewFromFloat(0.01), testLogger())
}

func TestPaymentService_PartialThenExactPayoff(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newPaymentService(pool)
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	first, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	if !first.Payment.Remain.Equal(decimal.NewFromInt(60)) {
		t.Errorf("first remain = %s, want 60", first.Payment.Remain)
	}
	if first.FullyPaid {
		t.Error("order reported fully paid after 40/100")
	}

	second, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-03", Deposit: decimal.NewFromInt(60),
	})
	if err != nil {
		t.Fatalf("second payment failed: %v", err)
	}
	if !second.Payment.Remain.Equal(decimal.Zero) {
		t.Errorf("second remain = %s, want 0", second.Payment.Remain)
	}
	if !second.FullyPaid {
		t.Error("order not reported fully paid after 100/100")
	}

	// A third payment must be rejected as already fully paid.
	_, err = svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-04", Deposit: decimal.NewFromInt(1),
	})
	var fullyPaid *core.AlreadyFullyPaidError
	if !errors.As(err, &fullyPaid) {
		t.Fatalf("expected AlreadyFullyPaidError, got %v", err)
	}
	if !fullyPaid.TotalPaid.Equal(decimal.NewFromInt(100)) {
		t.Errorf("error total paid = %s, want 100", fullyPaid.TotalPaid)
	}
}

func TestPaymentService_CeilingChecks(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newPaymentService(pool)
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	// A single deposit above the order total is rejected outright.
	_, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(150),
	})
	var exceedsTotal *core.ExceedsOrderTotalError
	if !errors.As(err, &exceedsTotal) {
		t.Fatalf("expected ExceedsOrderTotalError, got %v", err)
	}

	if _, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(70),
	}); err != nil {
		t.Fatalf("70 deposit failed: %v", err)
	}

	// 70 paid, 50 more would overshoot: rejected with the max still allowed.
	_, err = svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-03", Deposit: decimal.NewFromInt(50),
	})
	var exceedsRemaining *core.ExceedsRemainingBalanceError
	if !errors.As(err, &exceedsRemaining) {
		t.Fatalf("expected ExceedsRemainingBalanceError, got %v", err)
	}
	if !exceedsRemaining.MaxAllowed.Equal(decimal.NewFromInt(30)) {
		t.Errorf("max allowed = %s, want 30", exceedsRemaining.MaxAllowed)
	}

	// Within tolerance: 30.01 against a remaining 30 is accepted.
	if _, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-03", Deposit: decimal.NewFromFloat(30.01),
	}); err != nil {
		t.Fatalf("deposit within tolerance rejected: %v", err)
	}
}

func TestPaymentService_SameDayWaterfallUsesSeqNo(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newPaymentService(pool)
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	// Two payments on the same date: allocation follows creation order.
	first, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(30),
	})
	if err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	if _, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(50),
	}); err != nil {
		t.Fatalf("second payment failed: %v", err)
	}

	status, err := svc.OrderPaymentStatus(ctx, order.ID)
	if err != nil {
		t.Fatalf("OrderPaymentStatus failed: %v", err)
	}
	if status.PaymentsCount != 2 {
		t.Fatalf("payments count = %d, want 2", status.PaymentsCount)
	}
	if status.Payments[0].ID != first.Payment.ID {
		t.Errorf("same-day payments not in creation order")
	}
	if status.Payments[0].SeqNo != 1 || status.Payments[1].SeqNo != 2 {
		t.Errorf("seq_no = %d, %d; want 1, 2", status.Payments[0].SeqNo, status.Payments[1].SeqNo)
	}
	if !status.Payments[0].Remain.Equal(decimal.NewFromInt(70)) {
		t.Errorf("first remain = %s, want 70", status.Payments[0].Remain)
	}
	if !status.Payments[1].Remain.Equal(decimal.NewFromInt(20)) {
		t.Errorf("second remain = %s, want 20", status.Payments[1].Remain)
	}
	if !status.Remaining.Equal(decimal.NewFromInt(20)) {
		t.Errorf("order remaining = %s, want 20", status.Remaining)
	}
}

func TestPaymentService_BackdatedPaymentReordersWaterfall(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newPaymentService(pool)
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	if _, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-10", Deposit: decimal.NewFromInt(50),
	}); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	// Backdated payment lands before the existing one in the waterfall, and
	// both remains are rewritten.
	if _, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-05", Deposit: decimal.NewFromInt(30),
	}); err != nil {
		t.Fatalf("backdated payment failed: %v", err)
	}

	status, err := svc.OrderPaymentStatus(ctx, order.ID)
	if err != nil {
		t.Fatalf("OrderPaymentStatus failed: %v", err)
	}
	if status.Payments[0].PayDate != "2026-02-05" {
		t.Fatalf("waterfall head = %s, want the backdated payment", status.Payments[0].PayDate)
	}
	if !status.Payments[0].Remain.Equal(decimal.NewFromInt(70)) {
		t.Errorf("backdated remain = %s, want 70", status.Payments[0].Remain)
	}
	if !status.Payments[1].Remain.Equal(decimal.NewFromInt(20)) {
		t.Errorf("later remain = %s, want 20", status.Payments[1].Remain)
	}
}

func TestPaymentService_UpdateShrinkAlwaysAllowed(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newPaymentService(pool)
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	receipt, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	// Shrinking the only payment on a fully paid order must not trip the
	// already-fully-paid check: the payment's own deposit is excluded.
	smaller := decimal.NewFromInt(60)
	updated, err := svc.Update(ctx, receipt.Payment.ID, core.PaymentUpdate{Deposit: &smaller})
	if err != nil {
		t.Fatalf("shrink failed: %v", err)
	}
	if !updated.Payment.Remain.Equal(decimal.NewFromInt(40)) {
		t.Errorf("remain = %s, want 40", updated.Payment.Remain)
	}
	if updated.FullyPaid {
		t.Error("order still reported fully paid after shrink")
	}

	// Growing past the ceiling is rejected.
	tooBig := decimal.NewFromInt(120)
	_, err = svc.Update(ctx, receipt.Payment.ID, core.PaymentUpdate{Deposit: &tooBig})
	var exceedsTotal *core.ExceedsOrderTotalError
	if !errors.As(err, &exceedsTotal) {
		t.Fatalf("expected ExceedsOrderTotalError, got %v", err)
	}
}

func TestPaymentService_DeleteLeavesSiblingsUntouched(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newPaymentService(pool)
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	first, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	second, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-03", Deposit: decimal.NewFromInt(30),
	})
	if err != nil {
		t.Fatalf("second payment failed: %v", err)
	}

	if err := svc.Delete(ctx, first.Payment.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// The sibling keeps its stored remain until reconciliation runs.
	remaining, err := svc.Get(ctx, second.Payment.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !remaining.Remain.Equal(decimal.NewFromInt(30)) {
		t.Errorf("sibling remain = %s, want stored 30", remaining.Remain)
	}
}

func TestPaymentService_ConcurrentCreatesRespectCeiling(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newPaymentService(pool)
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	// Two deposits of 60 race on separate connections. The order-row lock
	// serializes them, so the loser re-reads the committed prior sum and is
	// rejected: both passing would overpay the order.
	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Create(ctx, core.PaymentInput{
				OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(60),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var exceedsRemaining *core.ExceedsRemainingBalanceError
		var concurrent *core.ConcurrentModificationError
		if !errors.As(err, &exceedsRemaining) && !errors.As(err, &concurrent) {
			t.Errorf("loser failed with %v, want a ceiling rejection or a retryable conflict", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d deposits succeeded, want exactly 1", succeeded)
	}

	status, err := svc.OrderPaymentStatus(ctx, order.ID)
	if err != nil {
		t.Fatalf("OrderPaymentStatus failed: %v", err)
	}
	if !status.TotalPaid.Equal(decimal.NewFromInt(60)) {
		t.Errorf("total paid = %s, want 60", status.TotalPaid)
	}
	if status.TotalPaid.GreaterThan(decimal.NewFromFloat(100.01)) {
		t.Errorf("total paid %s exceeds order total plus tolerance", status.TotalPaid)
	}
}

func TestPaymentService_SubToleranceTopUpAccepted(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newPaymentService(pool)
	ctx := context.Background()
	order := seedOrder(t, pool, 10) // total 100

	if _, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(100),
	}); err != nil {
		t.Fatalf("full payoff failed: %v", err)
	}

	// A top-up below the tolerance does not overshoot, so the fully-paid
	// rejection must not fire on a settled order.
	topUp, err := svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-03", Deposit: decimal.NewFromFloat(0.005),
	})
	if err != nil {
		t.Fatalf("sub-tolerance top-up rejected: %v", err)
	}
	if !topUp.Payment.Remain.Equal(decimal.Zero) {
		t.Errorf("top-up remain = %s, want 0", topUp.Payment.Remain)
	}

	// Anything that actually overshoots on a settled order is still refused.
	_, err = svc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-04", Deposit: decimal.NewFromInt(1),
	})
	var fullyPaid *core.AlreadyFullyPaidError
	if !errors.As(err, &fullyPaid) {
		t.Fatalf("expected AlreadyFullyPaidError, got %v", err)
	}
}

func TestPaymentService_UpdateMovesPaymentBetweenOrders(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newPaymentService(pool)
	ctx := context.Background()
	orderA := seedOrder(t, pool, 10) // total 100
	orderB := seedOrder(t, pool, 8)  // total 80

	receipt, err := svc.Create(ctx, core.PaymentInput{
		OrderID: orderA.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	// Move to the later order: both waterfalls are rewritten and the payment
	// takes the target order's total and a fresh sequence slot.
	moved, err := svc.Update(ctx, receipt.Payment.ID, core.PaymentUpdate{OrderID: &orderB.ID})
	if err != nil {
		t.Fatalf("move to order %d failed: %v", orderB.ID, err)
	}
	if moved.Payment.OrderID != orderB.ID {
		t.Fatalf("payment order = %d, want %d", moved.Payment.OrderID, orderB.ID)
	}
	if !moved.Payment.Total.Equal(decimal.NewFromInt(80)) {
		t.Errorf("payment total = %s, want target order's 80", moved.Payment.Total)
	}
	if !moved.Payment.Remain.Equal(decimal.NewFromInt(40)) {
		t.Errorf("payment remain = %s, want 40", moved.Payment.Remain)
	}
	if moved.Payment.SeqNo != 1 {
		t.Errorf("seq_no = %d, want 1 on the target order", moved.Payment.SeqNo)
	}

	source, err := svc.OrderPaymentStatus(ctx, orderA.ID)
	if err != nil {
		t.Fatalf("OrderPaymentStatus failed: %v", err)
	}
	if source.PaymentsCount != 0 || !source.TotalPaid.Equal(decimal.Zero) {
		t.Errorf("source order still shows %d payments totalling %s", source.PaymentsCount, source.TotalPaid)
	}

	// Move back the other way: the opposite lock ordering path.
	back, err := svc.Update(ctx, receipt.Payment.ID, core.PaymentUpdate{OrderID: &orderA.ID})
	if err != nil {
		t.Fatalf("move back to order %d failed: %v", orderA.ID, err)
	}
	if !back.Payment.Total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("payment total = %s, want 100 after moving back", back.Payment.Total)
	}
	if !back.Payment.Remain.Equal(decimal.NewFromInt(60)) {
		t.Errorf("payment remain = %s, want 60 after moving back", back.Payment.Remain)
	}
}
