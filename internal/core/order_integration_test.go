package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stockdesk/internal/core"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE payments, order_lines, orders, import_lines, imports,
		               products, staff, customers, suppliers, number_sequences
		RESTART IDENTITY CASCADE;

		INSERT INTO staff (id, full_name, role, phone) VALUES
		(1, 'Dana Reyes', 'manager', '+1-555-0001'),
		(2, 'Kim Soto',   'staff',   '+1-555-0002');
		SELECT setval('staff_id_seq', 2);

		INSERT INTO customers (id, name, phone, address) VALUES
		(1, 'Acme Corp',  '+1-555-1001', '12 Market St'),
		(2, 'Beta Goods', '+1-555-1002', '99 Hill Rd');
		SELECT setval('customers_id_seq', 2);

		INSERT INTO suppliers (id, name, phone, address) VALUES
		(1, 'Acme Supply', '+1-555-2001', '400 Dock Ave');
		SELECT setval('suppliers_id_seq', 1);

		INSERT INTO products (id, name, unit_price, quantity, reorder_point) VALUES
		(1, 'Widget A', 10.00, 100, 10),
		(2, 'Widget B', 25.00,  50,  5),
		(3, 'Widget C',  4.00,   3,  5);
		SELECT setval('products_id_seq', 3);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

func newOrderService(pool *pgxpool.Pool) core.OrderService {
	log := testLogger()
	return core.NewOrderService(pool, core.NewStockLedger(log), log)
}

func productQty(t *testing.T, pool *pgxpool.Pool, productID int) int {
	t.Helper()
	var qty int
	if err := pool.QueryRow(context.Background(),
		"SELECT quantity FROM products WHERE id = $1", productID).Scan(&qty); err != nil {
		t.Fatalf("read product %d quantity: %v", productID, err)
	}
	return qty
}

func TestOrderService_CreateDecrementsStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	order, err := svc.Create(ctx, core.OrderInput{
		OrdDate: "2026-02-01",
		StaffID: 1,
		CustomerID: func() *int {
			id := 1
			return &id
		}(),
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 10, UnitPrice: decimal.NewFromInt(10)},
			{ProductID: 2, Qty: 2, UnitPrice: decimal.NewFromInt(25)},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !order.Total.Equal(decimal.NewFromInt(150)) {
		t.Errorf("total = %s, want 150 (sum of lines)", order.Total)
	}
	if order.OrderNumber != "ORD-2026-00001" {
		t.Errorf("order number = %q, want ORD-2026-00001", order.OrderNumber)
	}
	if order.CustomerName != "Acme Corp" {
		t.Errorf("customer name = %q, want Acme Corp", order.CustomerName)
	}
	if got := productQty(t, pool, 1); got != 90 {
		t.Errorf("product 1 quantity = %d, want 90", got)
	}
	if got := productQty(t, pool, 2); got != 48 {
		t.Errorf("product 2 quantity = %d, want 48", got)
	}
}

func TestOrderService_InsufficientStockRollsBackWholeOrder(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	// Product 1 has plenty; product 3 has only 3 units. The whole order must
	// fail and product 1 must keep its original quantity.
	_, err := svc.Create(ctx, core.OrderInput{
		OrdDate:      "2026-02-01",
		StaffID:      1,
		CustomerName: "Walk-in",
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 20, UnitPrice: decimal.NewFromInt(10)},
			{ProductID: 3, Qty: 5, UnitPrice: decimal.NewFromInt(4)},
		},
	})
	if err == nil {
		t.Fatal("expected insufficient stock error, got nil")
	}
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.ProductID != 3 || insufficient.Available != 3 || insufficient.Requested != 5 {
		t.Errorf("error detail = %+v", insufficient)
	}

	if got := productQty(t, pool, 1); got != 100 {
		t.Errorf("product 1 quantity = %d, want 100 (rollback)", got)
	}
	if got := productQty(t, pool, 3); got != 3 {
		t.Errorf("product 3 quantity = %d, want 3 (rollback)", got)
	}

	var orders int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&orders); err != nil {
		t.Fatal(err)
	}
	if orders != 0 {
		t.Errorf("orders = %d, want 0 (rollback)", orders)
	}
}

func TestOrderService_UpdateSwapsLinesAndRestoresStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	order, err := svc.Create(ctx, core.OrderInput{
		OrdDate:      "2026-02-01",
		StaffID:      1,
		CustomerName: "Walk-in",
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 30, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Replace the 30×A line with 5×B. A is restored, B is consumed.
	updated, err := svc.Update(ctx, order.ID, core.OrderUpdate{
		Lines: []core.LineInput{
			{ProductID: 2, Qty: 5, UnitPrice: decimal.NewFromInt(25)},
		},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.Total.Equal(decimal.NewFromInt(125)) {
		t.Errorf("total = %s, want 125", updated.Total)
	}
	if got := productQty(t, pool, 1); got != 100 {
		t.Errorf("product 1 quantity = %d, want 100 (restored)", got)
	}
	if got := productQty(t, pool, 2); got != 45 {
		t.Errorf("product 2 quantity = %d, want 45", got)
	}
}

func TestOrderService_UpdateSameLinesNeverFailsAvailability(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	// Consume all 100 units of product 1, then re-submit the same line. The
	// old quantity must be returned before the new set is checked.
	order, err := svc.Create(ctx, core.OrderInput{
		OrdDate:      "2026-02-01",
		StaffID:      1,
		CustomerName: "Walk-in",
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 100, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Update(ctx, order.ID, core.OrderUpdate{
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 100, UnitPrice: decimal.NewFromInt(10)},
		},
	}); err != nil {
		t.Fatalf("re-submitting identical lines failed: %v", err)
	}
	if got := productQty(t, pool, 1); got != 0 {
		t.Errorf("product 1 quantity = %d, want 0", got)
	}
}

func TestOrderService_UpdateFailureRestoresExactState(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	order, err := svc.Create(ctx, core.OrderInput{
		OrdDate:      "2026-02-01",
		StaffID:      1,
		CustomerName: "Walk-in",
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 10, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// New line set over-asks product 3. The update must fail and leave the
	// order and all stock exactly as before.
	_, err = svc.Update(ctx, order.ID, core.OrderUpdate{
		Lines: []core.LineInput{
			{ProductID: 3, Qty: 99, UnitPrice: decimal.NewFromInt(4)},
		},
	})
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	if got := productQty(t, pool, 1); got != 90 {
		t.Errorf("product 1 quantity = %d, want 90 (unchanged)", got)
	}
	if got := productQty(t, pool, 3); got != 3 {
		t.Errorf("product 3 quantity = %d, want 3 (unchanged)", got)
	}
	reread, err := svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(reread.Lines) != 1 || reread.Lines[0].ProductID != 1 || reread.Lines[0].Qty != 10 {
		t.Errorf("order lines changed despite failed update: %+v", reread.Lines)
	}
	if !reread.Total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("order total changed despite failed update: %s", reread.Total)
	}
}

func TestOrderService_DeleteRestoresStockAndRefusesWithPayments(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	log := testLogger()
	paySvc := core.NewPaymentService(pool, decimal.NewFromFloat(0.01), log)
	ctx := context.Background()

	order, err := svc.Create(ctx, core.OrderInput{
		OrdDate:      "2026-02-01",
		StaffID:      1,
		CustomerName: "Walk-in",
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 10, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := paySvc.Create(ctx, core.PaymentInput{
		OrderID: order.ID, StaffID: 1, PayDate: "2026-02-02", Deposit: decimal.NewFromInt(40),
	}); err != nil {
		t.Fatalf("payment create failed: %v", err)
	}

	err = svc.Delete(ctx, order.ID)
	var hasPayments *core.OrderHasPaymentsError
	if !errors.As(err, &hasPayments) {
		t.Fatalf("expected OrderHasPaymentsError, got %v", err)
	}
	if got := productQty(t, pool, 1); got != 90 {
		t.Errorf("product 1 quantity = %d after refused delete, want 90", got)
	}

	if err := svc.ForceDelete(ctx, order.ID); err != nil {
		t.Fatalf("ForceDelete failed: %v", err)
	}
	if got := productQty(t, pool, 1); got != 100 {
		t.Errorf("product 1 quantity = %d, want 100 (restored)", got)
	}
	var payments int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM payments").Scan(&payments); err != nil {
		t.Fatal(err)
	}
	if payments != 0 {
		t.Errorf("payments = %d after force delete, want 0", payments)
	}
}

func TestOrderService_ListFilters(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	one := 1
	for _, in := range []core.OrderInput{
		{OrdDate: "2026-02-01", StaffID: 1, CustomerID: &one,
			Lines: []core.LineInput{{ProductID: 1, Qty: 1, UnitPrice: decimal.NewFromInt(10)}}},
		{OrdDate: "2026-03-01", StaffID: 2, CustomerName: "Walk-in",
			Lines: []core.LineInput{{ProductID: 2, Qty: 1, UnitPrice: decimal.NewFromInt(25)}}},
	} {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	staff := 2
	byStaff, err := svc.List(ctx, core.OrderFilter{StaffID: &staff})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byStaff) != 1 || byStaff[0].StaffID != 2 {
		t.Errorf("staff filter returned %d orders", len(byStaff))
	}

	from, to := "2026-02-01", "2026-02-28"
	byDate, err := svc.List(ctx, core.OrderFilter{DateFrom: &from, DateTo: &to})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byDate) != 1 || byDate[0].OrdDate != "2026-02-01" {
		t.Errorf("date filter returned %d orders", len(byDate))
	}

	unpaid, err := svc.List(ctx, core.OrderFilter{Unpaid: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(unpaid) != 2 {
		t.Errorf("unpaid filter returned %d orders, want 2", len(unpaid))
	}
}
