package core_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"stockdesk/internal/core"
)

func newImportService(pool *pgxpool.Pool) core.ImportService {
	log := testLogger()
	return core.NewImportService(pool, core.NewStockLedger(log), log)
}

func TestImportService_CreateIncrementsStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newImportService(pool)
	ctx := context.Background()

	batch := "B-77"
	imp, err := svc.Create(ctx, core.ImportInput{
		ImpDate:    "2026-02-01",
		StaffID:    1,
		SupplierID: 1,
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 50, UnitPrice: decimal.NewFromInt(6), BatchNumber: batch, ExpirationDate: "2027-02-01"},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if imp.ImportNumber != "IMP-2026-00001" {
		t.Errorf("import number = %q, want IMP-2026-00001", imp.ImportNumber)
	}
	if imp.Reference != "ACME SUPPLY/2026-02" {
		t.Errorf("reference = %q, want ACME SUPPLY/2026-02", imp.Reference)
	}
	if !imp.Total.Equal(decimal.NewFromInt(300)) {
		t.Errorf("total = %s, want 300", imp.Total)
	}
	if len(imp.Lines) != 1 || imp.Lines[0].BatchNumber == nil || *imp.Lines[0].BatchNumber != batch {
		t.Errorf("batch number not stored: %+v", imp.Lines)
	}
	if got := productQty(t, pool, 1); got != 150 {
		t.Errorf("product 1 quantity = %d, want 150", got)
	}
}

func TestImportService_DeleteReversalClampsAtZero(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	impSvc := newImportService(pool)
	ordSvc := newOrderService(pool)
	ctx := context.Background()

	// Product 3 starts at 3 units. Receive 50, sell 40, then delete the
	// import: the reversal would go to -27, so it clamps at 0.
	imp, err := impSvc.Create(ctx, core.ImportInput{
		ImpDate:    "2026-02-01",
		StaffID:    1,
		SupplierID: 1,
		Lines: []core.LineInput{
			{ProductID: 3, Qty: 50, UnitPrice: decimal.NewFromInt(3)},
		},
	})
	if err != nil {
		t.Fatalf("import create failed: %v", err)
	}

	if _, err := ordSvc.Create(ctx, core.OrderInput{
		OrdDate:      "2026-02-02",
		StaffID:      1,
		CustomerName: "Walk-in",
		Lines: []core.LineInput{
			{ProductID: 3, Qty: 40, UnitPrice: decimal.NewFromInt(4)},
		},
	}); err != nil {
		t.Fatalf("order create failed: %v", err)
	}
	if got := productQty(t, pool, 3); got != 13 {
		t.Fatalf("product 3 quantity = %d, want 13", got)
	}

	if err := impSvc.Delete(ctx, imp.ID); err != nil {
		t.Fatalf("import delete failed: %v", err)
	}
	if got := productQty(t, pool, 3); got != 0 {
		t.Errorf("product 3 quantity = %d, want 0 (clamped, never negative)", got)
	}
}

func TestImportService_UpdateReplacesLines(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newImportService(pool)
	ctx := context.Background()

	imp, err := svc.Create(ctx, core.ImportInput{
		ImpDate:    "2026-02-01",
		StaffID:    1,
		SupplierID: 1,
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 20, UnitPrice: decimal.NewFromInt(6)},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := svc.Update(ctx, imp.ID, core.ImportUpdate{
		Lines: []core.LineInput{
			{ProductID: 2, Qty: 10, UnitPrice: decimal.NewFromInt(15)},
		},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.Total.Equal(decimal.NewFromInt(150)) {
		t.Errorf("total = %s, want 150", updated.Total)
	}
	if got := productQty(t, pool, 1); got != 100 {
		t.Errorf("product 1 quantity = %d, want 100 (reversed)", got)
	}
	if got := productQty(t, pool, 2); got != 60 {
		t.Errorf("product 2 quantity = %d, want 60", got)
	}
}

func TestImportService_ExplicitReferenceKept(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newImportService(pool)
	ctx := context.Background()

	imp, err := svc.Create(ctx, core.ImportInput{
		ImpDate:    "2026-02-01",
		StaffID:    1,
		SupplierID: 1,
		Reference:  "PO-1234",
		Lines: []core.LineInput{
			{ProductID: 1, Qty: 5, UnitPrice: decimal.NewFromInt(6)},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if imp.Reference != "PO-1234" {
		t.Errorf("reference = %q, want PO-1234", imp.Reference)
	}
}
