package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRecomputeRemains_Waterfall(t *testing.T) {
	payments := []Payment{
		{ID: 3, PayDate: "2026-01-03", SeqNo: 3, Deposit: d("50.00")},
		{ID: 1, PayDate: "2026-01-01", SeqNo: 1, Deposit: d("30.00")},
		{ID: 2, PayDate: "2026-01-02", SeqNo: 2, Deposit: d("20.00")},
	}

	recomputeRemains(d("100.00"), payments)

	want := []struct {
		id     int
		remain string
	}{
		{1, "70"},
		{2, "50"},
		{3, "0"},
	}
	for i, w := range want {
		if payments[i].ID != w.id {
			t.Fatalf("position %d: got payment %d, want %d", i, payments[i].ID, w.id)
		}
		if !payments[i].Remain.Equal(d(w.remain)) {
			t.Errorf("payment %d: remain = %s, want %s", w.id, payments[i].Remain, w.remain)
		}
	}
}

func TestRecomputeRemains_SameDayOrderedBySeqNo(t *testing.T) {
	payments := []Payment{
		{ID: 2, PayDate: "2026-01-01", SeqNo: 2, Deposit: d("60.00")},
		{ID: 1, PayDate: "2026-01-01", SeqNo: 1, Deposit: d("40.00")},
	}

	recomputeRemains(d("100.00"), payments)

	if payments[0].ID != 1 || payments[1].ID != 2 {
		t.Fatalf("same-day payments not ordered by seq_no: %d, %d", payments[0].ID, payments[1].ID)
	}
	if !payments[0].Remain.Equal(d("60")) {
		t.Errorf("first remain = %s, want 60", payments[0].Remain)
	}
	if !payments[1].Remain.Equal(d("0")) {
		t.Errorf("second remain = %s, want 0", payments[1].Remain)
	}
}

func TestRecomputeRemains_OverpaidFloorsAtZero(t *testing.T) {
	payments := []Payment{
		{ID: 1, PayDate: "2026-01-01", SeqNo: 1, Deposit: d("80.00")},
		{ID: 2, PayDate: "2026-01-02", SeqNo: 2, Deposit: d("80.00")},
	}

	recomputeRemains(d("100.00"), payments)

	if !payments[0].Remain.Equal(d("20")) {
		t.Errorf("first remain = %s, want 20", payments[0].Remain)
	}
	if !payments[1].Remain.Equal(d("0")) {
		t.Errorf("overpaid remain = %s, want 0 (never negative)", payments[1].Remain)
	}
}

func TestPlanOverpaymentTrim_NotOverpaid(t *testing.T) {
	payments := []Payment{
		{ID: 1, PayDate: "2026-01-01", SeqNo: 1, Deposit: d("100.00")},
	}
	if plan := planOverpaymentTrim(d("100.00"), payments); plan != nil {
		t.Errorf("expected nil plan for exactly-paid order, got %v", plan)
	}
	if plan := planOverpaymentTrim(d("150.00"), payments); plan != nil {
		t.Errorf("expected nil plan for underpaid order, got %v", plan)
	}
}

func TestPlanOverpaymentTrim_ShrinksNewest(t *testing.T) {
	// 60 + 60 against 100: newest shrinks to 40.
	payments := []Payment{
		{ID: 1, PayDate: "2026-01-01", SeqNo: 1, Deposit: d("60.00")},
		{ID: 2, PayDate: "2026-01-02", SeqNo: 2, Deposit: d("60.00")},
	}

	plan := planOverpaymentTrim(d("100.00"), payments)
	if len(plan) != 1 {
		t.Fatalf("plan length = %d, want 1", len(plan))
	}
	if plan[0].PaymentID != 2 || plan[0].Delete {
		t.Fatalf("expected shrink of payment 2, got %+v", plan[0])
	}
	if !plan[0].NewDeposit.Equal(d("40")) {
		t.Errorf("new deposit = %s, want 40", plan[0].NewDeposit)
	}
}

func TestPlanOverpaymentTrim_DeletesThenShrinks(t *testing.T) {
	// 90 + 30 + 20 against 100: delete the 20, shrink the 30 to 10.
	payments := []Payment{
		{ID: 1, PayDate: "2026-01-01", SeqNo: 1, Deposit: d("90.00")},
		{ID: 2, PayDate: "2026-01-02", SeqNo: 2, Deposit: d("30.00")},
		{ID: 3, PayDate: "2026-01-03", SeqNo: 3, Deposit: d("20.00")},
	}

	plan := planOverpaymentTrim(d("100.00"), payments)
	if len(plan) != 2 {
		t.Fatalf("plan length = %d, want 2", len(plan))
	}
	if plan[0].PaymentID != 3 || !plan[0].Delete {
		t.Fatalf("expected delete of payment 3, got %+v", plan[0])
	}
	if plan[1].PaymentID != 2 || plan[1].Delete {
		t.Fatalf("expected shrink of payment 2, got %+v", plan[1])
	}
	if !plan[1].NewDeposit.Equal(d("10")) {
		t.Errorf("new deposit = %s, want 10", plan[1].NewDeposit)
	}

	// Applying the plan brings the order back to exactly paid.
	surviving := applyTrimPlan(payments, plan)
	total := decimal.Zero
	for _, p := range surviving {
		total = total.Add(p.Deposit)
	}
	if !total.Equal(d("100")) {
		t.Errorf("post-trim total paid = %s, want 100", total)
	}
}

func TestPlanOverpaymentTrim_Idempotent(t *testing.T) {
	payments := []Payment{
		{ID: 1, PayDate: "2026-01-01", SeqNo: 1, Deposit: d("60.00")},
		{ID: 2, PayDate: "2026-01-02", SeqNo: 2, Deposit: d("60.00")},
	}

	plan := planOverpaymentTrim(d("100.00"), payments)
	surviving := applyTrimPlan(payments, plan)

	if again := planOverpaymentTrim(d("100.00"), surviving); again != nil {
		t.Errorf("second pass produced a plan: %v", again)
	}
}
