package core_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"stockdesk/internal/core"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func TestActionProposal_NormalizationAndValidation(t *testing.T) {
	tests := []struct {
		name      string
		proposal  core.ActionProposal
		expectErr bool
	}{
		{
			name: "Happy path order",
			proposal: core.ActionProposal{
				Action:   "create_order",
				Date:     "2026-03-01",
				StaffID:  1,
				Customer: "Walk-in",
				Lines:    []core.ActionLine{{ProductID: 5, Qty: 2, UnitPrice: "12.50"}},
			},
		},
		{
			name: "Order without customer",
			proposal: core.ActionProposal{
				Action:  "create_order",
				Date:    "2026-03-01",
				StaffID: 1,
				Lines:   []core.ActionLine{{ProductID: 5, Qty: 2, UnitPrice: "12.50"}},
			},
			expectErr: true,
		},
		{
			name: "Order without lines",
			proposal: core.ActionProposal{
				Action:     "create_order",
				Date:       "2026-03-01",
				StaffID:    1,
				CustomerID: 3,
			},
			expectErr: true,
		},
		{
			name: "Uppercase action is normalized",
			proposal: core.ActionProposal{
				Action:     "CREATE_IMPORT",
				Date:       "2026-03-01",
				StaffID:    1,
				SupplierID: 2,
				Lines:      []core.ActionLine{{ProductID: 5, Qty: 10, UnitPrice: "8.00"}},
			},
		},
		{
			name: "Import without supplier",
			proposal: core.ActionProposal{
				Action:  "create_import",
				Date:    "2026-03-01",
				StaffID: 1,
				Lines:   []core.ActionLine{{ProductID: 5, Qty: 10, UnitPrice: "8.00"}},
			},
			expectErr: true,
		},
		{
			name: "Happy path payment",
			proposal: core.ActionProposal{
				Action:  "create_payment",
				Date:    "2026-03-01",
				StaffID: 1,
				OrderID: 12,
				Deposit: "40.00",
			},
		},
		{
			name: "Payment with zero deposit",
			proposal: core.ActionProposal{
				Action:  "create_payment",
				Date:    "2026-03-01",
				StaffID: 1,
				OrderID: 12,
				Deposit: "0",
			},
			expectErr: true,
		},
		{
			name: "Payment with garbage deposit",
			proposal: core.ActionProposal{
				Action:  "create_payment",
				Date:    "2026-03-01",
				StaffID: 1,
				OrderID: 12,
				Deposit: "forty dollars",
			},
			expectErr: true,
		},
		{
			name: "Bad date",
			proposal: core.ActionProposal{
				Action:  "create_payment",
				Date:    "03/01/2026",
				StaffID: 1,
				OrderID: 12,
				Deposit: "40.00",
			},
			expectErr: true,
		},
		{
			name:     "Reconcile needs nothing else",
			proposal: core.ActionProposal{Action: "reconcile"},
		},
		{
			name: "Unknown action",
			proposal: core.ActionProposal{
				Action:  "delete_everything",
				Date:    "2026-03-01",
				StaffID: 1,
			},
			expectErr: true,
		},
		{
			name: "Null unit price normalized then rejected as catalog lookup",
			proposal: core.ActionProposal{
				Action:     "create_order",
				Date:       "2026-03-01",
				StaffID:    1,
				CustomerID: 3,
				Lines:      []core.ActionLine{{ProductID: 5, Qty: 1, UnitPrice: "null"}},
			},
			// "null" normalizes to "0.00", which is a valid non-negative price.
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.proposal
			p.Normalize()
			err := p.Validate()
			if tc.expectErr && err == nil {
				t.Errorf("expected validation error, got nil")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestActionProposal_BlankDateDefaultsToToday(t *testing.T) {
	p := core.ActionProposal{
		Action:  "create_payment",
		StaffID: 1,
		OrderID: 7,
		Deposit: "15.00",
	}
	p.Normalize()
	if p.Date == "" {
		t.Fatal("expected Normalize to fill a default date")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestActionProposal_InputConversion(t *testing.T) {
	p := core.ActionProposal{
		Action:     "create_order",
		Date:       "2026-03-01",
		StaffID:    1,
		CustomerID: 3,
		Lines:      []core.ActionLine{{ProductID: 5, Qty: 2, UnitPrice: "12.50"}},
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	input, err := p.OrderInput()
	if err != nil {
		t.Fatalf("OrderInput: %v", err)
	}
	if input.CustomerID == nil || *input.CustomerID != 3 {
		t.Errorf("customer id not carried over: %v", input.CustomerID)
	}
	if len(input.Lines) != 1 || input.Lines[0].Qty != 2 {
		t.Fatalf("lines not carried over: %+v", input.Lines)
	}
	if !input.Lines[0].UnitPrice.Equal(decimalFromString(t, "12.50")) {
		t.Errorf("unit price = %s, want 12.50", input.Lines[0].UnitPrice)
	}
}
