package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ActionKind enumerates the back-office operations the assistant may propose.
type ActionKind string

const (
	ActionCreateOrder   ActionKind = "create_order"
	ActionCreateImport  ActionKind = "create_import"
	ActionCreatePayment ActionKind = "create_payment"
	ActionReconcile     ActionKind = "reconcile"
)

// ActionLine is one product line inside a proposed order or import. Amounts
// are strings because the model emits JSON text; parsing happens in Validate.
type ActionLine struct {
	ProductID int    `json:"product_id" jsonschema_description:"The numeric id of an existing product from the provided catalog"`
	Qty       int    `json:"qty" jsonschema_description:"Number of units, always positive"`
	UnitPrice string `json:"unit_price" jsonschema_description:"Unit price as a decimal string, e.g. '12.50'. Use the catalog price if the user did not state one."`
}

// ActionProposal is the AI-generated interpretation of a back-office request.
// Exactly the fields required by its Action kind must be filled.
type ActionProposal struct {
	Action     ActionKind   `json:"action" jsonschema_description:"One of: create_order, create_import, create_payment, reconcile"`
	Date       string       `json:"date" jsonschema_description:"The document date in YYYY-MM-DD format. Use today's date if unspecified."`
	StaffID    int          `json:"staff_id" jsonschema_description:"The numeric id of the staff member recording the action"`
	CustomerID int          `json:"customer_id" jsonschema_description:"For create_order: the numeric customer id, or 0 when the customer is free text"`
	Customer   string       `json:"customer" jsonschema_description:"For create_order with customer_id 0: the free-text customer name"`
	SupplierID int          `json:"supplier_id" jsonschema_description:"For create_import: the numeric supplier id"`
	OrderID    int          `json:"order_id" jsonschema_description:"For create_payment: the numeric id of the order being paid"`
	Deposit    string       `json:"deposit" jsonschema_description:"For create_payment: the deposit amount as a decimal string, e.g. '40.00'"`
	Lines      []ActionLine `json:"lines" jsonschema_description:"For create_order and create_import: the product lines"`
	Confidence float64      `json:"confidence" jsonschema_description:"Confidence score between 0.0 and 1.0"`
	Reasoning  string       `json:"reasoning" jsonschema_description:"Explanation of how the request maps to this action"`
}

// ActionClarification is returned when the request is too ambiguous to act on.
type ActionClarification struct {
	Message string `json:"message" jsonschema_description:"A message asking the user for the missing details (e.g. 'Which order should the payment apply to?')."`
}

// AssistantResponse wraps the AI output: exactly one of Proposal or
// Clarification is set.
type AssistantResponse struct {
	IsClarificationRequest bool                 `json:"is_clarification_request" jsonschema_description:"Set to true ONLY if you lack enough information to propose a confident action."`
	Clarification          *ActionClarification `json:"clarification,omitempty" jsonschema_description:"Required if is_clarification_request is true."`
	Proposal               *ActionProposal      `json:"proposal,omitempty" jsonschema_description:"Required if is_clarification_request is false."`
}

// Normalize cleans up model output before validation.
func (p *ActionProposal) Normalize() {
	p.Action = ActionKind(strings.ToLower(strings.TrimSpace(string(p.Action))))
	p.Date = strings.TrimSpace(p.Date)
	p.Customer = strings.TrimSpace(p.Customer)
	p.Deposit = strings.TrimSpace(p.Deposit)

	if p.Date == "" {
		p.Date = time.Now().Format("2006-01-02")
	}
	for i := range p.Lines {
		line := &p.Lines[i]
		line.UnitPrice = strings.TrimSpace(line.UnitPrice)
		if line.UnitPrice == "" || strings.ToLower(line.UnitPrice) == "null" {
			line.UnitPrice = "0.00"
		}
	}
}

// Validate checks the proposal is internally consistent for its action kind.
// Existence of the referenced ids is checked later by the executing service.
func (p *ActionProposal) Validate() error {
	switch p.Action {
	case ActionCreateOrder, ActionCreateImport, ActionCreatePayment, ActionReconcile:
	default:
		return fmt.Errorf("unknown action %q", p.Action)
	}
	if p.Action == ActionReconcile {
		return nil
	}

	if _, err := time.Parse("2006-01-02", p.Date); err != nil {
		return fmt.Errorf("invalid date format: %w", err)
	}
	if p.StaffID <= 0 {
		return errors.New("proposal must specify a staff id")
	}

	switch p.Action {
	case ActionCreateOrder:
		if p.CustomerID <= 0 && p.Customer == "" {
			return errors.New("order must specify a customer id or a customer name")
		}
		return p.validateLines()
	case ActionCreateImport:
		if p.SupplierID <= 0 {
			return errors.New("import must specify a supplier id")
		}
		return p.validateLines()
	case ActionCreatePayment:
		if p.OrderID <= 0 {
			return errors.New("payment must specify an order id")
		}
		deposit, err := decimal.NewFromString(p.Deposit)
		if err != nil {
			return fmt.Errorf("invalid deposit %q: %w", p.Deposit, err)
		}
		if !deposit.IsPositive() {
			return fmt.Errorf("deposit must be > 0, got %s", p.Deposit)
		}
	}
	return nil
}

func (p *ActionProposal) validateLines() error {
	if len(p.Lines) == 0 {
		return errors.New("at least one product line is required")
	}
	for i, line := range p.Lines {
		if line.ProductID <= 0 {
			return fmt.Errorf("line %d: product id is required", i+1)
		}
		if line.Qty <= 0 {
			return fmt.Errorf("line %d: qty must be > 0", i+1)
		}
		price, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			return fmt.Errorf("invalid unit price %q for product %d: %w", line.UnitPrice, line.ProductID, err)
		}
		if price.IsNegative() {
			return fmt.Errorf("unit price cannot be negative for product %d", line.ProductID)
		}
	}
	return nil
}

// OrderInput converts a validated create_order proposal into service input.
func (p *ActionProposal) OrderInput() (OrderInput, error) {
	lines, err := p.lineInputs()
	if err != nil {
		return OrderInput{}, err
	}
	input := OrderInput{
		OrdDate:      p.Date,
		StaffID:      p.StaffID,
		CustomerName: p.Customer,
		Lines:        lines,
	}
	if p.CustomerID > 0 {
		id := p.CustomerID
		input.CustomerID = &id
	}
	return input, nil
}

// ImportInput converts a validated create_import proposal into service input.
func (p *ActionProposal) ImportInput() (ImportInput, error) {
	lines, err := p.lineInputs()
	if err != nil {
		return ImportInput{}, err
	}
	return ImportInput{
		ImpDate:    p.Date,
		StaffID:    p.StaffID,
		SupplierID: p.SupplierID,
		Lines:      lines,
	}, nil
}

// PaymentInput converts a validated create_payment proposal into service input.
func (p *ActionProposal) PaymentInput() (PaymentInput, error) {
	deposit, err := decimal.NewFromString(p.Deposit)
	if err != nil {
		return PaymentInput{}, fmt.Errorf("invalid deposit %q: %w", p.Deposit, err)
	}
	return PaymentInput{
		OrderID: p.OrderID,
		StaffID: p.StaffID,
		PayDate: p.Date,
		Deposit: deposit,
	}, nil
}

func (p *ActionProposal) lineInputs() ([]LineInput, error) {
	lines := make([]LineInput, 0, len(p.Lines))
	for _, line := range p.Lines {
		price, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid unit price %q for product %d: %w", line.UnitPrice, line.ProductID, err)
		}
		lines = append(lines, LineInput{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: price,
		})
	}
	return lines, nil
}
