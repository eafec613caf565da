package app

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// validate checks the struct tags on incoming requests before any service is
// touched. Decimal amounts are validated by the core services themselves.
var validate = validator.New()

// LineRequest is one product line of an order or import request.
type LineRequest struct {
	ProductID      int             `json:"product_id" validate:"required,gt=0"`
	Qty            int             `json:"qty" validate:"required,gt=0"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	BatchNumber    string          `json:"batch_number,omitempty"`
	ExpirationDate string          `json:"expiration_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// CreateOrderRequest is the input for creating a sales order.
type CreateOrderRequest struct {
	OrdDate         string          `json:"ord_date" validate:"required,datetime=2006-01-02"`
	StaffID         int             `json:"staff_id" validate:"required,gt=0"`
	CustomerID      *int            `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	CustomerName    string          `json:"customer_name,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	Discount        decimal.Decimal `json:"discount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Lines           []LineRequest   `json:"lines" validate:"required,min=1,dive"`
}

// UpdateOrderRequest carries the optional fields of an order update.
type UpdateOrderRequest struct {
	OrdDate      *string       `json:"ord_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StaffID      *int          `json:"staff_id,omitempty" validate:"omitempty,gt=0"`
	CustomerID   *int          `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	CustomerName *string       `json:"customer_name,omitempty"`
	Lines        []LineRequest `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// OrderListRequest carries the optional list filters.
type OrderListRequest struct {
	StaffID    *int
	CustomerID *int
	DateFrom   *string `validate:"omitempty,datetime=2006-01-02"`
	DateTo     *string `validate:"omitempty,datetime=2006-01-02"`
	Unpaid     bool
}

// CreateImportRequest is the input for recording a supplier receipt.
type CreateImportRequest struct {
	ImpDate    string        `json:"imp_date" validate:"required,datetime=2006-01-02"`
	StaffID    int           `json:"staff_id" validate:"required,gt=0"`
	SupplierID int           `json:"supplier_id" validate:"required,gt=0"`
	Reference  string        `json:"reference,omitempty"`
	Lines      []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// UpdateImportRequest carries the optional fields of an import update.
type UpdateImportRequest struct {
	ImpDate    *string       `json:"imp_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StaffID    *int          `json:"staff_id,omitempty" validate:"omitempty,gt=0"`
	SupplierID *int          `json:"supplier_id,omitempty" validate:"omitempty,gt=0"`
	Lines      []LineRequest `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// ImportListRequest carries the optional list filters.
type ImportListRequest struct {
	StaffID    *int
	SupplierID *int
	DateFrom   *string `validate:"omitempty,datetime=2006-01-02"`
	DateTo     *string `validate:"omitempty,datetime=2006-01-02"`
}

// RecordPaymentRequest is the input for recording a deposit against an order.
type RecordPaymentRequest struct {
	OrderID int             `json:"order_id" validate:"required,gt=0"`
	StaffID int             `json:"staff_id" validate:"required,gt=0"`
	PayDate string          `json:"pay_date" validate:"required,datetime=2006-01-02"`
	Deposit decimal.Decimal `json:"deposit"`
}

// UpdatePaymentRequest carries the optional fields of a payment update.
type UpdatePaymentRequest struct {
	OrderID *int             `json:"order_id,omitempty" validate:"omitempty,gt=0"`
	StaffID *int             `json:"staff_id,omitempty" validate:"omitempty,gt=0"`
	PayDate *string          `json:"pay_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Deposit *decimal.Decimal `json:"deposit,omitempty"`
}

// PaymentListRequest carries the optional list filters.
type PaymentListRequest struct {
	OrderID  *int
	StaffID  *int
	DateFrom *string `validate:"omitempty,datetime=2006-01-02"`
	DateTo   *string `validate:"omitempty,datetime=2006-01-02"`
}

// CreateProductRequest is the input for adding a catalog product.
type CreateProductRequest struct {
	Name         string          `json:"name" validate:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	InitialQty   int             `json:"initial_qty" validate:"gte=0"`
	ReorderPoint int             `json:"reorder_point" validate:"gte=0"`
}

// UpdateProductRequest carries the optional fields of a product update.
// Quantity is deliberately absent: stock moves only through documents.
type UpdateProductRequest struct {
	Name         *string          `json:"name,omitempty"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	ReorderPoint *int             `json:"reorder_point,omitempty" validate:"omitempty,gte=0"`
	IsActive     *bool            `json:"is_active,omitempty"`
}

// CreatePersonRequest is the shared input shape for staff, customer and
// supplier creation.
type CreatePersonRequest struct {
	Name    string `json:"name" validate:"required"`
	Role    string `json:"role,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// AssistantRequest is a natural-language request for the AI assistant.
type AssistantRequest struct {
	Text string `json:"text" validate:"required"`
}
