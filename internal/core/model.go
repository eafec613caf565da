package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Staff represents a back-office employee master record.
type Staff struct {
	ID        int       `json:"id"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Customer represents a customer master record.
type Customer struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Supplier represents a supplier master record for inbound stock.
type Supplier struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Product represents a catalog item. Quantity is the on-hand stock count and
// is mutated only through the StockLedger.
type Product struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	ReorderPoint int             `json:"reorder_point"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Order represents a sales order header. Total is the authoritative ceiling
// against which payments are validated; it is recomputed from the lines
// whenever they change. Subtotal, tax and discount fields are informational.
type Order struct {
	ID              int             `json:"id"`
	OrderNumber     string          `json:"order_number"`
	OrdDate         string          `json:"ord_date"` // YYYY-MM-DD
	StaffID         int             `json:"staff_id"`
	StaffName       string          `json:"staff_name"` // joined from staff
	CustomerID      *int            `json:"customer_id,omitempty"`
	CustomerName    string          `json:"customer_name"`
	Total           decimal.Decimal `json:"total"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	Discount        decimal.Decimal `json:"discount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Lines           []OrderLine     `json:"lines"`
	CreatedAt       time.Time       `json:"created_at"`
}

// OrderLine is one (product, quantity, price) line on an order.
type OrderLine struct {
	ID          int             `json:"id"`
	OrderID     int             `json:"order_id"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"` // qty × unit_price
}

// Import represents a supplier receipt header (inbound stock).
type Import struct {
	ID           int             `json:"id"`
	ImportNumber string          `json:"import_number"`
	ImpDate      string          `json:"imp_date"` // YYYY-MM-DD
	StaffID      int             `json:"staff_id"`
	StaffName    string          `json:"staff_name"` // joined from staff
	SupplierID   int             `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"` // joined from suppliers
	Reference    string          `json:"reference"`
	Total        decimal.Decimal `json:"total"`
	Lines        []ImportLine    `json:"lines"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ImportLine mirrors OrderLine for inbound stock; batch number and expiration
// date are informational.
type ImportLine struct {
	ID             int             `json:"id"`
	ImportID       int             `json:"import_id"`
	ProductID      int             `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Qty            int             `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Amount         decimal.Decimal `json:"amount"`
	BatchNumber    *string         `json:"batch_number,omitempty"`
	ExpirationDate *string         `json:"expiration_date,omitempty"` // YYYY-MM-DD
}

// Payment is one partial payment against an order. Total snapshots the order
// total at allocation time; Remain is the balance left after this and all
// earlier deposits on the same order, in (pay_date, seq_no) order.
type Payment struct {
	ID        int             `json:"id"`
	OrderID   int             `json:"order_id"`
	StaffID   int             `json:"staff_id"`
	StaffName string          `json:"staff_name"` // joined from staff
	PayDate   string          `json:"pay_date"`   // YYYY-MM-DD
	Total     decimal.Decimal `json:"total"`
	Deposit   decimal.Decimal `json:"deposit"`
	Remain    decimal.Decimal `json:"remain"`
	SeqNo     int             `json:"seq_no"`
	CreatedAt time.Time       `json:"created_at"`
}

// LineInput is the caller-supplied form of an order or import line.
type LineInput struct {
	ProductID      int
	Qty            int
	UnitPrice      decimal.Decimal
	BatchNumber    string // imports only
	ExpirationDate string // imports only, YYYY-MM-DD
}

// OrderInput holds the fields required to create an order.
type OrderInput struct {
	OrdDate         string // YYYY-MM-DD
	StaffID         int
	CustomerID      *int   // nil means free-text customer name
	CustomerName    string // used when CustomerID is nil
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	TaxPercent      decimal.Decimal
	Discount        decimal.Decimal
	DiscountPercent decimal.Decimal
	Lines           []LineInput
}

// OrderUpdate holds the optional fields of an order update. Nil fields are
// left unchanged; a non-nil Lines slice replaces the full line set.
type OrderUpdate struct {
	OrdDate      *string
	StaffID      *int
	CustomerID   *int
	CustomerName *string
	Lines        []LineInput
}

// ImportInput holds the fields required to create an import.
type ImportInput struct {
	ImpDate    string // YYYY-MM-DD
	StaffID    int
	SupplierID int
	Reference  string // auto-generated from supplier + month when empty
	Lines      []LineInput
}

// ImportUpdate holds the optional fields of an import update.
type ImportUpdate struct {
	ImpDate    *string
	StaffID    *int
	SupplierID *int
	Lines      []LineInput
}

// PaymentInput holds the fields required to create a payment.
type PaymentInput struct {
	OrderID int
	StaffID int
	PayDate string // YYYY-MM-DD
	Deposit decimal.Decimal
}

// PaymentUpdate holds the optional fields of a payment update.
type PaymentUpdate struct {
	OrderID *int
	StaffID *int
	PayDate *string
	Deposit *decimal.Decimal
}

// PaymentReceipt is the result of a payment create or update: the persisted
// payment plus the order-level remaining balance so the caller can render a
// status message without re-querying.
type PaymentReceipt struct {
	Payment        Payment         `json:"payment"`
	OrderRemaining decimal.Decimal `json:"order_remaining"`
	FullyPaid      bool            `json:"fully_paid"`
	Message        string          `json:"message"`
}

// OrderPaymentStatus summarizes all payments of one order.
type OrderPaymentStatus struct {
	OrderID       int             `json:"order_id"`
	OrderTotal    decimal.Decimal `json:"order_total"`
	PaymentsCount int             `json:"payments_count"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Remaining     decimal.Decimal `json:"remaining"`
	Payments      []Payment       `json:"payments"`
}

// ReconcileReport is the outcome of one reconciliation pass.
type ReconcileReport struct {
	OrdersChecked   int      `json:"orders_checked"`
	DeletedPayments int      `json:"deleted_payments"`
	ShrunkPayments  int      `json:"shrunk_payments"`
	Notes           []string `json:"notes"`
}
