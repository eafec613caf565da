package app

import (
	"context"

	"github.com/shopspring/decimal"

	"stockdesk/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic: implementations validate
// requests, delegate to the core services, and keep the report cache honest.
type ApplicationService interface {
	// Orders.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*core.Order, error)
	UpdateOrder(ctx context.Context, orderID int, req UpdateOrderRequest) (*core.Order, error)
	// DeleteOrder refuses when payments exist unless force is set.
	DeleteOrder(ctx context.Context, orderID int, force bool) error
	GetOrder(ctx context.Context, orderID int) (*core.Order, error)
	ListOrders(ctx context.Context, req OrderListRequest) ([]core.Order, error)

	// Imports.
	CreateImport(ctx context.Context, req CreateImportRequest) (*core.Import, error)
	UpdateImport(ctx context.Context, importID int, req UpdateImportRequest) (*core.Import, error)
	DeleteImport(ctx context.Context, importID int) error
	GetImport(ctx context.Context, importID int) (*core.Import, error)
	ListImports(ctx context.Context, req ImportListRequest) ([]core.Import, error)

	// Payments.
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*core.PaymentReceipt, error)
	UpdatePayment(ctx context.Context, paymentID int, req UpdatePaymentRequest) (*core.PaymentReceipt, error)
	DeletePayment(ctx context.Context, paymentID int) error
	GetPayment(ctx context.Context, paymentID int) (*core.Payment, error)
	ListPayments(ctx context.Context, req PaymentListRequest) ([]core.Payment, error)
	OrderPaymentStatus(ctx context.Context, orderID int) (*core.OrderPaymentStatus, error)

	// Catalog.
	CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error)
	UpdateProduct(ctx context.Context, productID int, req UpdateProductRequest) (*core.Product, error)
	DeleteProduct(ctx context.Context, productID int) error
	GetProduct(ctx context.Context, productID int) (*core.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]core.Product, error)
	CreateStaff(ctx context.Context, req CreatePersonRequest) (*core.Staff, error)
	ListStaff(ctx context.Context) ([]core.Staff, error)
	CreateCustomer(ctx context.Context, req CreatePersonRequest) (*core.Customer, error)
	ListCustomers(ctx context.Context) ([]core.Customer, error)
	CreateSupplier(ctx context.Context, req CreatePersonRequest) (*core.Supplier, error)
	ListSuppliers(ctx context.Context) ([]core.Supplier, error)

	// Reports.
	PaymentSummary(ctx context.Context, dateFrom, dateTo *string) (*core.PaymentSummary, error)
	LowStock(ctx context.Context) ([]core.Product, error)

	// Reconcile runs one reconciliation pass over every order with payments.
	Reconcile(ctx context.Context) (*core.ReconcileReport, error)

	// InterpretRequest sends a natural-language request to the AI agent and
	// returns either an action proposal or a clarification question.
	InterpretRequest(ctx context.Context, req AssistantRequest) (*AssistantResult, error)
	// ExecuteProposal runs a confirmed proposal through the core services.
	ExecuteProposal(ctx context.Context, proposal core.ActionProposal) (*ExecutionResult, error)
}

// decimalOrDefault substitutes the catalog unit price when a request line
// omits one.
func decimalOrDefault(v decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v.IsZero() {
		return fallback
	}
	return v
}
