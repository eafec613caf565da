package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"stockdesk/internal/ai"
	"stockdesk/internal/core"
)

type appService struct {
	orders    core.OrderService
	imports   core.ImportService
	payments  core.PaymentService
	catalog   core.CatalogService
	reports   core.ReportingService
	reconcile core.ReconcileService
	agent     ai.AgentService
	log       *logrus.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
// agent may be nil when no OpenAI key is configured; assistant calls then fail
// with a clear error instead of a panic.
func NewAppService(
	orders core.OrderService,
	imports core.ImportService,
	payments core.PaymentService,
	catalog core.CatalogService,
	reports core.ReportingService,
	reconcile core.ReconcileService,
	agent ai.AgentService,
	log *logrus.Logger,
) ApplicationService {
	return &appService{
		orders:    orders,
		imports:   imports,
		payments:  payments,
		catalog:   catalog,
		reports:   reports,
		reconcile: reconcile,
		agent:     agent,
		log:       log,
	}
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*core.Order, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	lines, err := s.toLineInputs(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.Create(ctx, core.OrderInput{
		OrdDate:         req.OrdDate,
		StaffID:         req.StaffID,
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		Subtotal:        req.Subtotal,
		Tax:             req.Tax,
		TaxPercent:      req.TaxPercent,
		Discount:        req.Discount,
		DiscountPercent: req.DiscountPercent,
		Lines:           lines,
	})
	if err != nil {
		return nil, err
	}
	s.reports.InvalidateReports(ctx)
	return order, nil
}

func (s *appService) UpdateOrder(ctx context.Context, orderID int, req UpdateOrderRequest) (*core.Order, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	upd := core.OrderUpdate{
		OrdDate:      req.OrdDate,
		StaffID:      req.StaffID,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
	}
	if req.Lines != nil {
		lines, err := s.toLineInputs(ctx, req.Lines)
		if err != nil {
			return nil, err
		}
		upd.Lines = lines
	}
	order, err := s.orders.Update(ctx, orderID, upd)
	if err != nil {
		return nil, err
	}
	s.reports.InvalidateReports(ctx)
	return order, nil
}

func (s *appService) DeleteOrder(ctx context.Context, orderID int, force bool) error {
	var err error
	if force {
		err = s.orders.ForceDelete(ctx, orderID)
	} else {
		err = s.orders.Delete(ctx, orderID)
	}
	if err != nil {
		return err
	}
	s.reports.InvalidateReports(ctx)
	return nil
}

func (s *appService) GetOrder(ctx context.Context, orderID int) (*core.Order, error) {
	return s.orders.Get(ctx, orderID)
}

func (s *appService) ListOrders(ctx context.Context, req OrderListRequest) ([]core.Order, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.orders.List(ctx, core.OrderFilter{
		StaffID:    req.StaffID,
		CustomerID: req.CustomerID,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		Unpaid:     req.Unpaid,
	})
}

// ── Imports ──────────────────────────────────────────────────────────────────

func (s *appService) CreateImport(ctx context.Context, req CreateImportRequest) (*core.Import, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	lines, err := s.toLineInputs(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	imp, err := s.imports.Create(ctx, core.ImportInput{
		ImpDate:    req.ImpDate,
		StaffID:    req.StaffID,
		SupplierID: req.SupplierID,
		Reference:  req.Reference,
		Lines:      lines,
	})
	if err != nil {
		return nil, err
	}
	s.reports.InvalidateReports(ctx)
	return imp, nil
}

func (s *appService) UpdateImport(ctx context.Context, importID int, req UpdateImportRequest) (*core.Import, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	upd := core.ImportUpdate{
		ImpDate:    req.ImpDate,
		StaffID:    req.StaffID,
		SupplierID: req.SupplierID,
	}
	if req.Lines != nil {
		lines, err := s.toLineInputs(ctx, req.Lines)
		if err != nil {
			return nil, err
		}
		upd.Lines = lines
	}
	imp, err := s.imports.Update(ctx, importID, upd)
	if err != nil {
		return nil, err
	}
	s.reports.InvalidateReports(ctx)
	return imp, nil
}

func (s *appService) DeleteImport(ctx context.Context, importID int) error {
	if err := s.imports.Delete(ctx, importID); err != nil {
		return err
	}
	s.reports.InvalidateReports(ctx)
	return nil
}

func (s *appService) GetImport(ctx context.Context, importID int) (*core.Import, error) {
	return s.imports.Get(ctx, importID)
}

func (s *appService) ListImports(ctx context.Context, req ImportListRequest) ([]core.Import, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.imports.List(ctx, core.ImportFilter{
		StaffID:    req.StaffID,
		SupplierID: req.SupplierID,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
	})
}

// ── Payments ─────────────────────────────────────────────────────────────────

func (s *appService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*core.PaymentReceipt, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	receipt, err := s.payments.Create(ctx, core.PaymentInput{
		OrderID: req.OrderID,
		StaffID: req.StaffID,
		PayDate: req.PayDate,
		Deposit: req.Deposit,
	})
	if err != nil {
		return nil, err
	}
	s.reports.InvalidateReports(ctx)
	return receipt, nil
}

func (s *appService) UpdatePayment(ctx context.Context, paymentID int, req UpdatePaymentRequest) (*core.PaymentReceipt, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	receipt, err := s.payments.Update(ctx, paymentID, core.PaymentUpdate{
		OrderID: req.OrderID,
		StaffID: req.StaffID,
		PayDate: req.PayDate,
		Deposit: req.Deposit,
	})
	if err != nil {
		return nil, err
	}
	s.reports.InvalidateReports(ctx)
	return receipt, nil
}

func (s *appService) DeletePayment(ctx context.Context, paymentID int) error {
	if err := s.payments.Delete(ctx, paymentID); err != nil {
		return err
	}
	s.reports.InvalidateReports(ctx)
	return nil
}

func (s *appService) GetPayment(ctx context.Context, paymentID int) (*core.Payment, error) {
	return s.payments.Get(ctx, paymentID)
}

func (s *appService) ListPayments(ctx context.Context, req PaymentListRequest) ([]core.Payment, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.payments.List(ctx, core.PaymentFilter{
		OrderID:  req.OrderID,
		StaffID:  req.StaffID,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
	})
}

func (s *appService) OrderPaymentStatus(ctx context.Context, orderID int) (*core.OrderPaymentStatus, error) {
	return s.payments.OrderPaymentStatus(ctx, orderID)
}

// ── Catalog ──────────────────────────────────────────────────────────────────

func (s *appService) CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	product, err := s.catalog.CreateProduct(ctx, req.Name, req.UnitPrice, req.InitialQty, req.ReorderPoint)
	if err != nil {
		return nil, err
	}
	s.reports.InvalidateReports(ctx)
	return product, nil
}

func (s *appService) UpdateProduct(ctx context.Context, productID int, req UpdateProductRequest) (*core.Product, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	product, err := s.catalog.UpdateProduct(ctx, productID, req.Name, req.UnitPrice, req.ReorderPoint, req.IsActive)
	if err != nil {
		return nil, err
	}
	s.reports.InvalidateReports(ctx)
	return product, nil
}

func (s *appService) DeleteProduct(ctx context.Context, productID int) error {
	if err := s.catalog.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	s.reports.InvalidateReports(ctx)
	return nil
}

func (s *appService) GetProduct(ctx context.Context, productID int) (*core.Product, error) {
	return s.catalog.GetProduct(ctx, productID)
}

func (s *appService) ListProducts(ctx context.Context, activeOnly bool) ([]core.Product, error) {
	return s.catalog.ListProducts(ctx, activeOnly)
}

func (s *appService) CreateStaff(ctx context.Context, req CreatePersonRequest) (*core.Staff, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.catalog.CreateStaff(ctx, req.Name, req.Role, req.Phone)
}

func (s *appService) ListStaff(ctx context.Context) ([]core.Staff, error) {
	return s.catalog.ListStaff(ctx)
}

func (s *appService) CreateCustomer(ctx context.Context, req CreatePersonRequest) (*core.Customer, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.catalog.CreateCustomer(ctx, req.Name, req.Phone, req.Address)
}

func (s *appService) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	return s.catalog.ListCustomers(ctx)
}

func (s *appService) CreateSupplier(ctx context.Context, req CreatePersonRequest) (*core.Supplier, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.catalog.CreateSupplier(ctx, req.Name, req.Phone, req.Address)
}

func (s *appService) ListSuppliers(ctx context.Context) ([]core.Supplier, error) {
	return s.catalog.ListSuppliers(ctx)
}

// ── Reports and reconcile ────────────────────────────────────────────────────

func (s *appService) PaymentSummary(ctx context.Context, dateFrom, dateTo *string) (*core.PaymentSummary, error) {
	return s.reports.PaymentSummary(ctx, dateFrom, dateTo)
}

func (s *appService) LowStock(ctx context.Context) ([]core.Product, error) {
	return s.reports.LowStock(ctx)
}

func (s *appService) Reconcile(ctx context.Context) (*core.ReconcileReport, error) {
	report, err := s.reconcile.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	s.reports.InvalidateReports(ctx)
	return report, nil
}

// ── Assistant ────────────────────────────────────────────────────────────────

func (s *appService) InterpretRequest(ctx context.Context, req AssistantRequest) (*AssistantResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if s.agent == nil {
		return nil, fmt.Errorf("assistant is not configured: OPENAI_API_KEY is missing")
	}

	catalogContext, err := s.buildCatalogContext(ctx)
	if err != nil {
		return nil, err
	}
	response, err := s.agent.InterpretRequest(ctx, req.Text, catalogContext)
	if err != nil {
		return nil, err
	}

	if response.IsClarificationRequest {
		return &AssistantResult{
			IsClarification:      true,
			ClarificationMessage: response.Clarification.Message,
		}, nil
	}
	return &AssistantResult{Proposal: response.Proposal}, nil
}

func (s *appService) ExecuteProposal(ctx context.Context, proposal core.ActionProposal) (*ExecutionResult, error) {
	proposal.Normalize()
	if err := proposal.Validate(); err != nil {
		return nil, err
	}

	result := &ExecutionResult{Action: proposal.Action}
	switch proposal.Action {
	case core.ActionCreateOrder:
		input, err := proposal.OrderInput()
		if err != nil {
			return nil, err
		}
		if err := s.fillDefaultPrices(ctx, input.Lines); err != nil {
			return nil, err
		}
		order, err := s.orders.Create(ctx, input)
		if err != nil {
			return nil, err
		}
		result.Order = order
	case core.ActionCreateImport:
		input, err := proposal.ImportInput()
		if err != nil {
			return nil, err
		}
		if err := s.fillDefaultPrices(ctx, input.Lines); err != nil {
			return nil, err
		}
		imp, err := s.imports.Create(ctx, input)
		if err != nil {
			return nil, err
		}
		result.Import = imp
	case core.ActionCreatePayment:
		input, err := proposal.PaymentInput()
		if err != nil {
			return nil, err
		}
		receipt, err := s.payments.Create(ctx, input)
		if err != nil {
			return nil, err
		}
		result.Receipt = receipt
	case core.ActionReconcile:
		report, err := s.reconcile.Reconcile(ctx)
		if err != nil {
			return nil, err
		}
		result.Reconcile = report
	}

	s.reports.InvalidateReports(ctx)
	s.log.WithField("action", proposal.Action).Info("assistant proposal executed")
	return result, nil
}

// buildCatalogContext renders the master data the agent needs to ground ids.
func (s *appService) buildCatalogContext(ctx context.Context) (string, error) {
	products, err := s.catalog.ListProducts(ctx, true)
	if err != nil {
		return "", err
	}
	staff, err := s.catalog.ListStaff(ctx)
	if err != nil {
		return "", err
	}
	customers, err := s.catalog.ListCustomers(ctx)
	if err != nil {
		return "", err
	}
	suppliers, err := s.catalog.ListSuppliers(ctx)
	if err != nil {
		return "", err
	}
	recent, err := s.orders.List(ctx, core.OrderFilter{})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Products (id | name | unit price | on hand):\n")
	for _, p := range products {
		fmt.Fprintf(&b, "  %d | %s | %s | %d\n", p.ID, p.Name, p.UnitPrice.StringFixed(2), p.Quantity)
	}
	b.WriteString("Staff (id | name):\n")
	for _, st := range staff {
		fmt.Fprintf(&b, "  %d | %s\n", st.ID, st.FullName)
	}
	b.WriteString("Customers (id | name):\n")
	for _, c := range customers {
		fmt.Fprintf(&b, "  %d | %s\n", c.ID, c.Name)
	}
	b.WriteString("Suppliers (id | name):\n")
	for _, sp := range suppliers {
		fmt.Fprintf(&b, "  %d | %s\n", sp.ID, sp.Name)
	}
	b.WriteString("Recent orders (id | number | date | customer | total):\n")
	limit := len(recent)
	if limit > 20 {
		limit = 20
	}
	for _, o := range recent[:limit] {
		fmt.Fprintf(&b, "  %d | %s | %s | %s | %s\n", o.ID, o.OrderNumber, o.OrdDate, o.CustomerName, o.Total.StringFixed(2))
	}
	return b.String(), nil
}

// toLineInputs converts request lines, substituting the catalog unit price
// when a line omits one.
func (s *appService) toLineInputs(ctx context.Context, reqLines []LineRequest) ([]core.LineInput, error) {
	lines := make([]core.LineInput, 0, len(reqLines))
	for _, rl := range reqLines {
		line := core.LineInput{
			ProductID:      rl.ProductID,
			Qty:            rl.Qty,
			UnitPrice:      rl.UnitPrice,
			BatchNumber:    rl.BatchNumber,
			ExpirationDate: rl.ExpirationDate,
		}
		lines = append(lines, line)
	}
	return lines, s.fillDefaultPrices(ctx, lines)
}

func (s *appService) fillDefaultPrices(ctx context.Context, lines []core.LineInput) error {
	for i := range lines {
		if !lines[i].UnitPrice.IsZero() {
			continue
		}
		product, err := s.catalog.GetProduct(ctx, lines[i].ProductID)
		if err != nil {
			return err
		}
		lines[i].UnitPrice = decimalOrDefault(lines[i].UnitPrice, product.UnitPrice)
	}
	return nil
}
