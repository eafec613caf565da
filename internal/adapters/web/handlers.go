package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"stockdesk/internal/app"
)

// Handler holds the ApplicationService, the chi router, and the pending
// proposal store for the assistant confirm flow.
type Handler struct {
	svc     app.ApplicationService
	router  chi.Router
	pending *pendingStore
	log     *logrus.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string, log *logrus.Logger) http.Handler {
	h := &Handler{
		svc:     svc,
		pending: newPendingStore(),
		log:     log,
	}
	h.pending.startPurge(context.Background())

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	// ── Catalog ──────────────────────────────────────────────────────────────
	r.Get("/api/products", h.listProducts)
	r.Post("/api/products", h.createProduct)
	r.Get("/api/products/low-stock", h.lowStock)
	r.Get("/api/products/{id}", h.getProduct)
	r.Patch("/api/products/{id}", h.updateProduct)
	r.Delete("/api/products/{id}", h.deleteProduct)

	r.Get("/api/staff", h.listStaff)
	r.Post("/api/staff", h.createStaff)
	r.Get("/api/customers", h.listCustomers)
	r.Post("/api/customers", h.createCustomer)
	r.Get("/api/suppliers", h.listSuppliers)
	r.Post("/api/suppliers", h.createSupplier)

	// ── Orders ───────────────────────────────────────────────────────────────
	r.Get("/api/orders", h.listOrders)
	r.Post("/api/orders", h.createOrder)
	r.Get("/api/orders/pending-payments", h.pendingPaymentOrders)
	r.Get("/api/orders/{id}", h.getOrder)
	r.Patch("/api/orders/{id}", h.updateOrder)
	r.Delete("/api/orders/{id}", h.deleteOrder)
	r.Get("/api/orders/{id}/payments", h.orderPaymentStatus)

	// ── Imports ──────────────────────────────────────────────────────────────
	r.Get("/api/imports", h.listImports)
	r.Post("/api/imports", h.createImport)
	r.Get("/api/imports/{id}", h.getImport)
	r.Patch("/api/imports/{id}", h.updateImport)
	r.Delete("/api/imports/{id}", h.deleteImport)

	// ── Payments ─────────────────────────────────────────────────────────────
	r.Get("/api/payments", h.listPayments)
	r.Post("/api/payments", h.recordPayment)
	r.Get("/api/payments/summary", h.paymentSummary)
	r.Get("/api/payments/{id}", h.getPayment)
	r.Patch("/api/payments/{id}", h.updatePayment)
	r.Delete("/api/payments/{id}", h.deletePayment)

	// ── Maintenance and assistant ────────────────────────────────────────────
	r.Post("/api/reconcile", h.reconcile)
	r.Post("/api/assistant", h.assistantInterpret)
	r.Post("/api/assistant/confirm", h.assistantConfirm)

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// idParam extracts the {id} URL parameter as an int. A zero return means the
// parameter was bad and the error response has already been written.
func idParam(w http.ResponseWriter, r *http.Request) int {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id in URL", "BAD_REQUEST", http.StatusBadRequest)
		return 0
	}
	return id
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// queryIntPtr parses an optional integer query parameter.
func queryIntPtr(r *http.Request, name string) *int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

// queryStrPtr returns an optional string query parameter.
func queryStrPtr(r *http.Request, name string) *string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	return &raw
}
