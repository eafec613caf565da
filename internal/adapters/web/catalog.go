package web

import (
	"net/http"

	"stockdesk/internal/app"
)

// createProduct handles POST /api/products.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req app.CreateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, product)
}

// updateProduct handles PATCH /api/products/{id}. Quantity is not accepted
// here: stock moves only through orders and imports.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	var req app.UpdateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := h.svc.UpdateProduct(r.Context(), id, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// deleteProduct handles DELETE /api/products/{id}.
func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getProduct handles GET /api/products/{id}.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	product, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// listProducts handles GET /api/products. ?active=true hides deactivated
// products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	products, err := h.svc.ListProducts(r.Context(), activeOnly)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, products)
}

// lowStock handles GET /api/products/low-stock: active products at or below
// their reorder point.
func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.LowStock(r.Context())
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, products)
}

// createStaff handles POST /api/staff.
func (h *Handler) createStaff(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	staff, err := h.svc.CreateStaff(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, staff)
}

// listStaff handles GET /api/staff.
func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.svc.ListStaff(r.Context())
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, staff)
}

// createCustomer handles POST /api/customers.
func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	customer, err := h.svc.CreateCustomer(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, customer)
}

// listCustomers handles GET /api/customers.
func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.svc.ListCustomers(r.Context())
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, customers)
}

// createSupplier handles POST /api/suppliers.
func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	supplier, err := h.svc.CreateSupplier(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, supplier)
}

// listSuppliers handles GET /api/suppliers.
func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.svc.ListSuppliers(r.Context())
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, suppliers)
}
