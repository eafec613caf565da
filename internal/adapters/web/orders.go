package web

import (
	"net/http"

	"stockdesk/internal/app"
)

// createOrder handles POST /api/orders.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, order)
}

// updateOrder handles PATCH /api/orders/{id}.
func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	var req app.UpdateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.svc.UpdateOrder(r.Context(), id, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, order)
}

// deleteOrder handles DELETE /api/orders/{id}. With ?force=true the order is
// removed together with its payments.
func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	force := r.URL.Query().Get("force") == "true"
	if err := h.svc.DeleteOrder(r.Context(), id, force); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getOrder handles GET /api/orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, order)
}

// listOrders handles GET /api/orders with optional staff_id, customer_id,
// date_from, date_to and unpaid filters.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	req := app.OrderListRequest{
		StaffID:    queryIntPtr(r, "staff_id"),
		CustomerID: queryIntPtr(r, "customer_id"),
		DateFrom:   queryStrPtr(r, "date_from"),
		DateTo:     queryStrPtr(r, "date_to"),
		Unpaid:     r.URL.Query().Get("unpaid") == "true",
	}
	orders, err := h.svc.ListOrders(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, orders)
}

// pendingPaymentOrders handles GET /api/orders/pending-payments: orders with
// no payments recorded yet.
func (h *Handler) pendingPaymentOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context(), app.OrderListRequest{Unpaid: true})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, orders)
}

// orderPaymentStatus handles GET /api/orders/{id}/payments.
func (h *Handler) orderPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	status, err := h.svc.OrderPaymentStatus(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, status)
}
