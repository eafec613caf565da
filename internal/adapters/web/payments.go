package web

import (
	"net/http"

	"stockdesk/internal/app"
)

// recordPayment handles POST /api/payments.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req app.RecordPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.svc.RecordPayment(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, receipt)
}

// updatePayment handles PATCH /api/payments/{id}.
func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	var req app.UpdatePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.svc.UpdatePayment(r.Context(), id, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, receipt)
}

// deletePayment handles DELETE /api/payments/{id}. Sibling payments keep their
// stored remains until the next reconciliation pass.
func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	if err := h.svc.DeletePayment(r.Context(), id); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getPayment handles GET /api/payments/{id}.
func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	payment, err := h.svc.GetPayment(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, payment)
}

// listPayments handles GET /api/payments with optional order_id, staff_id,
// date_from and date_to filters.
func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	req := app.PaymentListRequest{
		OrderID:  queryIntPtr(r, "order_id"),
		StaffID:  queryIntPtr(r, "staff_id"),
		DateFrom: queryStrPtr(r, "date_from"),
		DateTo:   queryStrPtr(r, "date_to"),
	}
	payments, err := h.svc.ListPayments(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, payments)
}

// paymentSummary handles GET /api/payments/summary with optional date_from
// and date_to bounds.
func (h *Handler) paymentSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.PaymentSummary(r.Context(), queryStrPtr(r, "date_from"), queryStrPtr(r, "date_to"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

// reconcile handles POST /api/reconcile: one full pass over every order with
// payments.
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reconcile(r.Context())
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, report)
}
