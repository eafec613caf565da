package web

import (
	"net/http"

	"stockdesk/internal/app"
)

// createImport handles POST /api/imports.
func (h *Handler) createImport(w http.ResponseWriter, r *http.Request) {
	var req app.CreateImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	imp, err := h.svc.CreateImport(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, imp)
}

// updateImport handles PATCH /api/imports/{id}.
func (h *Handler) updateImport(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	var req app.UpdateImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	imp, err := h.svc.UpdateImport(r.Context(), id, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, imp)
}

// deleteImport handles DELETE /api/imports/{id}. The received stock is
// reversed, clamped at zero when units were already sold.
func (h *Handler) deleteImport(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	if err := h.svc.DeleteImport(r.Context(), id); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getImport handles GET /api/imports/{id}.
func (h *Handler) getImport(w http.ResponseWriter, r *http.Request) {
	id := idParam(w, r)
	if id == 0 {
		return
	}
	imp, err := h.svc.GetImport(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, imp)
}

// listImports handles GET /api/imports with optional staff_id, supplier_id,
// date_from and date_to filters.
func (h *Handler) listImports(w http.ResponseWriter, r *http.Request) {
	req := app.ImportListRequest{
		StaffID:    queryIntPtr(r, "staff_id"),
		SupplierID: queryIntPtr(r, "supplier_id"),
		DateFrom:   queryStrPtr(r, "date_from"),
		DateTo:     queryStrPtr(r, "date_to"),
	}
	imports, err := h.svc.ListImports(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, imports)
}
