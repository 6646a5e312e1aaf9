package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleRefundInvoice(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.service.RefundInvoice(r.Context(), caller, chi.URLParam(r, "ownerUID"), chi.URLParam(r, "contractID"), chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeServiceError(w, "admin_refund", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSetInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	result, err := h.service.SetInvoiceStatus(r.Context(), caller, chi.URLParam(r, "ownerUID"), chi.URLParam(r, "contractID"), chi.URLParam(r, "invoiceID"), status)
	if err != nil {
		writeServiceError(w, "admin_set_status", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
