package api

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teknokapsul/lease-service/internal/domain"
)

type sweepFunc func(ctx context.Context) (domain.SweepResult, error)

func (h *Handler) runSweep(name string, sweep sweepFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := sweep(r.Context())
		if err != nil {
			log.Printf("level=error component=api endpoint=%s outcome=error err=%v", name, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Printf("level=info component=api endpoint=%s evaluated=%d succeeded=%d failed=%d skipped=%d", name, result.Evaluated, result.Succeeded, result.Failed, result.Skipped)
		writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handler) handleInternalGenerateForContract(w http.ResponseWriter, r *http.Request) {
	created, err := h.service.GenerateInvoices(r.Context(), nil, "", chi.URLParam(r, "contractID"))
	if err != nil {
		writeServiceError(w, "internal_generate_invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, generateInvoicesResponse{Created: created})
}
