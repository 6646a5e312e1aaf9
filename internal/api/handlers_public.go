package api

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/teknokapsul/lease-service/internal/app"
)

type guestCheckoutRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleGuestCheckout(w http.ResponseWriter, r *http.Request) {
	var req guestCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	session, err := h.service.InitiateCheckout(r.Context(), app.Caller{}, app.GuestInvoicePayment{
		ContractID: chi.URLParam(r, "contractID"),
		InvoiceID:  chi.URLParam(r, "invoiceID"),
		Token:      req.Token,
	})
	if err != nil {
		writeServiceError(w, "guest_checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handlePaymentCallback receives the gateway's browser redirect. It always
// answers with a redirect to the result page.
func (h *Handler) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	outcome := app.CallbackError
	if err := r.ParseForm(); err != nil {
		log.Printf("level=warn component=callback msg=\"failed to parse callback form\" err=%v", err)
	} else {
		outcome = h.service.HandleCallback(r.Context(), r.FormValue("token"))
		if reported := r.FormValue("status"); reported != "" {
			log.Printf("level=info component=callback msg=\"callback received\" reported_status=%s outcome=%s", reported, outcome)
		}
	}
	http.Redirect(w, r, resultURL(h.paymentResultURL, outcome), http.StatusSeeOther)
}

func resultURL(base, outcome string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "/?status=" + url.QueryEscape(outcome)
	}
	q := u.Query()
	q.Set("status", outcome)
	u.RawQuery = q.Encode()
	return u.String()
}
