/**
 * @description
 * HTTP handlers for the lease service. Handlers decode explicit request
 * types, call the application service and map its errors to statuses.
 */
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teknokapsul/lease-service/internal/app"
	"github.com/teknokapsul/lease-service/internal/calendar"
	"github.com/teknokapsul/lease-service/internal/store"
)

const maxBodyBytes = 1 << 16

// Handler holds the application service that handlers will use.
type Handler struct {
	service          *app.Service
	paymentResultURL string
}

// NewHandler creates a new Handler.
func NewHandler(service *app.Service, paymentResultURL string) *Handler {
	return &Handler{service: service, paymentResultURL: paymentResultURL}
}

type generateInvoicesResponse struct {
	Created int `json:"created"`
}

type depositCheckoutRequest struct {
	Amount int64 `json:"amount"`
}

type independentCheckoutRequest struct {
	RentAmount int64 `json:"rent_amount"`
}

type proposeOfferRequest struct {
	Months int   `json:"months"`
	Amount int64 `json:"amount"`
}

type renewalResponseRequest struct {
	Accept *bool `json:"accept"`
}

type guestTokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) handleGenerateInvoices(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	created, err := h.service.GenerateInvoices(r.Context(), &caller, chi.URLParam(r, "ownerUID"), chi.URLParam(r, "contractID"))
	if err != nil {
		writeServiceError(w, "generate_invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, generateInvoicesResponse{Created: created})
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	invoices, err := h.service.ListInvoices(r.Context(), caller, chi.URLParam(r, "ownerUID"), chi.URLParam(r, "contractID"))
	if err != nil {
		writeServiceError(w, "list_invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (h *Handler) handleInvoiceCheckout(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	session, err := h.service.InitiateCheckout(r.Context(), caller, app.InvoicePayment{
		OwnerUID:   chi.URLParam(r, "ownerUID"),
		ContractID: chi.URLParam(r, "contractID"),
		InvoiceID:  chi.URLParam(r, "invoiceID"),
	})
	if err != nil {
		writeServiceError(w, "invoice_checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.service.CheckInvoiceStatus(r.Context(), caller, chi.URLParam(r, "ownerUID"), chi.URLParam(r, "contractID"), chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeServiceError(w, "invoice_status", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleProposeOffer(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req proposeOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	offer, err := h.service.ProposeUpfrontOffer(r.Context(), caller, chi.URLParam(r, "ownerUID"), chi.URLParam(r, "contractID"), req.Months, req.Amount)
	if err != nil {
		writeServiceError(w, "propose_offer", err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (h *Handler) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	offer, err := h.service.AcceptUpfrontOffer(r.Context(), caller, chi.URLParam(r, "ownerUID"), chi.URLParam(r, "contractID"), chi.URLParam(r, "offerID"))
	if err != nil {
		writeServiceError(w, "accept_offer", err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (h *Handler) handleOfferCheckout(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	session, err := h.service.InitiateCheckout(r.Context(), caller, app.UpfrontOfferPayment{
		OwnerUID:   chi.URLParam(r, "ownerUID"),
		ContractID: chi.URLParam(r, "contractID"),
		OfferID:    chi.URLParam(r, "offerID"),
	})
	if err != nil {
		writeServiceError(w, "offer_checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleDepositCheckout(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req depositCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.InitiateCheckout(r.Context(), caller, app.DepositPayment{
		OwnerUID:   chi.URLParam(r, "ownerUID"),
		ContractID: chi.URLParam(r, "contractID"),
		Amount:     req.Amount,
	})
	if err != nil {
		writeServiceError(w, "deposit_checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleIndependentCheckout(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req independentCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.InitiateCheckout(r.Context(), caller, app.IndependentPayment{
		PaymentID:  chi.URLParam(r, "paymentID"),
		RentAmount: req.RentAmount,
	})
	if err != nil {
		writeServiceError(w, "independent_checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleRenewalResponse(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req renewalResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Accept == nil {
		writeError(w, http.StatusBadRequest, "accept is required")
		return
	}

	renewal, err := h.service.RespondToRenewal(r.Context(), caller, chi.URLParam(r, "ownerUID"), chi.URLParam(r, "contractID"), *req.Accept)
	if err != nil {
		writeServiceError(w, "renewal_response", err)
		return
	}
	writeJSON(w, http.StatusOK, renewal)
}

func (h *Handler) handleIssueGuestToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	token, err := h.service.IssueGuestToken(r.Context(), caller, chi.URLParam(r, "ownerUID"), chi.URLParam(r, "contractID"))
	if err != nil {
		writeServiceError(w, "guest_token", err)
		return
	}
	writeJSON(w, http.StatusCreated, guestTokenResponse{Token: token})
}

// decodeJSON decodes a request body into dst, rejecting unknown fields.
// An empty body leaves dst at its zero value.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// writeServiceError maps an application error to an HTTP response.
func writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	var (
		gatewayErr   *app.GatewayError
		rateLimitErr *app.RateLimitError
	)
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrInvalidStatus), errors.Is(err, app.ErrMissingStartDate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUnauthenticated), errors.Is(err, app.ErrInvalidGuestToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden), errors.Is(err, app.ErrAdminRequired):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrContractNotFound), errors.Is(err, store.ErrInvoiceNotFound),
		errors.Is(err, store.ErrOfferNotFound), errors.Is(err, store.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrAlreadyPaid), errors.Is(err, app.ErrAlreadyRefunded),
		errors.Is(err, app.ErrNotPaid), errors.Is(err, store.ErrStateConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &rateLimitErr):
		w.Header().Set("Retry-After", fmt.Sprintf("%d", rateLimitErr.RetryAfterSeconds))
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &gatewayErr):
		log.Printf("level=warn component=api endpoint=%s outcome=upstream_error err=%v", endpoint, err)
		writeError(w, http.StatusBadGateway, gatewayErr.Message)
	case errors.Is(err, calendar.ErrNoBusinessDay):
		log.Printf("level=error component=api endpoint=%s outcome=calendar_error err=%v", endpoint, err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s outcome=error err=%v", endpoint, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
